package handlers

import (
	"time"

	"rigshare/internal/models"
	"rigshare/internal/services/fraud"
	"rigshare/internal/services/velocity"
	"rigshare/internal/utils/response"
	"rigshare/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type FraudHandler struct {
	fraudService *fraud.Service
	limiter      *velocity.Limiter
}

func NewFraudHandler(fraudService *fraud.Service, limiter *velocity.Limiter) *FraudHandler {
	return &FraudHandler{fraudService: fraudService, limiter: limiter}
}

// CheckPayment gates one payment attempt. A blocked payment is a 200
// with the decision in the body; the caller inspects the status.
func (h *FraudHandler) CheckPayment(c *fiber.Ctx) error {
	var input struct {
		PayeeID           uint     `json:"payee_id"`
		PaymentID         *uint    `json:"payment_id"`
		Amount            float64  `json:"amount"`
		DeviceFingerprint string   `json:"device_fingerprint"`
		Latitude          *float64 `json:"latitude"`
		Longitude         *float64 `json:"longitude"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if err := validation.Amount(input.Amount); err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	check, err := h.fraudService.EvaluatePayment(c.Context(), fraud.PaymentCheckRequest{
		UserID:            claims.UserID,
		PayeeID:           input.PayeeID,
		PaymentID:         input.PaymentID,
		Amount:            input.Amount,
		IPAddress:         c.IP(),
		DeviceFingerprint: input.DeviceFingerprint,
		Latitude:          input.Latitude,
		Longitude:         input.Longitude,
	})
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Payment evaluated", check)
}

// CheckSearch records a location-bounded search and evaluates probing
// patterns against it.
func (h *FraudHandler) CheckSearch(c *fiber.Ctx) error {
	var input struct {
		TargetUserID      uint    `json:"target_user_id"`
		Latitude          float64 `json:"latitude"`
		Longitude         float64 `json:"longitude"`
		DeviceFingerprint string  `json:"device_fingerprint"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	check, err := h.fraudService.EvaluateSearch(c.Context(), fraud.SearchCheckRequest{
		UserID:            claims.UserID,
		TargetUserID:      input.TargetUserID,
		Latitude:          input.Latitude,
		Longitude:         input.Longitude,
		IPAddress:         c.IP(),
		DeviceFingerprint: input.DeviceFingerprint,
	})
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Search evaluated", check)
}

// MyChecks returns the caller's fraud check history.
func (h *FraudHandler) MyChecks(c *fiber.Ctx) error {
	claims := requestClaims(c)
	limit, offset := validation.Pagination(c)

	checks, err := h.fraudService.ChecksByUser(claims.UserID, limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Checks retrieved", checks)
}

// ReviewCheck is the manual review path for flagged decisions.
func (h *FraudHandler) ReviewCheck(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Approve bool   `json:"approve"`
		Notes   string `json:"notes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	check, err := h.fraudService.Review(id, claims.UserID, input.Approve, input.Notes)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Check reviewed", check)
}

// MyLimits returns the caller's velocity limit windows.
func (h *FraudHandler) MyLimits(c *fiber.Ctx) error {
	claims := requestClaims(c)
	limits, err := h.limiter.Limits(claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Limits retrieved", limits)
}

// SetLimit lets an admin impose a temporary ceiling on a user.
func (h *FraudHandler) SetLimit(c *fiber.Ctx) error {
	userID, err := validation.UintParam(c, "userId")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		LimitType string     `json:"limit_type"`
		MaxAmount float64    `json:"max_amount"`
		MaxCount  int        `json:"max_count"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	limitType := models.VelocityLimitType(input.LimitType)
	known := false
	for _, t := range models.AllVelocityLimitTypes {
		if t == limitType {
			known = true
			break
		}
	}
	if !known {
		return response.BadRequest(c, "unknown limit type")
	}
	if err := h.limiter.SetLimit(userID, limitType, input.MaxAmount, input.MaxCount, input.ExpiresAt); err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Limit updated", nil)
}

// ReleaseLimit lifts an imposed ceiling, restoring policy defaults.
func (h *FraudHandler) ReleaseLimit(c *fiber.Ctx) error {
	userID, err := validation.UintParam(c, "userId")
	if err != nil {
		return response.Domain(c, err)
	}
	limitType := models.VelocityLimitType(c.Params("limitType"))
	known := false
	for _, t := range models.AllVelocityLimitTypes {
		if t == limitType {
			known = true
			break
		}
	}
	if !known {
		return response.BadRequest(c, "unknown limit type")
	}
	if err := h.limiter.ReleaseLimit(c.Context(), userID, limitType); err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Limit released", nil)
}
