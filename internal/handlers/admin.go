package handlers

import (
	"time"

	"rigshare/internal/models"
	"rigshare/internal/repositories"
	"rigshare/internal/utils/response"
	"rigshare/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler exposes the trust-and-safety triage surface: suspicious
// activity records and fraud check listings.
type AdminHandler struct {
	activities repositories.SuspiciousActivityRepository
	checks     repositories.FraudCheckRepository
	users      repositories.UserRepository
}

func NewAdminHandler(
	activities repositories.SuspiciousActivityRepository,
	checks repositories.FraudCheckRepository,
	users repositories.UserRepository,
) *AdminHandler {
	return &AdminHandler{activities: activities, checks: checks, users: users}
}

// ActiveActivities lists suspicious activity records awaiting triage.
func (h *AdminHandler) ActiveActivities(c *fiber.Ctx) error {
	limit, offset := validation.Pagination(c)
	records, err := h.activities.ListActive(limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Activities retrieved", records)
}

// UserActivities lists one user's suspicious activity history.
func (h *AdminHandler) UserActivities(c *fiber.Ctx) error {
	userID, err := validation.UintParam(c, "userId")
	if err != nil {
		return response.Domain(c, err)
	}
	limit, offset := validation.Pagination(c)
	records, err := h.activities.ListByUser(userID, limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Activities retrieved", records)
}

// CloseActivity resolves or dismisses one suspicious activity record.
func (h *AdminHandler) CloseActivity(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Dismiss bool   `json:"dismiss"`
		Notes   string `json:"notes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	record, err := h.activities.FindByID(id)
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	now := time.Now()
	if input.Dismiss {
		record.Status = models.SuspicionDismissed
	} else {
		record.Status = models.SuspicionResolved
	}
	record.ResolvedBy = &claims.UserID
	record.ResolvedAt = &now
	record.ResolutionNotes = input.Notes
	if err := h.activities.Update(record); err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Activity closed", record)
}

// ChecksByStatus lists fraud checks in one decision state, e.g.
// ?status=flagged for the manual review queue.
func (h *AdminHandler) ChecksByStatus(c *fiber.Ctx) error {
	status := models.FraudCheckStatus(c.Query("status", string(models.FraudCheckFlagged)))
	limit, offset := validation.Pagination(c)

	checks, err := h.checks.ListByStatus(status, limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Checks retrieved", checks)
}

// UserChecks lists one user's fraud check history.
func (h *AdminHandler) UserChecks(c *fiber.Ctx) error {
	userID, err := validation.UintParam(c, "userId")
	if err != nil {
		return response.Domain(c, err)
	}
	limit, offset := validation.Pagination(c)
	checks, err := h.checks.ListByUser(userID, limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Checks retrieved", checks)
}

// FlagUser manually flags an account.
func (h *AdminHandler) FlagUser(c *fiber.Ctx) error {
	userID, err := validation.UintParam(c, "userId")
	if err != nil {
		return response.Domain(c, err)
	}
	if err := h.users.Flag(userID); err != nil {
		return response.Domain(c, err)
	}
	user, err := h.users.FindByID(userID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "User flagged", user)
}
