package handlers

import (
	"rigshare/internal/models"
	"rigshare/internal/services/dispute"
	"rigshare/internal/utils/response"
	"rigshare/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type DisputeHandler struct {
	disputes *dispute.Service
}

func NewDisputeHandler(disputes *dispute.Service) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

func requestClaims(c *fiber.Ctx) *models.UserClaims {
	claims, _ := c.Locals("claims").(*models.UserClaims)
	return claims
}

func (h *DisputeHandler) CreateDispute(c *fiber.Ctx) error {
	var input struct {
		RentalID      uint    `json:"rental_id"`
		PaymentID     *uint   `json:"payment_id"`
		Type          string  `json:"type"`
		Category      string  `json:"category"`
		Title         string  `json:"title"`
		Description   string  `json:"description"`
		ClaimedAmount float64 `json:"claimed_amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	d, err := h.disputes.CreateDispute(c.Context(), dispute.CreateDisputeRequest{
		RentalID:      input.RentalID,
		PaymentID:     input.PaymentID,
		InitiatorID:   claims.UserID,
		Type:          models.DisputeType(input.Type),
		Category:      models.DisputeCategory(input.Category),
		Title:         input.Title,
		Description:   input.Description,
		ClaimedAmount: input.ClaimedAmount,
	})
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Created(c, "Dispute created", d)
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	d, err := h.disputes.GetDispute(c.Context(), id, claims.UserID, claims.IsAdmin())
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Dispute retrieved", d)
}

func (h *DisputeHandler) ListMyDisputes(c *fiber.Ctx) error {
	claims := requestClaims(c)
	limit, offset := validation.Pagination(c)

	disputes, err := h.disputes.ListForUser(claims.UserID, limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Disputes retrieved", disputes)
}

// ListByStatus is the admin triage view, e.g. ?status=opened.
func (h *DisputeHandler) ListByStatus(c *fiber.Ctx) error {
	status := models.DisputeStatus(c.Query("status", string(models.DisputeStatusOpened)))
	limit, offset := validation.Pagination(c)

	disputes, err := h.disputes.ListByStatus(status, limit, offset)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Disputes retrieved", disputes)
}

func (h *DisputeHandler) PostMessage(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	msg, err := h.disputes.AddMessage(c.Context(), id, claims.UserID, claims.IsAdmin(), input.Body)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Created(c, "Message added", msg)
}

func (h *DisputeHandler) GetMessages(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	msgs, err := h.disputes.Messages(c.Context(), id, claims.UserID, claims.IsAdmin())
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Messages retrieved", msgs)
}

func (h *DisputeHandler) UploadEvidence(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		Description string `json:"description"`
		Data        []byte `json:"data"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	ev, err := h.disputes.AddEvidence(c.Context(), id, claims.UserID, claims.IsAdmin(), dispute.EvidenceUpload{
		FileName:    input.FileName,
		ContentType: input.ContentType,
		Description: input.Description,
		Data:        input.Data,
	})
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Created(c, "Evidence uploaded", ev)
}

func (h *DisputeHandler) GetEvidence(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	evidence, err := h.disputes.Evidence(c.Context(), id, claims.UserID, claims.IsAdmin())
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Evidence retrieved", evidence)
}

func (h *DisputeHandler) AssignAdmin(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	d, err := h.disputes.AssignAdmin(c.Context(), id, claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Dispute under review", d)
}

func (h *DisputeHandler) Resolve(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Kind              string  `json:"kind"`
		RefundAmount      float64 `json:"refund_amount"`
		ReplacementToolID uint    `json:"replacement_tool_id"`
		Notes             string  `json:"notes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Kind == string(dispute.ResolutionRefund) {
		if err := validation.Amount(input.RefundAmount); err != nil {
			return response.Domain(c, err)
		}
	}

	claims := requestClaims(c)
	d, err := h.disputes.Resolve(c.Context(), id, claims.UserID, dispute.Resolution{
		Kind:              dispute.ResolutionKind(input.Kind),
		RefundAmount:      input.RefundAmount,
		ReplacementToolID: input.ReplacementToolID,
		Notes:             input.Notes,
	})
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Dispute resolved", d)
}

func (h *DisputeHandler) Escalate(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	d, err := h.disputes.Escalate(c.Context(), id, claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Dispute escalated", d)
}

// SyncExternal reconciles an escalated dispute with the processor state.
func (h *DisputeHandler) SyncExternal(c *fiber.Ctx) error {
	externalID := c.Params("externalId")
	if externalID == "" {
		return response.BadRequest(c, "external dispute id is required")
	}

	d, err := h.disputes.SyncExternalDispute(c.Context(), externalID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Dispute synced", d)
}

func (h *DisputeHandler) Close(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	d, err := h.disputes.Close(c.Context(), id, claims.UserID, claims.IsAdmin(), input.Reason)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Dispute closed", d)
}

func (h *DisputeHandler) ClosureEligibility(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	eligibility, err := h.disputes.CheckEligibility(c.Context(), id, claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Eligibility checked", eligibility)
}

func (h *DisputeHandler) ProposeClosure(c *fiber.Ctx) error {
	id, err := validation.UintParam(c, "id")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Notes        string   `json:"notes"`
		RefundAmount *float64 `json:"refund_amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.RefundAmount != nil {
		if err := validation.Amount(*input.RefundAmount); err != nil {
			return response.Domain(c, err)
		}
	}

	claims := requestClaims(c)
	closure, err := h.disputes.InitiateMutualClosure(c.Context(), id, claims.UserID, input.Notes, input.RefundAmount)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Created(c, "Closure proposed", closure)
}

func (h *DisputeHandler) RespondToClosure(c *fiber.Ctx) error {
	closureID, err := validation.UintParam(c, "closureId")
	if err != nil {
		return response.Domain(c, err)
	}
	var input struct {
		Accept bool   `json:"accept"`
		Notes  string `json:"notes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claims := requestClaims(c)
	closure, err := h.disputes.RespondToMutualClosure(c.Context(), closureID, claims.UserID, input.Accept, input.Notes)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Response recorded", closure)
}

func (h *DisputeHandler) CancelClosure(c *fiber.Ctx) error {
	closureID, err := validation.UintParam(c, "closureId")
	if err != nil {
		return response.Domain(c, err)
	}

	claims := requestClaims(c)
	closure, err := h.disputes.CancelMutualClosure(c.Context(), closureID, claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Proposal cancelled", closure)
}

func (h *DisputeHandler) ClosureAudit(c *fiber.Ctx) error {
	closureID, err := validation.UintParam(c, "closureId")
	if err != nil {
		return response.Domain(c, err)
	}

	entries, err := h.disputes.ClosureAuditTrail(closureID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Audit trail retrieved", entries)
}
