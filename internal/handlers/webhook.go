package handlers

import (
	"rigshare/internal/services/dispute"
	"rigshare/internal/services/processor/paypal"
	"rigshare/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	disputes *dispute.Service
}

func NewWebhookHandler(disputes *dispute.Service) *WebhookHandler {
	return &WebhookHandler{disputes: disputes}
}

// PayPalDispute receives processor dispute events. Replays and unknown
// event types are acknowledged with 200 so the processor stops
// redelivering; only an unparseable payload is a 400.
func (h *WebhookHandler) PayPalDispute(c *fiber.Ctx) error {
	payload, err := paypal.ParseWebhook(c.Body())
	if err != nil {
		return response.BadRequest(c, "invalid webhook payload")
	}

	if err := h.disputes.HandleWebhook(c.Context(), *payload); err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Event processed", nil)
}

// EvidenceScan receives the asynchronous malware scan verdict from the
// storage collaborator and applies it to the evidence record.
func (h *WebhookHandler) EvidenceScan(c *fiber.Ctx) error {
	var input struct {
		StorageRef string `json:"storage_ref"`
		Safe       bool   `json:"safe"`
	}
	if err := c.BodyParser(&input); err != nil || input.StorageRef == "" {
		return response.BadRequest(c, "invalid scan payload")
	}

	if err := h.disputes.RecordScanResult(c.Context(), input.StorageRef, input.Safe); err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Scan result recorded", nil)
}
