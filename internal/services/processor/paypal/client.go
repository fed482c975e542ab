// Package paypal implements the processor contract against the PayPal
// disputes and payments API surface we integrate with.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/services/processor"
)

// Client talks to the processor over HTTP. Every call carries the
// caller's context; the embedded http.Client timeout is a backstop.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

type refundRequest struct {
	PaymentRef string  `json:"payment_ref"`
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason"`
}

type refundResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

func (c *Client) Refund(ctx context.Context, paymentRef string, amount float64, reason string) (string, error) {
	var resp refundResponse
	err := c.post(ctx, "/v2/payments/refunds", refundRequest{
		PaymentRef: paymentRef,
		Amount:     amount,
		Reason:     reason,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}

type escalateRequest struct {
	DisputeRef string                   `json:"dispute_ref"`
	Summary    processor.DisputeSummary `json:"summary"`
}

type escalateResponse struct {
	ExternalID string `json:"dispute_id"`
	Status     string `json:"status"`
}

func (c *Client) EscalateDispute(ctx context.Context, disputeRef string, summary processor.DisputeSummary) (string, error) {
	var resp escalateResponse
	err := c.post(ctx, "/v1/customer/disputes", escalateRequest{
		DisputeRef: disputeRef,
		Summary:    summary,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ExternalID, nil
}

func (c *Client) GetDispute(ctx context.Context, externalID string) (*processor.ExternalDispute, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/customer/disputes/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	var dispute processor.ExternalDispute
	if err := c.do(req, &dispute); err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return domainerr.ErrExternalService.WithMessage("processor call failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domainerr.ErrExternalService.WithMessage(
			"processor returned %d: %s", resp.StatusCode, string(snippet))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return domainerr.ErrExternalService.WithMessage("processor response malformed: %v", err)
	}
	return nil
}

var _ processor.Processor = (*Client)(nil)

// ParseWebhook decodes an inbound webhook body.
func ParseWebhook(body []byte) (*processor.WebhookPayload, error) {
	var payload processor.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	if payload.EventID == "" || payload.DisputeID == "" {
		return nil, fmt.Errorf("webhook payload missing event_id or dispute_id")
	}
	return &payload, nil
}
