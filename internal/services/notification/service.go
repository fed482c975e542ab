// Package notification is the fire-and-forget messaging collaborator.
// Delivery failures never roll back a fraud or dispute decision; callers
// log and move on.
package notification

import (
	"context"
	"log"
)

// Notifier is the outbound notification contract.
type Notifier interface {
	NotifyAdmin(ctx context.Context, subject, body string) error
	NotifyUserFlagged(ctx context.Context, userID uint, reason string) error
	NotifyDisputeUpdate(ctx context.Context, userID uint, disputeID uint, event string) error
}

// Service is a minimal log-based Notifier. The real delivery channel
// (email, push) lives in the messaging service.
type Service struct{}

func NewService() *Service { return &Service{} }

func (s *Service) NotifyAdmin(ctx context.Context, subject, body string) error {
	log.Printf("notify admin: %s: %s", subject, body)
	return nil
}

func (s *Service) NotifyUserFlagged(ctx context.Context, userID uint, reason string) error {
	log.Printf("notify user %d flagged: %s", userID, reason)
	return nil
}

func (s *Service) NotifyDisputeUpdate(ctx context.Context, userID uint, disputeID uint, event string) error {
	log.Printf("notify user %d of dispute %d: %s", userID, disputeID, event)
	return nil
}
