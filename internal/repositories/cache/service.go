package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rigshare/internal/models"

	"github.com/redis/go-redis/v9"
)

// CacheService wraps redis for the read paths that are hot enough to
// care: dispute lookups and the webhook replay fast path. The durable
// source of truth stays in postgres.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{client: client, ttl: defaultTTL}
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get unmarshals the cached value into dest. The bool reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}
	return true, json.Unmarshal(data, dest)
}

func (s *CacheService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func disputeKey(id uint) string {
	return fmt.Sprintf("dispute:%d", id)
}

func webhookKey(eventID string) string {
	return fmt.Sprintf("webhook:%s", eventID)
}

// GetDispute returns the cached dispute, if any.
func (s *CacheService) GetDispute(ctx context.Context, id uint) (*models.Dispute, error) {
	var d models.Dispute
	hit, err := s.Get(ctx, disputeKey(id), &d)
	if err != nil || !hit {
		return nil, err
	}
	return &d, nil
}

// SetDispute caches a dispute snapshot.
func (s *CacheService) SetDispute(ctx context.Context, d *models.Dispute) error {
	return s.SetWithTTL(ctx, disputeKey(d.ID), d, time.Hour)
}

// InvalidateDispute drops the cached snapshot after a write.
func (s *CacheService) InvalidateDispute(ctx context.Context, id uint) error {
	return s.Delete(ctx, disputeKey(id))
}

// WebhookSeen is the replay fast path: it reports whether the event id
// was fully processed before. A redis miss only means the database
// decides; the Processed column remains the authority.
func (s *CacheService) WebhookSeen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, webhookKey(eventID)).Result()
	return n > 0, err
}

// MarkWebhookSeen remembers a fully processed event id. Called only
// after the event's state change has been applied, so a retry of a
// failed delivery is never short-circuited here.
func (s *CacheService) MarkWebhookSeen(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, webhookKey(eventID), 1, 7*24*time.Hour).Err()
}

// HealthCheck pings redis.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *CacheService) Close() error {
	return s.client.Close()
}
