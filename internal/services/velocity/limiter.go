// Package velocity enforces rolling-window transaction limits per user.
package velocity

import (
	"context"
	"fmt"
	"time"

	"rigshare/internal/config"
	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"
	"rigshare/internal/repositories"
	"rigshare/internal/utils/lock"
)

// Limiter evaluates and reserves velocity budget. Reservation is a
// single atomic operation per (user, limit type): the repository holds a
// row lock while counters are checked and incremented, and the keyed
// mutex serializes in-process callers on top of that.
type Limiter struct {
	repo   repositories.VelocityLimitRepository
	policy config.Policy
	locks  *lock.KeyedMutex
	now    func() time.Time
}

func NewLimiter(repo repositories.VelocityLimitRepository, policy config.Policy) *Limiter {
	if repo == nil {
		panic("velocity repo is required")
	}
	return &Limiter{
		repo:   repo,
		policy: policy,
		locks:  lock.NewKeyedMutex(),
		now:    time.Now,
	}
}

func limitKey(userID uint, limitType models.VelocityLimitType) string {
	return fmt.Sprintf("velocity:%d:%s", userID, limitType)
}

// CheckAndReserve consumes budget for one action in the given window
// type. It fails closed with ErrVelocityExceeded when either the amount
// or the transaction-count ceiling would be breached; otherwise counters
// are incremented atomically.
func (l *Limiter) CheckAndReserve(ctx context.Context, userID uint, limitType models.VelocityLimitType, amount float64) error {
	key := limitKey(userID, limitType)
	l.locks.Lock(key)
	defer l.locks.Unlock(key)

	defaults := l.defaultLimit(limitType)
	now := l.now()

	return l.repo.WithLock(ctx, userID, limitType, defaults, func(limit *models.VelocityLimit) error {
		// Temporary tightened limits fall back to policy once expired.
		if limit.ExpiresAt != nil && now.After(*limit.ExpiresAt) {
			limit.MaxAmount = defaults.MaxAmount
			limit.MaxCount = defaults.MaxCount
			limit.ExpiresAt = nil
		}

		if !limit.Active {
			return nil
		}

		// Window roll: reset counters before evaluating.
		if now.Sub(limit.WindowStart) > limitType.Window() {
			limit.WindowStart = now
			limit.WindowAmount = 0
			limit.WindowCount = 0
		}

		if limit.WindowAmount+amount > limit.MaxAmount {
			return domainerr.ErrVelocityExceeded.WithMessage(
				"%s amount limit exceeded: %.2f of %.2f used", limitType, limit.WindowAmount, limit.MaxAmount)
		}
		if limit.WindowCount+1 > limit.MaxCount {
			return domainerr.ErrVelocityExceeded.WithMessage(
				"%s transaction count limit exceeded: %d of %d used", limitType, limit.WindowCount, limit.MaxCount)
		}

		limit.WindowAmount += amount
		limit.WindowCount++
		return nil
	})
}

// CheckAll reserves budget across every window type, cheapest first. A
// single action is blocked if it violates any applicable limit.
//
// A failure after partial reservation leaves earlier windows consumed;
// that over-counts by at most one blocked action and errs on the safe
// side of the limit.
func (l *Limiter) CheckAll(ctx context.Context, userID uint, amount float64) error {
	for _, limitType := range models.AllVelocityLimitTypes {
		if err := l.CheckAndReserve(ctx, userID, limitType, amount); err != nil {
			return err
		}
	}
	return nil
}

// SetLimit installs an admin-configured ceiling, optionally temporary.
func (l *Limiter) SetLimit(userID uint, limitType models.VelocityLimitType, maxAmount float64, maxCount int, expiresAt *time.Time) error {
	limit := &models.VelocityLimit{
		UserID:      userID,
		LimitType:   limitType,
		WindowStart: l.now(),
		MaxAmount:   maxAmount,
		MaxCount:    maxCount,
		Active:      true,
		ExpiresAt:   expiresAt,
	}
	return l.repo.Upsert(limit)
}

// ReleaseLimit lifts an admin-imposed ceiling, restoring the policy
// defaults for the window type. Counters are kept so the current window
// keeps counting against the default ceiling.
func (l *Limiter) ReleaseLimit(ctx context.Context, userID uint, limitType models.VelocityLimitType) error {
	key := limitKey(userID, limitType)
	l.locks.Lock(key)
	defer l.locks.Unlock(key)

	defaults := l.defaultLimit(limitType)
	return l.repo.WithLock(ctx, userID, limitType, defaults, func(limit *models.VelocityLimit) error {
		limit.MaxAmount = defaults.MaxAmount
		limit.MaxCount = defaults.MaxCount
		limit.ExpiresAt = nil
		limit.Active = true
		return nil
	})
}

// Limits returns the user's current counter rows.
func (l *Limiter) Limits(userID uint) ([]models.VelocityLimit, error) {
	return l.repo.ListByUser(userID)
}

func (l *Limiter) defaultLimit(limitType models.VelocityLimitType) models.VelocityLimit {
	ceiling, ok := l.policy.VelocityCeilings[string(limitType)]
	if !ok {
		ceiling = config.VelocityCeiling{MaxAmount: 1000, MaxCount: 10}
	}
	return models.VelocityLimit{
		MaxAmount: ceiling.MaxAmount,
		MaxCount:  ceiling.MaxCount,
		Active:    true,
	}
}
