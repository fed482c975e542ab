package velocity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rigshare/internal/config"
	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLimitRepo is an in-memory VelocityLimitRepository. WithLock holds
// one mutex across the whole load-mutate-save cycle, mirroring the row
// lock the real implementation takes.
type memLimitRepo struct {
	mu     sync.Mutex
	limits map[string]*models.VelocityLimit
}

func newMemLimitRepo() *memLimitRepo {
	return &memLimitRepo{limits: make(map[string]*models.VelocityLimit)}
}

func (r *memLimitRepo) key(userID uint, t models.VelocityLimitType) string {
	return fmt.Sprintf("%d:%s", userID, t)
}

func (r *memLimitRepo) WithLock(ctx context.Context, userID uint, limitType models.VelocityLimitType,
	defaults models.VelocityLimit, fn func(*models.VelocityLimit) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(userID, limitType)
	limit, ok := r.limits[k]
	if !ok {
		created := defaults
		created.UserID = userID
		created.LimitType = limitType
		created.WindowStart = time.Now()
		limit = &created
		r.limits[k] = limit
	}

	snapshot := *limit
	if err := fn(&snapshot); err != nil {
		return err
	}
	*limit = snapshot
	return nil
}

func (r *memLimitRepo) Find(userID uint, limitType models.VelocityLimitType) (*models.VelocityLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit, ok := r.limits[r.key(userID, limitType)]
	if !ok {
		return nil, nil
	}
	cp := *limit
	return &cp, nil
}

func (r *memLimitRepo) Upsert(limit *models.VelocityLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *limit
	r.limits[r.key(limit.UserID, limit.LimitType)] = &cp
	return nil
}

func (r *memLimitRepo) ListByUser(userID uint) ([]models.VelocityLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.VelocityLimit
	for _, l := range r.limits {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func testPolicy() config.Policy {
	return config.Policy{
		VelocityCeilings: map[string]config.VelocityCeiling{
			"hourly":  {MaxAmount: 100, MaxCount: 10},
			"daily":   {MaxAmount: 500, MaxCount: 50},
			"weekly":  {MaxAmount: 2000, MaxCount: 200},
			"monthly": {MaxAmount: 5000, MaxCount: 500},
		},
	}
}

func TestLimiter_CheckAndReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves within the ceiling", func(t *testing.T) {
		l := NewLimiter(newMemLimitRepo(), testPolicy())

		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 60))
		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 40))
	})

	t.Run("fails closed when the amount ceiling would be breached", func(t *testing.T) {
		l := NewLimiter(newMemLimitRepo(), testPolicy())

		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 90))
		err := l.CheckAndReserve(ctx, 1, models.VelocityHourly, 20)
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerr.ErrLimitExceeded)

		// The failed reservation must not consume budget.
		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 10))
	})

	t.Run("fails closed on the transaction count ceiling", func(t *testing.T) {
		policy := testPolicy()
		policy.VelocityCeilings["hourly"] = config.VelocityCeiling{MaxAmount: 10000, MaxCount: 2}
		l := NewLimiter(newMemLimitRepo(), policy)

		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 1))
		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 1))
		err := l.CheckAndReserve(ctx, 1, models.VelocityHourly, 1)
		assert.ErrorIs(t, err, domainerr.ErrLimitExceeded)
	})

	t.Run("limit types are independent", func(t *testing.T) {
		l := NewLimiter(newMemLimitRepo(), testPolicy())

		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 100))
		assert.ErrorIs(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 1), domainerr.ErrLimitExceeded)

		// The daily window still has budget.
		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityDaily, 100))
	})

	t.Run("users are independent", func(t *testing.T) {
		l := NewLimiter(newMemLimitRepo(), testPolicy())

		require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 100))
		require.NoError(t, l.CheckAndReserve(ctx, 2, models.VelocityHourly, 100))
	})
}

func TestLimiter_WindowReset(t *testing.T) {
	ctx := context.Background()
	repo := newMemLimitRepo()
	l := NewLimiter(repo, testPolicy())

	current := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 100))
	assert.ErrorIs(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 1), domainerr.ErrLimitExceeded)

	// Past the window the counters reset before evaluating.
	current = current.Add(61 * time.Minute)
	require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 100))

	limit, err := repo.Find(1, models.VelocityHourly)
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, float64(100), limit.WindowAmount)
	assert.Equal(t, 1, limit.WindowCount)
	assert.Equal(t, current, limit.WindowStart)
}

func TestLimiter_ConcurrentReservations(t *testing.T) {
	// Four concurrent attempts of 30 against a 100 ceiling: exactly
	// three fit. A check-then-act race would let all four through.
	ctx := context.Background()
	l := NewLimiter(newMemLimitRepo(), testPolicy())

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.CheckAndReserve(ctx, 1, models.VelocityHourly, 30)
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domainerr.ErrLimitExceeded)
			rejected++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, rejected)
}

func TestLimiter_TemporaryLimitExpires(t *testing.T) {
	ctx := context.Background()
	repo := newMemLimitRepo()
	l := NewLimiter(repo, testPolicy())

	current := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	// Admin tightens the hourly ceiling for an hour.
	expiry := current.Add(time.Hour)
	require.NoError(t, l.SetLimit(1, models.VelocityHourly, 10, 1, &expiry))

	assert.ErrorIs(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 50), domainerr.ErrLimitExceeded)

	// Once expired the policy defaults apply again.
	current = current.Add(2 * time.Hour)
	require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 50))

	limit, err := repo.Find(1, models.VelocityHourly)
	require.NoError(t, err)
	assert.Nil(t, limit.ExpiresAt)
	assert.Equal(t, float64(100), limit.MaxAmount)
}

func TestLimiter_InactiveLimitSkipsEnforcement(t *testing.T) {
	ctx := context.Background()
	repo := newMemLimitRepo()
	l := NewLimiter(repo, testPolicy())

	require.NoError(t, repo.Upsert(&models.VelocityLimit{
		UserID:      1,
		LimitType:   models.VelocityHourly,
		WindowStart: time.Now(),
		MaxAmount:   10,
		MaxCount:    1,
		Active:      false,
	}))

	require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 9999))
}

func TestLimiter_CheckAll(t *testing.T) {
	ctx := context.Background()
	policy := testPolicy()
	policy.VelocityCeilings["daily"] = config.VelocityCeiling{MaxAmount: 50, MaxCount: 50}
	l := NewLimiter(newMemLimitRepo(), policy)

	// Passes hourly but violates daily; the action must be blocked.
	err := l.CheckAll(ctx, 1, 80)
	assert.ErrorIs(t, err, domainerr.ErrLimitExceeded)
}

func TestLimiter_ReleaseLimit(t *testing.T) {
	ctx := context.Background()
	repo := newMemLimitRepo()
	l := NewLimiter(repo, testPolicy())

	require.NoError(t, l.SetLimit(1, models.VelocityHourly, 10, 1, nil))
	assert.ErrorIs(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 50), domainerr.ErrLimitExceeded)

	require.NoError(t, l.ReleaseLimit(ctx, 1, models.VelocityHourly))

	// Defaults restored; the action now fits the policy ceiling.
	require.NoError(t, l.CheckAndReserve(ctx, 1, models.VelocityHourly, 50))

	limit, err := repo.Find(1, models.VelocityHourly)
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, float64(100), limit.MaxAmount)
	assert.Nil(t, limit.ExpiresAt)
}
