package protocols

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/shared/lock"
	"wellness-backend/internal/users"
)

var day1 = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepo
	users  *users.Service
	locker *lock.MemoryLocker
	clock  *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := engine.DefaultCatalog()
	require.NoError(t, err)
	clock := &testClock{now: day1}
	eng, err := engine.New(catalog, engine.WithClock(clock.Now))
	require.NoError(t, err)

	f := &fixture{
		repo:   NewMemoryRepo(),
		users:  users.NewService(users.NewMemoryRepo()),
		locker: lock.NewMemoryLocker(clock.Now),
		clock:  clock,
	}
	f.svc = &Service{
		Repo:   f.repo,
		Engine: eng,
		Users:  f.users,
		Locker: f.locker,
		Now:    clock.Now,
	}
	return f
}

func (f *fixture) setGLP1(t *testing.T, userID string) {
	t.Helper()
	_, err := f.users.UpdateMetadata(context.Background(), userID, users.Metadata{IsGLP1: true})
	require.NoError(t, err)
}

func stressInput(stress float64) GenerateInput {
	return GenerateInput{Signal: engine.DailySignal{Stress: stress}}
}

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }
