package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a process-local Locker used when redis is not configured.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
	seq    uint64
}

type lease struct {
	id        uint64
	expiresAt time.Time
}

// NewMemoryLocker constructs a MemoryLocker. A nil clock uses time.Now.
func NewMemoryLocker(now func() time.Time) *MemoryLocker {
	if now == nil {
		now = time.Now
	}
	return &MemoryLocker{leases: make(map[string]lease), now: now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expiresAt) {
		return nil, ErrLocked
	}
	l.seq++
	id := l.seq
	l.leases[key] = lease{id: id, expiresAt: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[key]; ok && cur.id == id {
			delete(l.leases, key)
		}
	}, nil
}

var _ Locker = (*MemoryLocker)(nil)
