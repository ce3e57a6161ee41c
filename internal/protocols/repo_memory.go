package protocols

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used when no database is configured.
type MemoryRepo struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Protocol
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUser: make(map[string]map[string]Protocol)}
}

func (r *MemoryRepo) Create(ctx context.Context, p Protocol) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	days := r.byUser[p.UserID]
	if days == nil {
		days = make(map[string]Protocol)
		r.byUser[p.UserID] = days
	}
	if _, ok := days[p.Day]; ok {
		return ErrAlreadyExists
	}
	days[p.Day] = cloneProtocol(p)
	return nil
}

func (r *MemoryRepo) Replace(ctx context.Context, p Protocol) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	days := r.byUser[p.UserID]
	if days == nil {
		days = make(map[string]Protocol)
		r.byUser[p.UserID] = days
	}
	days[p.Day] = cloneProtocol(p)
	return nil
}

func (r *MemoryRepo) GetForDay(ctx context.Context, userID, day string) (Protocol, error) {
	if err := ctx.Err(); err != nil {
		return Protocol{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[userID][day]
	if !ok {
		return Protocol{}, ErrNotFound
	}
	return cloneProtocol(p), nil
}

func (r *MemoryRepo) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]Protocol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := r.sorted(userID)
	sinceDay := DayOf(since)
	out := all[:0]
	for _, p := range all {
		if p.Day >= sinceDay {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Protocol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := r.sorted(userID)
	if offset >= len(all) {
		return []Protocol{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// sorted returns copies of the user's protocols, latest day first.
func (r *MemoryRepo) sorted(userID string) []Protocol {
	r.mu.RLock()
	days := r.byUser[userID]
	out := make([]Protocol, 0, len(days))
	for _, p := range days {
		out = append(out, cloneProtocol(p))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day == out[j].Day {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Day > out[j].Day
	})
	return out
}
