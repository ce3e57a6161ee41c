package users

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	now := time.Now().UTC()
	if !ok {
		user.CreatedAt = now
	} else {
		user.CreatedAt = existing.CreatedAt
		user.Metadata = existing.Metadata
	}
	user.UpdatedAt = now
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	user.Metadata.Tags = append([]string(nil), user.Metadata.Tags...)
	return user, nil
}

// UpdateMetadata replaces the user's metadata, creating the user when absent.
func (r *MemoryRepo) UpdateMetadata(ctx context.Context, userID string, meta Metadata) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	user, ok := r.users[userID]
	if !ok {
		user = User{ID: userID, CreatedAt: now}
	}
	user.Metadata = Metadata{IsGLP1: meta.IsGLP1, Tags: append([]string(nil), meta.Tags...)}
	user.UpdatedAt = now
	r.users[userID] = user
	return user, nil
}
