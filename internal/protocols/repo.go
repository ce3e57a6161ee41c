package protocols

import (
	"context"
	"time"
)

// Repo persists protocols. At most one protocol exists per user and day.
type Repo interface {
	Create(ctx context.Context, p Protocol) error
	// Replace swaps the user's protocol for p.Day with p, creating it when absent.
	Replace(ctx context.Context, p Protocol) error
	GetForDay(ctx context.Context, userID, day string) (Protocol, error)
	// ListByUserSince returns protocols whose day is on or after the UTC day of
	// since, latest day first.
	ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]Protocol, error)
	// ListByUser pages through all of a user's protocols, latest day first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Protocol, error)
}
