package lock

import (
	"context"
	"errors"
	"time"

	"wellness-backend/internal/shared/util"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock held")

// Locker hands out short-lived exclusive leases on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// DayKey builds the lease key for one user's protocol on one day. The user id
// is hashed so raw identifiers never reach the lock backend.
func DayKey(userID, day string) string {
	return "protocol:" + util.HashUserKey(userID) + ":" + day
}
