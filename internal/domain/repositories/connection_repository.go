package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"together.backend/internal/domain/entities"
)

// PendingConnectionRepository owns the short-lived mutual-intent rows.
// The matcher is the only component that removes matched rows; the
// reaper removes expired ones.
type PendingConnectionRepository interface {
	Create(ctx context.Context, fromUserID, toUserID int64, expiresAt time.Time) (*entities.PendingConnection, error)
	// CountUnresolvedBetween counts unexpired rows in either direction
	// between the unordered pair.
	CountUnresolvedBetween(ctx context.Context, userA, userB int64) (int64, error)
	// FindMatches returns pairs with reciprocal unexpired intents,
	// oldest intent first. Expired rows never match.
	FindMatches(ctx context.Context) ([]*entities.ConnectionMatch, error)
	// DeleteByID removes one row and reports whether it still existed.
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
	ListByUser(ctx context.Context, userID int64) (outgoing, incoming []*entities.PendingConnection, err error)
}

// OptimisticConnectionRepository has exactly two writers: the matcher
// inserts unconfirmed rows, the watcher flips them confirmed.
type OptimisticConnectionRepository interface {
	Create(ctx context.Context, userA, userB int64) (*entities.OptimisticConnection, error)
	CountUnconfirmedBetween(ctx context.Context, userA, userB int64) (int64, error)
	CountUnconfirmed(ctx context.Context) (int64, error)
	// ConfirmOldest marks the oldest unconfirmed row for the pair whose
	// created_at falls inside [windowStart, windowEnd], recording the
	// confirming transaction. Returns false when nothing matched.
	ConfirmOldest(ctx context.Context, userA, userB int64, windowStart, windowEnd time.Time, txHash string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*entities.OptimisticConnection, error)
}
