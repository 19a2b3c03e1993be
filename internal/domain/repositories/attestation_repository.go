package repositories

import (
	"context"

	"together.backend/internal/domain/entities"
)

// AttestationRepository owns the confirmed-event read model. Only the
// chain watcher writes here.
type AttestationRepository interface {
	// Insert stores the attestation unless (tx_hash, log_index) is
	// already present. Returns false on the duplicate, true on insert.
	Insert(ctx context.Context, att *entities.Attestation) (bool, error)
	Exists(ctx context.Context, txHash string, logIndex uint) (bool, error)
	ListByAddress(ctx context.Context, address string, limit, offset int) ([]*entities.Attestation, int, error)
}

// PairStrengthRepository maintains the derived per-pair meeting counts.
type PairStrengthRepository interface {
	// IncrementBoth bumps (a,b) and (b,a) by one, creating rows as needed.
	IncrementBoth(ctx context.Context, addressA, addressB string) error
	ListByAddress(ctx context.Context, address string) ([]*entities.PairStrength, error)
	GetCount(ctx context.Context, address, partner string) (int64, error)
}

// WatcherCursorRepository persists the resumable scan position.
type WatcherCursorRepository interface {
	Get(ctx context.Context, watcherID string) (*entities.WatcherCursor, error)
	// Save upserts the cursor. last_processed_block must never move
	// backward; callers only pass the top of a committed chunk.
	Save(ctx context.Context, cursor *entities.WatcherCursor) error
	Delete(ctx context.Context, watcherID string) error
}
