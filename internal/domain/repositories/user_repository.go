package repositories

import (
	"context"

	"together.backend/internal/domain/entities"
)

// UserRepository is the identity registry: one sequential id per wallet
// address, created on first sighting, never deleted.
type UserRepository interface {
	// Resolve returns the user for the address, creating it if unseen.
	// Concurrent first contact for the same address yields one row.
	Resolve(ctx context.Context, walletAddress string) (*entities.User, error)
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByWalletAddress(ctx context.Context, walletAddress string) (*entities.User, error)
}
