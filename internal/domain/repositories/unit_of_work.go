package repositories

import (
	"context"
)

// UnitOfWork runs a function inside one database transaction. Match
// commits and event ingestion use it to keep their cross-row writes
// atomic.
type UnitOfWork interface {
	// Do executes fn within a transaction scope; repositories called
	// with the inner context join that transaction.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
