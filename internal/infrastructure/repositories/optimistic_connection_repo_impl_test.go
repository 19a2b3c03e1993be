package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptimisticConnectionRepository_CreateCanonicalOrder(t *testing.T) {
	db := newTestDB(t)
	createConnectionTables(t, db)
	repo := NewOptimisticConnectionRepository(db)
	ctx := context.Background()

	conn, err := repo.Create(ctx, 7, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), conn.UserAID)
	require.Equal(t, int64(7), conn.UserBID)
	require.False(t, conn.Confirmed)
}

func TestOptimisticConnectionRepository_CountUnconfirmedBetween(t *testing.T) {
	db := newTestDB(t)
	createConnectionTables(t, db)
	repo := NewOptimisticConnectionRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, 5, 7)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 7, 5)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 5, 9)
	require.NoError(t, err)

	count, err := repo.CountUnconfirmedBetween(ctx, 7, 5)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	total, err := repo.CountUnconfirmed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
}

func TestOptimisticConnectionRepository_ConfirmOldestInWindow(t *testing.T) {
	db := newTestDB(t)
	createConnectionTables(t, db)
	repo := NewOptimisticConnectionRepository(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, 5, 7)
	require.NoError(t, err)
	second, err := repo.Create(ctx, 5, 7)
	require.NoError(t, err)
	mustExec(t, db, `UPDATE optimistic_connections SET created_at = ? WHERE id = ?`,
		time.Now().Add(-10*time.Minute), first.ID.String())

	now := time.Now()
	ok, err := repo.ConfirmOldest(ctx, 7, 5, now.Add(-30*time.Minute), now.Add(30*time.Minute), "0xtx1")
	require.NoError(t, err)
	require.True(t, ok)

	// The older row was taken; the newer row is still unconfirmed.
	count, err := repo.CountUnconfirmedBetween(ctx, 5, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	conns, err := repo.ListByUser(ctx, 5)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	for _, c := range conns {
		if c.ID == first.ID {
			require.True(t, c.Confirmed)
			require.Equal(t, "0xtx1", c.ConfirmedTxHash.String)
			require.True(t, c.ConfirmedAt.Valid)
		}
		if c.ID == second.ID {
			require.False(t, c.Confirmed)
		}
	}
}

func TestOptimisticConnectionRepository_ConfirmOutsideWindowIsNoop(t *testing.T) {
	db := newTestDB(t)
	createConnectionTables(t, db)
	repo := NewOptimisticConnectionRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, 5, 7)
	require.NoError(t, err)
	mustExec(t, db, `UPDATE optimistic_connections SET created_at = ? WHERE id = ?`,
		time.Now().Add(-2*time.Hour), created.ID.String())

	now := time.Now()
	ok, err := repo.ConfirmOldest(ctx, 5, 7, now.Add(-30*time.Minute), now.Add(30*time.Minute), "0xtx1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOptimisticConnectionRepository_ConfirmNeverReverts(t *testing.T) {
	db := newTestDB(t)
	createConnectionTables(t, db)
	repo := NewOptimisticConnectionRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, 5, 7)
	require.NoError(t, err)

	now := time.Now()
	ok, err := repo.ConfirmOldest(ctx, 5, 7, now.Add(-time.Hour), now.Add(time.Hour), "0xtx1")
	require.NoError(t, err)
	require.True(t, ok)

	// A replayed event finds no unconfirmed candidate.
	ok, err = repo.ConfirmOldest(ctx, 5, 7, now.Add(-time.Hour), now.Add(time.Hour), "0xtx1")
	require.NoError(t, err)
	require.False(t, ok)
}
