package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		wallet_address TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
}

func createConnectionTables(t *testing.T, db *gorm.DB) {
	createUserTable(t, db)
	mustExec(t, db, `CREATE TABLE pending_connections (
		id TEXT PRIMARY KEY,
		from_user_id INTEGER NOT NULL,
		to_user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);`)
	mustExec(t, db, `CREATE TABLE optimistic_connections (
		id TEXT PRIMARY KEY,
		user_a_id INTEGER NOT NULL,
		user_b_id INTEGER NOT NULL,
		confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		confirmed_tx_hash TEXT,
		confirmed_at DATETIME,
		created_at DATETIME NOT NULL
	);`)
}

func createAttestationTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE attestations (
		id TEXT PRIMARY KEY,
		address_a TEXT NOT NULL,
		address_b TEXT NOT NULL,
		event_timestamp DATETIME NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index INTEGER NOT NULL,
		block_number INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (tx_hash, log_index)
	);`)
	mustExec(t, db, `CREATE TABLE pair_strengths (
		address TEXT NOT NULL,
		partner_address TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (address, partner_address)
	);`)
	mustExec(t, db, `CREATE TABLE watcher_cursors (
		watcher_id TEXT PRIMARY KEY,
		last_processed_block INTEGER NOT NULL,
		chunk_size INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
}
