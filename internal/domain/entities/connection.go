package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

const (
	// PendingConnectionTTL is how long a one-directional intent stays
	// matchable before the reaper removes it.
	PendingConnectionTTL = 10 * time.Minute

	// MaxPendingPerPair caps unresolved intents between one unordered pair.
	MaxPendingPerPair = 3

	// MaxUnconfirmedPerPair caps optimistic rows awaiting on-chain
	// confirmation between one unordered pair.
	MaxUnconfirmedPerPair = 50
)

// PendingConnection is a time-boxed request from one user to connect
// with another. Rows are deleted on match or expiry, never updated.
type PendingConnection struct {
	ID         uuid.UUID `json:"id"`
	FromUserID int64     `json:"fromUserId"`
	ToUserID   int64     `json:"toUserId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// RemainingTTL reports how long the intent stays matchable.
func (p *PendingConnection) RemainingTTL(now time.Time) time.Duration {
	if d := p.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// OptimisticConnection records a matched pair as connected before the
// on-chain attestation confirms. UserAID < UserBID always.
type OptimisticConnection struct {
	ID              uuid.UUID   `json:"id"`
	UserAID         int64       `json:"userAId"`
	UserBID         int64       `json:"userBId"`
	Confirmed       bool        `json:"confirmed"`
	ConfirmedTxHash null.String `json:"confirmedTxHash,omitempty"`
	ConfirmedAt     null.Time   `json:"confirmedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// ConnectionMatch bundles the two users and the two reciprocal intents
// found by one matcher pass.
type ConnectionMatch struct {
	UserA    *User
	UserB    *User
	PendingA *PendingConnection // UserA -> UserB
	PendingB *PendingConnection // UserB -> UserA
}

// ConnectionIntentInput is the request body for submitting an intent.
type ConnectionIntentInput struct {
	FromAddress string `json:"fromAddress" binding:"required"`
	ToAddress   string `json:"toAddress" binding:"required"`
}

// PendingIntentView is the API shape of one pending intent, seen from
// the queried user's side.
type PendingIntentView struct {
	ID             uuid.UUID `json:"id"`
	PartnerAddress string    `json:"partnerAddress"`
	Direction      string    `json:"direction"` // "outgoing" or "incoming"
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	TTLSeconds     int64     `json:"ttlSeconds"`
}

// ConnectionView is the API shape of one optimistic connection, seen
// from the queried user's side.
type ConnectionView struct {
	ID              uuid.UUID   `json:"id"`
	PartnerAddress  string      `json:"partnerAddress"`
	Confirmed       bool        `json:"confirmed"`
	ConfirmedTxHash null.String `json:"confirmedTxHash,omitempty"`
	ConfirmedAt     null.Time   `json:"confirmedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// OrderedUserIDs returns the pair in canonical (min, max) order.
func OrderedUserIDs(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}
