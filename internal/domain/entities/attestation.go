package entities

import (
	"time"

	"github.com/google/uuid"
)

// Attestation is one confirmed on-chain "together" event. Rows are
// written only by the chain watcher and are immutable. Repeat meetings
// between the same pair are legitimate; the dedup key is the event
// itself, (tx_hash, log_index).
type Attestation struct {
	ID             uuid.UUID `json:"id"`
	AddressA       string    `json:"addressA"`
	AddressB       string    `json:"addressB"`
	EventTimestamp time.Time `json:"eventTimestamp"`
	TxHash         string    `json:"txHash"`
	LogIndex       uint      `json:"logIndex"`
	BlockNumber    uint64    `json:"blockNumber"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PairStrength is a derived aggregate: how many attestations contain
// both addresses. Rebuildable by replaying attestation rows.
type PairStrength struct {
	Address        string `json:"address"`
	PartnerAddress string `json:"partnerAddress"`
	Count          int64  `json:"count"`
}

// WatcherCursor is the persisted scan position of one watcher instance.
// LastProcessedBlock only moves forward.
type WatcherCursor struct {
	WatcherID          string    `json:"watcherId"`
	LastProcessedBlock uint64    `json:"lastProcessedBlock"`
	ChunkSize          uint64    `json:"chunkSize"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
