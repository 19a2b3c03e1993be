package models

import (
	"time"

	"github.com/google/uuid"
)

type Attestation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	AddressA       string    `gorm:"column:address_a;type:varchar(42);not null;index"`
	AddressB       string    `gorm:"column:address_b;type:varchar(42);not null;index"`
	EventTimestamp time.Time `gorm:"not null"`
	TxHash         string    `gorm:"type:varchar(66);not null;uniqueIndex:idx_attestation_event"`
	LogIndex       uint      `gorm:"not null;uniqueIndex:idx_attestation_event"`
	BlockNumber    uint64    `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null"`
}

type PairStrength struct {
	Address        string    `gorm:"type:varchar(42);primaryKey"`
	PartnerAddress string    `gorm:"type:varchar(42);primaryKey"`
	Count          int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type WatcherCursor struct {
	WatcherID          string    `gorm:"type:varchar(64);primaryKey"`
	LastProcessedBlock uint64    `gorm:"not null"`
	ChunkSize          uint64    `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}
