package models

import (
	"time"

	"github.com/google/uuid"
)

type PendingConnection struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	FromUserID int64     `gorm:"not null;index:idx_pending_from_to"`
	ToUserID   int64     `gorm:"not null;index:idx_pending_from_to"`
	CreatedAt  time.Time `gorm:"not null;index"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

type OptimisticConnection struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserAID         int64     `gorm:"column:user_a_id;not null;index:idx_optimistic_pair"`
	UserBID         int64     `gorm:"column:user_b_id;not null;index:idx_optimistic_pair"`
	Confirmed       bool      `gorm:"not null;default:false;index"`
	ConfirmedTxHash *string   `gorm:"type:varchar(66)"`
	ConfirmedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null;index"`
}
