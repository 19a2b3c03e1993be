package models

import (
	"time"
)

type User struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `gorm:"type:varchar(42);not null;uniqueIndex"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
