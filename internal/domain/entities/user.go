package entities

import (
	"time"
)

// User is the pipeline's internal identity for a wallet address.
// IDs are allocated sequentially on first contact and never reused.
type User struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
