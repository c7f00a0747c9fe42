package domain

import "github.com/google/uuid"

// DispatchLease gives one dispatcher exclusive delivery of an auction's events until
// ExpiresAtMs. Expiry is stored as unix milliseconds so it compares the same on every dialect.
type DispatchLease struct {
	AuctionID   uuid.UUID `gorm:"column:auction_id;type:uuid;primaryKey" json:"auction_id"`
	Owner       string    `gorm:"column:owner;type:varchar(64);not null" json:"owner"`
	ExpiresAtMs int64     `gorm:"column:expires_at_ms;not null;index" json:"expires_at_ms"`
}

func (DispatchLease) TableName() string {
	return "DispatchLeases"
}
