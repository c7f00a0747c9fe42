package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventBidPlaced      = "BID_PLACED"
	EventAuctionSettled = "AUCTION_SETTLED"
)

// AuctionEvent is an outbox row written in the same transaction as the change it describes.
// Sequence is per auction and follows commit order; DispatchedAt is set once relayed.
type AuctionEvent struct {
	EventID      uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	AuctionID    uuid.UUID      `gorm:"column:auction_id;type:uuid;not null;uniqueIndex:idx_event_auction_seq" json:"auction_id"`
	Sequence     int64          `gorm:"column:sequence;not null;uniqueIndex:idx_event_auction_seq" json:"sequence"`
	EventType    string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData    datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	CreatedAt    time.Time      `gorm:"column:createdAt" json:"createdAt"`
	DispatchedAt *time.Time     `gorm:"column:dispatched_at;index" json:"dispatched_at"`
}

func (AuctionEvent) TableName() string {
	return "AuctionEvents"
}

func (e *AuctionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}

// BidPlacedData is the payload of a BID_PLACED event.
type BidPlacedData struct {
	AuctionID        uuid.UUID  `json:"auction_id"`
	BidderID         uuid.UUID  `json:"bidder_id"`
	Amount           int64      `json:"amount"`
	IsProxyGenerated bool       `json:"is_proxy_generated"`
	NewEndAt         *time.Time `json:"new_end_at,omitempty"`
}

// AuctionSettledData is the payload of an AUCTION_SETTLED event. WinnerID is nil when unsold.
type AuctionSettledData struct {
	AuctionID   uuid.UUID  `json:"auction_id"`
	WinnerID    *uuid.UUID `json:"winner_id"`
	FinalAmount int64      `json:"final_amount"`
}
