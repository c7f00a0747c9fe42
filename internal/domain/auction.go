package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuctionStatusActive = "ACTIVE"
	AuctionStatusClosed = "CLOSED"
)

// Auction is the single source of truth for the standing high bid. Rows are only
// written by bid placement, proxy resolution and settlement, always under a row lock.
type Auction struct {
	AuctionID              uuid.UUID  `gorm:"column:auction_id;type:uuid;primaryKey" json:"auction_id"`
	LotRef                 string     `gorm:"column:lot_ref;not null;index" json:"lot_ref"`
	SellerID               uuid.UUID  `gorm:"column:seller_id;type:uuid;not null" json:"seller_id"`
	StartingBid            int64      `gorm:"column:starting_bid;not null" json:"starting_bid"`
	CurrentHighestBid      int64      `gorm:"column:current_highest_bid;not null" json:"current_highest_bid"`
	CurrentHighestBidderID *uuid.UUID `gorm:"column:current_highest_bidder_id;type:uuid" json:"current_highest_bidder_id"`
	Status                 string     `gorm:"column:status;type:varchar(10);not null;default:'ACTIVE';index:idx_auction_status_end" json:"status"`
	EndAt                  time.Time  `gorm:"column:end_at;not null;index:idx_auction_status_end" json:"end_at"`
	BidCount               int        `gorm:"column:bid_count;not null;default:0" json:"bid_count"`
	ExtensionCount         int        `gorm:"column:extension_count;not null;default:0" json:"extension_count"`
	EventSeq               int64      `gorm:"column:event_seq;not null;default:0" json:"-"`
	WinnerID               *uuid.UUID `gorm:"column:winner_id;type:uuid" json:"winner_id"`
	FinalAmount            *int64     `gorm:"column:final_amount" json:"final_amount"`
	ClosedAt               *time.Time `gorm:"column:closed_at" json:"closed_at"`
	CreatedAt              time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt              time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Auction) TableName() string {
	return "Auctions"
}

func (a *Auction) BeforeCreate(tx *gorm.DB) error {
	if a.AuctionID == uuid.Nil {
		a.AuctionID = uuid.New()
	}
	return nil
}

// IsLeader reports whether userID currently holds the highest bid.
func (a *Auction) IsLeader(userID uuid.UUID) bool {
	return a.CurrentHighestBidderID != nil && *a.CurrentHighestBidderID == userID
}

// Expired reports whether bidding is over at now, whether or not the sweep has run.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndAt)
}
