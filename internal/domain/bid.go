package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid rows are append-only. Sequence is the 1-based commit position within the auction.
type Bid struct {
	BidID            uuid.UUID `gorm:"column:bid_id;type:uuid;primaryKey" json:"bid_id"`
	AuctionID        uuid.UUID `gorm:"column:auction_id;type:uuid;not null;uniqueIndex:idx_bid_auction_seq" json:"auction_id"`
	Sequence         int       `gorm:"column:sequence;not null;uniqueIndex:idx_bid_auction_seq" json:"sequence"`
	BidderID         uuid.UUID `gorm:"column:bidder_id;type:uuid;not null;index" json:"bidder_id"`
	Amount           int64     `gorm:"column:amount;not null" json:"amount"`
	IsProxyGenerated bool      `gorm:"column:is_proxy_generated;not null;default:false" json:"is_proxy_generated"`
	CreatedAt        time.Time `gorm:"column:createdAt" json:"createdAt"`
}

func (Bid) TableName() string {
	return "Bids"
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.BidID == uuid.Nil {
		b.BidID = uuid.New()
	}
	return nil
}

// ProxyBid is a bidder's standing maximum. One row per (auction, bidder).
// RegisteredAt moves whenever MaxAmount changes and decides ties between equal maximums.
type ProxyBid struct {
	ProxyBidID   uuid.UUID `gorm:"column:proxy_bid_id;type:uuid;primaryKey" json:"proxy_bid_id"`
	AuctionID    uuid.UUID `gorm:"column:auction_id;type:uuid;not null;uniqueIndex:idx_proxy_auction_bidder" json:"auction_id"`
	BidderID     uuid.UUID `gorm:"column:bidder_id;type:uuid;not null;uniqueIndex:idx_proxy_auction_bidder" json:"bidder_id"`
	MaxAmount    int64     `gorm:"column:max_amount;not null" json:"max_amount"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	RegisteredAt time.Time `gorm:"column:registered_at;not null" json:"registered_at"`
	CreatedAt    time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ProxyBid) TableName() string {
	return "ProxyBids"
}

func (p *ProxyBid) BeforeCreate(tx *gorm.DB) error {
	if p.ProxyBidID == uuid.Nil {
		p.ProxyBidID = uuid.New()
	}
	return nil
}
