package auctions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxEventPage = 500

type CreateAuctionInput struct {
	LotRef      string
	SellerID    uuid.UUID
	StartingBid int64
	EndAt       time.Time
}

// CreateAuction opens an ACTIVE auction. The standing bid starts at StartingBid with no leader.
func (s *Service) CreateAuction(ctx context.Context, in CreateAuctionInput) (*domain.Auction, error) {
	in.LotRef = strings.TrimSpace(in.LotRef)
	if in.LotRef == "" {
		return nil, domain.NewValidationError("lot_ref is required")
	}
	if in.SellerID == uuid.Nil {
		return nil, domain.NewValidationError("seller_id is required")
	}
	if in.StartingBid < 0 {
		return nil, domain.NewValidationError("starting_bid must not be negative")
	}
	if !in.EndAt.After(s.now()) {
		return nil, domain.NewValidationError("end_at must be in the future")
	}

	auction := &domain.Auction{
		LotRef:            in.LotRef,
		SellerID:          in.SellerID,
		StartingBid:       in.StartingBid,
		CurrentHighestBid: in.StartingBid,
		Status:            domain.AuctionStatusActive,
		EndAt:             in.EndAt.UTC(),
	}
	err := s.transact(ctx, "auctions: create", func(tx *gorm.DB) error {
		return tx.Create(auction).Error
	})
	if err != nil {
		return nil, err
	}
	return auction, nil
}

// GetAuction reads the committed auction row without locking it.
func (s *Service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	var auction domain.Auction
	if err := s.DB.WithContext(ctx).Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("auction %s not found", auctionID)
		}
		return nil, domain.Internal("auctions: get", err)
	}
	return &auction, nil
}

// ListBids returns the auction's bids in commit order.
func (s *Service) ListBids(ctx context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	var bids []domain.Bid
	if err := s.DB.WithContext(ctx).Where("auction_id = ?", auctionID).Order("sequence ASC").Find(&bids).Error; err != nil {
		return nil, domain.Internal("auctions: list bids", err)
	}
	return bids, nil
}

// ListEvents returns outbox events with a sequence greater than afterSeq, oldest first.
func (s *Service) ListEvents(ctx context.Context, auctionID uuid.UUID, afterSeq int64, limit int) ([]domain.AuctionEvent, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	var events []domain.AuctionEvent
	err := s.DB.WithContext(ctx).
		Where("auction_id = ? AND sequence > ?", auctionID, afterSeq).
		Order("sequence ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, domain.Internal("auctions: list events", err)
	}
	return events, nil
}

// lockAuction loads the auction under SELECT ... FOR UPDATE. Every writer goes through it.
func lockAuction(tx *gorm.DB, auctionID uuid.UUID) (*domain.Auction, error) {
	var auction domain.Auction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("auction_id = ?", auctionID).First(&auction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewValidationError("auction %s not found", auctionID)
	}
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// expiredRef is a sweep cursor: auctions are visited in (end_at, auction_id) order.
type expiredRef struct {
	AuctionID uuid.UUID
	EndAt     time.Time
}

// listExpired pages ACTIVE auctions past their deadline, starting after the cursor.
func (s *Service) listExpired(ctx context.Context, now time.Time, after *expiredRef, limit int) ([]expiredRef, error) {
	var refs []expiredRef
	q := s.DB.WithContext(ctx).Model(&domain.Auction{}).
		Select("auction_id", "end_at").
		Where("status = ? AND end_at <= ?", domain.AuctionStatusActive, now)
	if after != nil {
		q = q.Where("(end_at > ? OR (end_at = ? AND auction_id > ?))", after.EndAt, after.EndAt, after.AuctionID)
	}
	q = q.Order("end_at ASC, auction_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// saveAuction writes the mutable fields back. The status guard makes a write against an
// auction that was closed underneath us fail instead of reopening it.
func saveAuction(tx *gorm.DB, a *domain.Auction) error {
	res := tx.Model(&domain.Auction{}).
		Where("auction_id = ? AND status = ?", a.AuctionID, domain.AuctionStatusActive).
		Updates(map[string]interface{}{
			"current_highest_bid":       a.CurrentHighestBid,
			"current_highest_bidder_id": a.CurrentHighestBidderID,
			"status":                    a.Status,
			"end_at":                    a.EndAt,
			"bid_count":                 a.BidCount,
			"extension_count":           a.ExtensionCount,
			"event_seq":                 a.EventSeq,
			"winner_id":                 a.WinnerID,
			"final_amount":              a.FinalAmount,
			"closed_at":                 a.ClosedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.NewStateError("auction %s is no longer active", a.AuctionID)
	}
	return nil
}

// appendEvent writes an outbox row with the auction's next sequence. The caller saves the
// auction afterwards so event_seq is persisted in the same transaction.
func appendEvent(tx *gorm.DB, a *domain.Auction, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	a.EventSeq++
	return tx.Create(&domain.AuctionEvent{
		AuctionID: a.AuctionID,
		Sequence:  a.EventSeq,
		EventType: eventType,
		EventData: datatypes.JSON(payload),
	}).Error
}
