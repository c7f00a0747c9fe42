package auctions

import (
	"context"
	"time"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BidResult is the outcome of a triggering call after proxy resolution and the anti-snipe rule.
type BidResult struct {
	Accepted        bool
	Leading         bool
	HighestBid      int64
	HighestBidderID *uuid.UUID
	EndAt           time.Time
	Extended        bool
	// Bids are the rows written by this call in commit order, proxy steps included.
	Bids []domain.Bid
}

// bidRound accumulates the bids one triggering call writes against a locked auction.
type bidRound struct {
	auction  *domain.Auction
	placed   []domain.Bid
	extended bool
}

// PlaceBid places a manual bid and lets standing proxies answer it in the same transaction.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int64) (*BidResult, error) {
	if bidderID == uuid.Nil {
		return nil, domain.NewValidationError("bidder_id is required")
	}
	if amount <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}

	var result *BidResult
	err := s.transact(ctx, "auctions: place bid", func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		round := &bidRound{auction: auction}
		if err := s.placeBidTx(ctx, tx, round, bidderID, amount, false); err != nil {
			return err
		}
		if err := s.resolveProxiesTx(ctx, tx, round, uuid.Nil); err != nil {
			return err
		}
		if err := s.finishRound(tx, round); err != nil {
			return err
		}
		result = round.result(bidderID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// placeBidTx applies one bid to the locked auction: it checks the preconditions, moves the
// points lock from the previous leader to the bidder and appends the Bid row. A proxy step may
// raise the standing leader's own price; a manual bid by the leader is rejected.
func (s *Service) placeBidTx(ctx context.Context, tx *gorm.DB, round *bidRound, bidderID uuid.UUID, amount int64, isProxy bool) error {
	a := round.auction
	if a.Status != domain.AuctionStatusActive {
		return domain.NewStateError("auction %s is %s", a.AuctionID, a.Status)
	}
	if a.Expired(s.now()) {
		return domain.NewStateError("auction %s ended at %s", a.AuctionID, a.EndAt.Format(time.RFC3339))
	}
	if bidderID == a.SellerID {
		return domain.NewValidationError("seller cannot bid on their own auction")
	}
	if amount <= a.CurrentHighestBid {
		return &domain.ConflictError{CurrentHighestBid: a.CurrentHighestBid, HighestBidderID: a.CurrentHighestBidderID}
	}
	selfRaise := a.IsLeader(bidderID)
	if selfRaise && !isProxy {
		return domain.NewStateError("bidder already holds the highest bid")
	}

	if _, err := s.Points.Lock(ctx, tx, bidderID, amount, a.AuctionID); err != nil {
		return err
	}
	if !selfRaise && a.CurrentHighestBidderID != nil {
		if err := s.Points.ReleaseFor(ctx, tx, *a.CurrentHighestBidderID, a.AuctionID); err != nil {
			return err
		}
	}

	bid := domain.Bid{
		AuctionID:        a.AuctionID,
		Sequence:         a.BidCount + 1,
		BidderID:         bidderID,
		Amount:           amount,
		IsProxyGenerated: isProxy,
	}
	if err := tx.Create(&bid).Error; err != nil {
		return err
	}

	leader := bidderID
	a.BidCount = bid.Sequence
	a.CurrentHighestBid = amount
	a.CurrentHighestBidderID = &leader
	round.placed = append(round.placed, bid)
	return nil
}

// finishRound applies the anti-snipe rule once for the whole call, writes one BID_PLACED event
// per bid and persists the auction. A call that wrote no bid changes nothing.
func (s *Service) finishRound(tx *gorm.DB, round *bidRound) error {
	if len(round.placed) == 0 {
		return nil
	}
	a := round.auction
	round.extended = s.extendIfLate(a, s.now())

	for i, bid := range round.placed {
		data := domain.BidPlacedData{
			AuctionID:        a.AuctionID,
			BidderID:         bid.BidderID,
			Amount:           bid.Amount,
			IsProxyGenerated: bid.IsProxyGenerated,
		}
		if round.extended && i == len(round.placed)-1 {
			endAt := a.EndAt
			data.NewEndAt = &endAt
		}
		if err := appendEvent(tx, a, domain.EventBidPlaced, data); err != nil {
			return err
		}
	}
	return saveAuction(tx, a)
}

func (r *bidRound) result(caller uuid.UUID) *BidResult {
	a := r.auction
	return &BidResult{
		Accepted:        true,
		Leading:         a.IsLeader(caller),
		HighestBid:      a.CurrentHighestBid,
		HighestBidderID: a.CurrentHighestBidderID,
		EndAt:           a.EndAt,
		Extended:        r.extended,
		Bids:            r.placed,
	}
}
