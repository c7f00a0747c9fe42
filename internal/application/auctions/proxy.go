package auctions

import (
	"context"
	"errors"
	"fmt"

	"auction-backend/internal/application/proxy"
	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SetProxyBid registers or updates the bidder's standing maximum and resolves it against the
// current state immediately.
func (s *Service) SetProxyBid(ctx context.Context, auctionID, bidderID uuid.UUID, maxAmount int64) (*BidResult, error) {
	if bidderID == uuid.Nil {
		return nil, domain.NewValidationError("bidder_id is required")
	}
	if maxAmount <= 0 {
		return nil, domain.NewValidationError("max_amount must be positive")
	}

	var result *BidResult
	err := s.transact(ctx, "auctions: set proxy bid", func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if err := s.checkOpen(auction); err != nil {
			return err
		}
		if bidderID == auction.SellerID {
			return domain.NewValidationError("seller cannot bid on their own auction")
		}
		if maxAmount <= auction.CurrentHighestBid {
			return &domain.ConflictError{CurrentHighestBid: auction.CurrentHighestBid, HighestBidderID: auction.CurrentHighestBidderID}
		}
		if err := s.upsertProxy(tx, auctionID, bidderID, maxAmount); err != nil {
			return err
		}

		round := &bidRound{auction: auction}
		if err := s.resolveProxiesTx(ctx, tx, round, bidderID); err != nil {
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

// CancelProxyBid deactivates the bidder's standing maximum. Bids already placed on its behalf stay.
func (s *Service) CancelProxyBid(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	return s.transact(ctx, "auctions: cancel proxy bid", func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if auction.Status != domain.AuctionStatusActive {
			return domain.NewStateError("auction %s is %s", auction.AuctionID, auction.Status)
		}
		res := tx.Model(&domain.ProxyBid{}).
			Where("auction_id = ? AND bidder_id = ? AND is_active = ?", auctionID, bidderID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NewValidationError("no active proxy bid for bidder %s", bidderID)
		}
		return nil
	})
}

func (s *Service) checkOpen(a *domain.Auction) error {
	if a.Status != domain.AuctionStatusActive {
		return domain.NewStateError("auction %s is %s", a.AuctionID, a.Status)
	}
	if a.Expired(s.now()) {
		return domain.NewStateError("auction %s has ended", a.AuctionID)
	}
	return nil
}

// upsertProxy keeps one row per (auction, bidder). A changed or reactivated maximum counts as
// a fresh registration for tie-breaks.
func (s *Service) upsertProxy(tx *gorm.DB, auctionID, bidderID uuid.UUID, maxAmount int64) error {
	var existing domain.ProxyBid
	err := tx.Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&domain.ProxyBid{
			AuctionID:    auctionID,
			BidderID:     bidderID,
			MaxAmount:    maxAmount,
			IsActive:     true,
			RegisteredAt: s.now(),
		}).Error
	}
	if err != nil {
		return err
	}
	if existing.MaxAmount != maxAmount || !existing.IsActive {
		existing.RegisteredAt = s.now()
	}
	existing.MaxAmount = maxAmount
	existing.IsActive = true
	return tx.Save(&existing).Error
}

// resolveProxiesTx runs the engine against the locked auction and places every step it
// returns. A non-triggering proxy that cannot fund its step is deactivated and resolution
// starts over from the current state; the trigger's own shortfall fails the call.
func (s *Service) resolveProxiesTx(ctx context.Context, tx *gorm.DB, round *bidRound, trigger uuid.UUID) error {
	a := round.auction
	for {
		active, err := activeProxies(tx, a.AuctionID)
		if err != nil {
			return err
		}
		state := proxy.State{CurrentBid: a.CurrentHighestBid}
		if a.CurrentHighestBidderID != nil {
			state.LeaderID = *a.CurrentHighestBidderID
		}
		steps, err := proxy.Resolve(state, active, s.Config.Proxy)
		if err != nil {
			return domain.Internal("auctions: resolve proxies", err)
		}

		retry := false
		for _, step := range steps {
			err := s.placeBidTx(ctx, tx, round, step.BidderID, step.Amount, true)
			if err == nil {
				continue
			}
			var short *domain.InsufficientFundsError
			if errors.As(err, &short) && step.BidderID != trigger {
				if err := deactivateProxy(tx, a.AuctionID, step.BidderID); err != nil {
					return err
				}
				retry = true
				break
			}
			return err
		}
		if retry {
			continue
		}
		if len(steps) == 0 {
			return nil
		}
		want := proxy.Final(state, steps)
		if a.CurrentHighestBid != want.CurrentBid || !a.IsLeader(want.LeaderID) {
			return domain.Internal("auctions: resolve proxies",
				fmt.Errorf("placed steps left %d, engine resolved %d to %s", a.CurrentHighestBid, want.CurrentBid, want.LeaderID))
		}
		log.Debug().Str("auction_id", a.AuctionID.String()).Str("leader_id", want.LeaderID.String()).
			Int64("amount", want.CurrentBid).Int("steps", len(steps)).Msg("proxies resolved")
		return nil
	}
}

func activeProxies(tx *gorm.DB, auctionID uuid.UUID) ([]proxy.Proxy, error) {
	var rows []domain.ProxyBid
	if err := tx.Where("auction_id = ? AND is_active = ?", auctionID, true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]proxy.Proxy, 0, len(rows))
	for _, r := range rows {
		out = append(out, proxy.Proxy{BidderID: r.BidderID, MaxAmount: r.MaxAmount, RegisteredAt: r.RegisteredAt})
	}
	return out, nil
}

func deactivateProxy(tx *gorm.DB, auctionID, bidderID uuid.UUID) error {
	return tx.Model(&domain.ProxyBid{}).
		Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).
		Update("is_active", false).Error
}
