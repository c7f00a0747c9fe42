package auctions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-backend/internal/application/inventory"
	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Settlement is the finalized outcome of an auction. WinnerID and FinalAmount are nil when
// the lot went unsold.
type Settlement struct {
	AuctionID   uuid.UUID
	WinnerID    *uuid.UUID
	FinalAmount *int64
	ClosedAt    time.Time
	UnitSerial  int64
	// AlreadyClosed is set when the call found the auction closed and changed nothing.
	AlreadyClosed bool
}

type SweepResult struct {
	Scanned int
	Closed  int
	Failed  int
}

// CloseAuction settles the auction exactly once. Capturing the winner's points, transferring
// the lot and marking the auction CLOSED commit together or not at all; a closed auction
// returns its stored result.
func (s *Service) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*Settlement, error) {
	var result *Settlement
	err := s.transact(ctx, "auctions: close", func(tx *gorm.DB) error {
		a, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if a.Status == domain.AuctionStatusClosed {
			result, err = storedSettlement(tx, a)
			return err
		}

		now := s.now()
		var unit *domain.InventoryUnit
		keep := uuid.Nil
		if a.CurrentHighestBidderID == nil {
			unit, err = s.Inventory.ReturnUnsold(ctx, tx, a.AuctionID, a.LotRef, a.SellerID)
			if err != nil {
				return fmt.Errorf("inventory: return unsold: %w", err)
			}
		} else {
			winner := *a.CurrentHighestBidderID
			keep = winner
			lock, err := s.Points.ActiveLock(ctx, tx, winner, a.AuctionID)
			if err != nil {
				return err
			}
			if lock == nil || lock.Amount != a.CurrentHighestBid {
				return fmt.Errorf("winner %s holds no lock for the winning amount %d", winner, a.CurrentHighestBid)
			}
			if _, err := s.Points.Capture(ctx, tx, lock.LockID); err != nil {
				return err
			}
			unit, err = s.Inventory.Transfer(ctx, tx, inventory.TransferRequest{
				AuctionID: a.AuctionID,
				LotRef:    a.LotRef,
				SellerID:  a.SellerID,
				WinnerID:  winner,
			})
			if err != nil {
				return fmt.Errorf("inventory: transfer: %w", err)
			}
			final := a.CurrentHighestBid
			a.WinnerID = &winner
			a.FinalAmount = &final
		}

		if _, err := s.Points.ReleaseContext(ctx, tx, a.AuctionID, keep); err != nil {
			return err
		}
		a.Status = domain.AuctionStatusClosed
		a.ClosedAt = &now

		data := domain.AuctionSettledData{AuctionID: a.AuctionID, WinnerID: a.WinnerID}
		if a.FinalAmount != nil {
			data.FinalAmount = *a.FinalAmount
		}
		if err := appendEvent(tx, a, domain.EventAuctionSettled, data); err != nil {
			return err
		}
		if err := saveAuction(tx, a); err != nil {
			return err
		}

		result = settlementOf(a)
		if unit != nil {
			result.UnitSerial = unit.Serial
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := log.Info().Str("auction_id", auctionID.String()).Bool("already_closed", result.AlreadyClosed)
	if result.WinnerID != nil {
		ev = ev.Str("winner_id", result.WinnerID.String()).Int64("final_amount", *result.FinalAmount)
	}
	ev.Msg("auction settled")
	return result, nil
}

// CloseExpiredAuctions settles every ACTIVE auction whose endAt has passed. Auctions are read
// in pages of Config.SweepBatch behind a keyset cursor, so auctions that keep failing cannot
// crowd later ones out of the pass. Each auction settles in its own transaction; a failure
// leaves that auction ACTIVE for the next pass.
func (s *Service) CloseExpiredAuctions(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	batch := s.Config.SweepBatch
	res := &SweepResult{}
	var cursor *expiredRef
	for {
		refs, err := s.listExpired(ctx, now, cursor, batch)
		if err != nil {
			return res, domain.Internal("auctions: list expired", err)
		}
		res.Scanned += len(refs)
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			settlement, err := s.CloseAuction(ctx, ref.AuctionID)
			if err != nil {
				res.Failed++
				log.Error().Err(err).Str("auction_id", ref.AuctionID.String()).Msg("sweep: settlement failed")
				continue
			}
			if !settlement.AlreadyClosed {
				res.Closed++
			}
		}
		if batch <= 0 || len(refs) < batch {
			return res, nil
		}
		last := refs[len(refs)-1]
		cursor = &last
	}
}

func settlementOf(a *domain.Auction) *Settlement {
	out := &Settlement{
		AuctionID:   a.AuctionID,
		WinnerID:    a.WinnerID,
		FinalAmount: a.FinalAmount,
	}
	if a.ClosedAt != nil {
		out.ClosedAt = *a.ClosedAt
	}
	return out
}

func storedSettlement(tx *gorm.DB, a *domain.Auction) (*Settlement, error) {
	out := settlementOf(a)
	out.AlreadyClosed = true

	var unit domain.InventoryUnit
	err := tx.Where("auction_id = ?", a.AuctionID).First(&unit).Error
	switch {
	case err == nil:
		out.UnitSerial = unit.Serial
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return out, nil
}
