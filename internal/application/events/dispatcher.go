package events

import (
	"context"
	"time"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultDispatchInterval = time.Second
	DefaultDispatchBatch    = 200
	DefaultLeaseTTL         = 30 * time.Second
)

// Dispatcher polls undispatched outbox rows and hands them to every sink. A Notify after
// commit shortcuts the poll interval.
//
// Several dispatchers may share one database. Each auction is leased to one of them at a
// time, so an auction's events leave in sequence order no matter how many instances run.
// LeaseTTL must outlast the slowest sink call.
type Dispatcher struct {
	DB       *gorm.DB
	Sinks    []Sink
	Interval time.Duration
	Batch    int
	LeaseTTL time.Duration
	// Owner names this instance on the leases it holds.
	Owner string
	Now   func() time.Time

	wake chan struct{}
}

func NewDispatcher(db *gorm.DB, interval time.Duration, batch int, sinks ...Sink) *Dispatcher {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	if batch <= 0 {
		batch = DefaultDispatchBatch
	}
	return &Dispatcher{
		DB:       db,
		Sinks:    sinks,
		Interval: interval,
		Batch:    batch,
		LeaseTTL: DefaultLeaseTTL,
		Owner:    uuid.NewString(),
		wake:     make(chan struct{}, 1),
	}
}

// Notify never blocks; wake-ups that arrive while one is pending coalesce.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run dispatches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
		if _, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("event dispatch failed")
		}
	}
}

// DispatchPending publishes up to Batch events and marks the delivered rows. Auctions leased
// by another dispatcher are skipped. Once an event of an auction fails, later events of that
// auction wait for the next pass.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	budget := d.Batch
	if budget <= 0 {
		budget = DefaultDispatchBatch
	}

	var auctionIDs []uuid.UUID
	err := d.DB.WithContext(ctx).Model(&domain.AuctionEvent{}).
		Where("dispatched_at IS NULL").
		Group("auction_id").
		Order(`MIN("createdAt") ASC`).
		Limit(budget).
		Pluck("auction_id", &auctionIDs).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, auctionID := range auctionIDs {
		if budget-sent <= 0 || ctx.Err() != nil {
			break
		}
		claimed, err := d.claim(ctx, auctionID)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}
		n, err := d.dispatchAuction(ctx, auctionID, budget-sent)
		sent += n
		if rerr := d.release(auctionID); rerr != nil {
			log.Warn().Err(rerr).Str("auction_id", auctionID.String()).Msg("event dispatch: lease release failed")
		}
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// dispatchAuction delivers the auction's pending events in sequence while the lease is held.
func (d *Dispatcher) dispatchAuction(ctx context.Context, auctionID uuid.UUID, limit int) (int, error) {
	var rows []domain.AuctionEvent
	err := d.DB.WithContext(ctx).
		Where("auction_id = ? AND dispatched_at IS NULL", auctionID).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	var delivered []uuid.UUID
	for _, row := range rows {
		// renewing before every publish keeps the lease alive and tells us if it was taken over
		held, err := d.claim(ctx, auctionID)
		if err != nil || !held {
			break
		}
		if err := d.publish(ctx, FromEvent(row)); err != nil {
			log.Warn().Err(err).Str("auction_id", auctionID.String()).Int64("sequence", row.Sequence).
				Msg("event dispatch: sink failed, will retry")
			break
		}
		delivered = append(delivered, row.EventID)
	}
	if len(delivered) == 0 {
		return 0, nil
	}
	err = d.DB.WithContext(context.WithoutCancel(ctx)).Model(&domain.AuctionEvent{}).
		Where("event_id IN ?", delivered).
		Update("dispatched_at", d.now()).Error
	if err != nil {
		return 0, err
	}
	return len(delivered), nil
}

// claim takes the auction's lease, or extends it when this dispatcher already holds it.
// An expired lease of another owner is taken over.
func (d *Dispatcher) claim(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	now := d.now()
	expires := now.Add(d.leaseTTL()).UnixMilli()

	res := d.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.DispatchLease{AuctionID: auctionID, Owner: d.Owner, ExpiresAtMs: expires})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = d.DB.WithContext(ctx).Model(&domain.DispatchLease{}).
		Where("auction_id = ? AND (owner = ? OR expires_at_ms <= ?)", auctionID, d.Owner, now.UnixMilli()).
		Updates(map[string]interface{}{"owner": d.Owner, "expires_at_ms": expires})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *Dispatcher) release(auctionID uuid.UUID) error {
	return d.DB.Where("auction_id = ? AND owner = ?", auctionID, d.Owner).
		Delete(&domain.DispatchLease{}).Error
}

func (d *Dispatcher) leaseTTL() time.Duration {
	if d.LeaseTTL <= 0 {
		return DefaultLeaseTTL
	}
	return d.LeaseTTL
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) publish(ctx context.Context, msg Message) error {
	for _, sink := range d.Sinks {
		if err := sink.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
