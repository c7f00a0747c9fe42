// Package worker hosts the background loops started next to the HTTP server.
package worker

import (
	"context"
	"time"

	"auction-backend/internal/application/auctions"

	"github.com/rs/zerolog/log"
)

const DefaultSweepInterval = 5 * time.Second

// ExpiredCloser settles auctions whose deadline has passed.
type ExpiredCloser interface {
	CloseExpiredAuctions(ctx context.Context) (*auctions.SweepResult, error)
}

// Sweeper closes expired auctions on a fixed interval. A pass that fails is retried on the next tick.
type Sweeper struct {
	Auctions ExpiredCloser
	Interval time.Duration
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) *auctions.SweepResult {
	res, err := s.Auctions.CloseExpiredAuctions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("sweeper: pass failed")
		}
		return res
	}
	if res.Scanned > 0 {
		log.Info().Int("scanned", res.Scanned).Int("closed", res.Closed).Int("failed", res.Failed).Msg("sweeper: pass complete")
	}
	return res
}
