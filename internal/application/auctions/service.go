// Package auctions owns the auction lifecycle: bid placement, proxy resolution, the
// anti-snipe rule and settlement. Every write runs in one transaction holding the auction row lock.
package auctions

import (
	"context"
	"errors"
	"time"

	"auction-backend/internal/application/inventory"
	"auction-backend/internal/application/points"
	"auction-backend/internal/application/proxy"
	"auction-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Notifier is woken after every committed write so outbox events go out promptly.
type Notifier interface {
	Notify()
}

type Config struct {
	Proxy          proxy.Config
	SnipeWindow    time.Duration
	SnipeExtension time.Duration
	// MaxExtensions caps anti-snipe extensions per auction. Zero means unbounded.
	MaxExtensions int
	SweepBatch    int
}

func DefaultConfig() Config {
	return Config{
		Proxy:          proxy.Config{Increment: proxy.DefaultIncrement, MaxSteps: proxy.DefaultMaxSteps},
		SnipeWindow:    60 * time.Second,
		SnipeExtension: 30 * time.Second,
		MaxExtensions:  20,
		SweepBatch:     100,
	}
}

type Service struct {
	DB        *gorm.DB
	Points    *points.Service
	Inventory inventory.Transferer
	Notifier  Notifier
	Config    Config
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// transact runs fn in a transaction. Failures outside the error taxonomy come back as
// InternalError; the notifier only fires after a commit.
func (s *Service) transact(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	if err := s.DB.WithContext(ctx).Transaction(fn); err != nil {
		err = domain.Internal(op, err)
		var internal *domain.InternalError
		if errors.As(err, &internal) {
			log.Error().Err(err).Str("op", op).Msg("auction transaction rolled back")
		}
		return err
	}
	if s.Notifier != nil {
		s.Notifier.Notify()
	}
	return nil
}
