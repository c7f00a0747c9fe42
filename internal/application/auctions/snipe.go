package auctions

import (
	"time"

	"auction-backend/internal/domain"
)

// extendIfLate pushes endAt back by SnipeExtension when the call landed inside SnipeWindow.
// It is applied at most once per triggering call and stops once MaxExtensions is reached.
func (s *Service) extendIfLate(a *domain.Auction, now time.Time) bool {
	cfg := s.Config
	if cfg.SnipeExtension <= 0 {
		return false
	}
	if cfg.MaxExtensions > 0 && a.ExtensionCount >= cfg.MaxExtensions {
		return false
	}
	if a.EndAt.Sub(now) > cfg.SnipeWindow {
		return false
	}
	a.EndAt = a.EndAt.Add(cfg.SnipeExtension)
	a.ExtensionCount++
	return true
}
