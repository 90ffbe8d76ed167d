package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/models"
)

// WarningNotifier delivers subscription expiry warnings
type WarningNotifier interface {
	SendExpiryWarning(ctx context.Context, sub *models.SubscriptionView) error
}

// Sweeper periodically expires overdue subscriptions and warns accounts
// whose period is about to end
type Sweeper struct {
	manager     *Manager
	notifier    WarningNotifier
	interval    time.Duration
	warningDays int

	// Warned once per process lifetime per billing window
	warned map[uuid.UUID]time.Time
}

// NewSweeper creates a new subscription sweeper
func NewSweeper(manager *Manager, notifier WarningNotifier, interval time.Duration, warningDays int) *Sweeper {
	return &Sweeper{
		manager:     manager,
		notifier:    notifier,
		interval:    interval,
		warningDays: warningDays,
		warned:      make(map[uuid.UUID]time.Time),
	}
}

// Run runs the sweep loop until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("Starting subscription sweeper")

	// Sweep once at startup so a long interval cannot delay expiry
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Subscription sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.manager.SweepExpired(ctx); err != nil {
		log.Error().Err(err).Msg("Subscription sweep failed")
	}

	if s.notifier == nil {
		return
	}

	expiring, err := s.manager.ListExpiring(ctx, s.warningDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expiring subscriptions")
		return
	}

	for _, sub := range expiring {
		if end, ok := s.warned[sub.ID]; ok && end.Equal(sub.PeriodEnd) {
			continue
		}

		if err := s.notifier.SendExpiryWarning(ctx, sub); err != nil {
			log.Error().Err(err).Str("email", sub.AccountEmail).
				Msg("Failed to send expiry warning")
			continue
		}
		s.warned[sub.ID] = sub.PeriodEnd
	}
}
