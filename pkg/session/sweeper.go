package session

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper runs Store.Cleanup on a cron schedule.
type Sweeper struct {
	store   *Store
	cron    *cron.Cron
	logger  zerolog.Logger
	onSweep func(removed int)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepHook registers a callback invoked after every scheduled sweep with
// the number of removed sessions.
func WithSweepHook(fn func(removed int)) SweeperOption {
	return func(s *Sweeper) {
		s.onSweep = fn
	}
}

// NewSweeper creates a sweeper for store. schedule uses the standard cron
// syntax plus descriptors such as "@hourly" or "@every 30m".
func NewSweeper(store *Store, schedule string, logger zerolog.Logger, opts ...SweeperOption) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("sweeper requires a store")
	}

	s := &Sweeper{
		store:  store,
		cron:   cron.New(),
		logger: logger.With().Str("component", "session-sweeper").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep performs one cleanup pass.
func (s *Sweeper) Sweep() {
	removed := s.store.Cleanup()
	s.logger.Debug().
		Int("removed", removed).
		Int("remaining", s.store.Len()).
		Msg("session sweep finished")

	if s.onSweep != nil {
		s.onSweep(removed)
	}
}

// Run starts the schedule and blocks until ctx is done. A sweep that is in
// progress when ctx ends is allowed to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info().Msg("session sweeper started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("session sweeper stopped")
	return nil
}
