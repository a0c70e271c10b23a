package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// defaultCooldown is how long a failed backend is skipped before it is
// probed again.
const defaultCooldown = 30 * time.Second

// ErrNoBackend is returned when every backend in a chain is unavailable.
var ErrNoBackend = errors.New("no inference backend available")

type chainEntry struct {
	name      string
	svc       InferenceService
	failedAt  time.Time
	hasFailed bool
}

// FallbackService tries its backends in order: the local model first, then
// a hosted one. A backend that fails is skipped for a cooldown period so a
// dead local daemon does not add a probe timeout to every question.
type FallbackService struct {
	mu       sync.Mutex
	entries  []*chainEntry
	cooldown time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// FallbackOption configures a FallbackService.
type FallbackOption func(*FallbackService)

// WithCooldown sets how long a failed backend is skipped.
func WithCooldown(d time.Duration) FallbackOption {
	return func(f *FallbackService) {
		f.cooldown = d
	}
}

// WithFallbackLogger sets the logger.
func WithFallbackLogger(logger zerolog.Logger) FallbackOption {
	return func(f *FallbackService) {
		f.logger = logger
	}
}

func withFallbackClock(now func() time.Time) FallbackOption {
	return func(f *FallbackService) {
		f.now = now
	}
}

// NewFallbackService creates a chain of primary followed by fallback.
// Nil services are left out.
func NewFallbackService(primaryName string, primary InferenceService, fallbackName string, fallback InferenceService, opts ...FallbackOption) *FallbackService {
	f := &FallbackService{
		cooldown: defaultCooldown,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	if primary != nil {
		f.entries = append(f.entries, &chainEntry{name: primaryName, svc: primary})
	}
	if fallback != nil {
		f.entries = append(f.entries, &chainEntry{name: fallbackName, svc: fallback})
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Generate answers with the first backend that is available and succeeds.
func (f *FallbackService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var errs []error
	for _, e := range f.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.svc.Available() {
			f.markFailed(e)
			errs = append(errs, fmt.Errorf("%s: unavailable", e.name))
			continue
		}

		resp, err := e.svc.Generate(ctx, req)
		if err == nil {
			f.markHealthy(e)
			f.logger.Debug().Str("backend", e.name).Msg("generated answer")
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		f.markFailed(e)
		f.logger.Warn().Err(err).Str("backend", e.name).Msg("backend failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
	}

	if len(errs) == 0 {
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}

// Available reports whether any backend in the chain answers.
func (f *FallbackService) Available() bool {
	for _, e := range f.entries {
		if e.svc.Available() {
			return true
		}
	}
	return false
}

// Backends returns the backend names in the order they are tried.
func (f *FallbackService) Backends() []string {
	names := make([]string, len(f.entries))
	for i, e := range f.entries {
		names[i] = e.name
	}
	return names
}

// candidates returns the backends not cooling down. When all are cooling
// down the full chain is returned so a request is never refused outright.
func (f *FallbackService) candidates() []*chainEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]*chainEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if e.hasFailed && now.Sub(e.failedAt) < f.cooldown {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return f.entries
	}
	return out
}

func (f *FallbackService) markFailed(e *chainEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.hasFailed = true
	e.failedAt = f.now()
}

func (f *FallbackService) markHealthy(e *chainEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.hasFailed = false
}
