package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweeperInvalidSchedule(t *testing.T) {
	st := NewStore(DefaultConfig())

	_, err := NewSweeper(st, "not a schedule", zerolog.Nop())
	assert.Error(t, err)

	_, err = NewSweeper(nil, "@every 1m", zerolog.Nop())
	assert.Error(t, err)
}

func TestSweeperSweep(t *testing.T) {
	clock := newFakeClock()
	st := NewStore(Config{TTL: time.Minute, MaxExchanges: 5}, WithClock(clock.Now))
	st.GetOrCreate("old")

	var reported []int
	sw, err := NewSweeper(st, "@every 1h", zerolog.Nop(), WithSweepHook(func(removed int) {
		reported = append(reported, removed)
	}))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	sw.Sweep()
	sw.Sweep()

	assert.Equal(t, []int{1, 0}, reported)
	assert.Equal(t, 0, st.Len())
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	st := NewStore(DefaultConfig())
	sw, err := NewSweeper(st, "@every 1h", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sw.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
