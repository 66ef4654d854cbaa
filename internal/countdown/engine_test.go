package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEngine runs the engine in a goroutine and returns a channel of
// its ticks plus a done channel closed when Run returns.
func startEngine(ctx context.Context, e *Engine) (<-chan Tick, <-chan struct{}) {
	ticks := make(chan Tick, 16)
	done := make(chan struct{})
	e.OnTick = func(t Tick) { ticks <- t }
	go func() {
		defer close(done)
		e.Run(ctx)
	}()
	return ticks, done
}

func recvTick(t *testing.T, ch <-chan Tick) Tick {
	t.Helper()
	select {
	case tick := <-ch:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return Tick{}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngineCountsDownAndExpiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	exp := clock.Now().Add(2 * time.Second)
	e := NewEngine(clock, &exp, 24*time.Hour)

	expired := 0
	e.OnExpired = func() { expired++ }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks, done := startEngine(ctx, e)

	first := recvTick(t, ticks)
	assert.Equal(t, 2*time.Second, first.Remaining)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	second := recvTick(t, ticks)
	assert.Equal(t, time.Second, second.Remaining)
	assert.True(t, second.Remaining < first.Remaining)

	clock.Advance(time.Second)
	last := recvTick(t, ticks)
	assert.True(t, last.Expired)
	assert.Zero(t, last.Remaining)

	waitDone(t, done)
	assert.Equal(t, 1, expired)

	// A second Run on the finished engine is a no-op.
	e.Run(ctx)
	select {
	case tick := <-ticks:
		t.Fatalf("unexpected tick after expiry: %+v", tick)
	default:
	}
	assert.Equal(t, 1, expired)
}

func TestEngineSetExpiryExtends(t *testing.T) {
	clock := clockwork.NewFakeClock()
	exp := clock.Now().Add(2 * time.Second)
	e := NewEngine(clock, &exp, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks, done := startEngine(ctx, e)

	recvTick(t, ticks)

	// An extension lands before the room runs out.
	e.SetExpiry(clock.Now().Add(time.Hour))

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	tick := recvTick(t, ticks)
	assert.False(t, tick.Expired)
	assert.Equal(t, time.Hour-time.Second, tick.Remaining)

	cancel()
	waitDone(t, done)
}

func TestEngineIndeterminateStopsWithoutExpiring(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, 24*time.Hour)

	expired := 0
	e.OnExpired = func() { expired++ }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks, done := startEngine(ctx, e)

	tick := recvTick(t, ticks)
	require.True(t, tick.Indeterminate)
	waitDone(t, done)
	assert.Zero(t, expired, "unknown expiry must not close the room")

	// SetExpiry after the indeterminate stop does not revive the engine.
	e.SetExpiry(clock.Now().Add(time.Minute))
	e.Run(ctx)
	select {
	case tick := <-ticks:
		t.Fatalf("unexpected tick: %+v", tick)
	default:
	}
}
