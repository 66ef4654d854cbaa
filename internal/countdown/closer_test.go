package countdown

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for closer tests.
type memStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	closed map[string]bool
}

func newMemStore() *memStore {
	return &memStore{expiry: map[string]time.Time{}, closed: map[string]bool{}}
}

func (s *memStore) add(id string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry[id] = exp
}

func (s *memStore) NextExpiry(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next time.Time
	found := false
	for id, exp := range s.expiry {
		if s.closed[id] {
			continue
		}
		if !found || exp.Before(next) {
			next = exp
			found = true
		}
	}
	return next, found, nil
}

func (s *memStore) CloseDue(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, exp := range s.expiry {
		if s.closed[id] || exp.After(now) {
			continue
		}
		s.closed[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type chanNotifier struct{ ch chan string }

func (n *chanNotifier) RoomClosed(roomID string) { n.ch <- roomID }

func recvClosed(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for closure")
		return ""
	}
}

func TestCloserClosesDueRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newMemStore()
	store.add("room-a", clock.Now().Add(30*time.Second))
	notifier := &chanNotifier{ch: make(chan string, 4)}

	closer := NewCloser(clock, store, notifier)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go closer.Run(ctx)

	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	assert.Equal(t, "room-a", recvClosed(t, notifier.ch))
}

func TestCloserClosesEachRoomOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newMemStore()
	store.add("room-a", clock.Now().Add(10*time.Second))
	store.add("room-b", clock.Now().Add(20*time.Second))
	notifier := &chanNotifier{ch: make(chan string, 4)}

	closer := NewCloser(clock, store, notifier)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go closer.Run(ctx)

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	assert.Equal(t, "room-a", recvClosed(t, notifier.ch))

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	assert.Equal(t, "room-b", recvClosed(t, notifier.ch))

	// Further sweeps find nothing new.
	closer.Wake()
	select {
	case id := <-notifier.ch:
		t.Fatalf("room %s closed twice", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloserWakeTriggersImmediateSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newMemStore()
	notifier := &chanNotifier{ch: make(chan string, 4)}

	closer := NewCloser(clock, store, notifier)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go closer.Run(ctx)

	clock.BlockUntil(1)

	// A room that is already due appears while the closer sleeps on its
	// park timer. Wake makes it sweep without any clock movement.
	store.add("room-late", clock.Now())
	closer.Wake()

	require.Equal(t, "room-late", recvClosed(t, notifier.ch))
}
