package countdown

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store is the slice of the room repository the closer needs.
type Store interface {
	// NextExpiry returns the earliest expiry among open rooms.
	NextExpiry(ctx context.Context) (time.Time, bool, error)
	// CloseDue marks every open room whose expiry has passed as closed,
	// exactly once per room, and returns the IDs that transitioned.
	CloseDue(ctx context.Context, now time.Time) ([]string, error)
}

// Notifier is told about each room the closer transitions to closed.
type Notifier interface {
	RoomClosed(roomID string)
}

// parkInterval bounds how long the closer sleeps when no room is due,
// so rooms created while it slept are still picked up.
const parkInterval = time.Minute

// Closer is the server-side sweep that records the terminal closure of
// expired rooms. It arms a one-shot timer at the earliest open-room
// expiry, closes everything due when the timer fires, notifies per
// closed room, and re-arms. Extensions that push the earliest expiry
// forward should call Wake so the timer is re-armed early rather than
// firing on a stale deadline. A stale fire closes nothing that is not
// actually due; it only wastes a query.
type Closer struct {
	clock    clockwork.Clock
	store    Store
	notifier Notifier
	wake     chan struct{}
}

// NewCloser builds a closer. notifier may be nil when nothing needs to
// observe closures (tests mostly).
func NewCloser(clock clockwork.Clock, store Store, notifier Notifier) *Closer {
	return &Closer{
		clock:    clock,
		store:    store,
		notifier: notifier,
		wake:     make(chan struct{}, 1),
	}
}

// Wake nudges the closer to re-read the earliest expiry. Non-blocking;
// coalesces with an already-pending wake.
func (c *Closer) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run sweeps until ctx is cancelled. It blocks; callers run it in its
// own goroutine.
func (c *Closer) Run(ctx context.Context) {
	for {
		c.sweep(ctx)

		wait := parkInterval
		next, ok, err := c.store.NextExpiry(ctx)
		if err != nil {
			log.Printf("room-closer: next expiry query failed: %v", err)
		} else if ok {
			if until := next.Sub(c.clock.Now()); until < wait {
				wait = until
			}
		}
		if wait < 0 {
			wait = 0
		}

		timer := c.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.wake:
			timer.Stop()
		case <-timer.Chan():
		}
	}
}

func (c *Closer) sweep(ctx context.Context) {
	closed, err := c.store.CloseDue(ctx, c.clock.Now())
	if err != nil {
		log.Printf("room-closer: close sweep failed: %v", err)
	}
	for _, id := range closed {
		log.Printf("room-closer: room %s closed", id)
		if c.notifier != nil {
			c.notifier.RoomClosed(id)
		}
	}
}
