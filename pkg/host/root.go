// Package host holds the shared service context of the host daemon and
// the executor that runs turn processing for one game.
package host

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/sasha-s/go-deadlock"

	"github.com/pcc2/hostcron/pkg/arbiter"
	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/store"
)

// Root is the service context shared by request handlers, the scheduler
// and the executor.
//
// The store lock serializes every read-modify-write sequence on the
// persistent store. When a component also holds a lock of its own, the
// store lock is taken first.
type Root struct {
	store   store.Store
	arbiter *arbiter.Arbiter
	clock   clockwork.Clock
	log     *slog.Logger

	mu deadlock.Mutex
}

// NewRoot creates a service context. A nil clock means the real clock, a
// nil logger means slog.Default.
func NewRoot(s store.Store, c clockwork.Clock, log *slog.Logger) *Root {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Root{
		store:   s,
		arbiter: arbiter.New(),
		clock:   c,
		log:     log,
	}
}

// Store returns the persistent store.
func (r *Root) Store() store.Store { return r.store }

// Arbiter returns the per-game lock table.
func (r *Root) Arbiter() *arbiter.Arbiter { return r.arbiter }

// Clock returns the clock all components take time from.
func (r *Root) Clock() clockwork.Clock { return r.clock }

// Logger returns the service logger.
func (r *Root) Logger() *slog.Logger { return r.log }

// Now returns the current service time.
func (r *Root) Now() clock.Time { return clock.Now(r.clock) }

// Lock takes the store lock.
func (r *Root) Lock() { r.mu.Lock() }

// Unlock releases the store lock.
func (r *Root) Unlock() { r.mu.Unlock() }
