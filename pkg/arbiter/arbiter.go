// Package arbiter serializes conflicting operations on the same game.
//
// Operations declare how invasive they are with an Intent. Simple access
// (reading, or changes that never race with a host run) coexists with
// everything. Critical and Host access exclude each other and themselves,
// so the scheduler never hosts a game while a request handler is in the
// middle of a critical change, and vice versa.
//
// The arbiter never waits: a conflicting Lock fails immediately with
// ErrLocked and the caller decides whether to retry, queue or reject.
package arbiter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pcc2/hostcron/pkg/model"
)

// ErrLocked is returned when a lock conflicts with one already held.
var ErrLocked = errors.New("game is locked")

// Intent classifies how an operation accesses a game.
type Intent int

const (
	// Simple access never conflicts.
	Simple Intent = iota
	// Critical access excludes other Critical and Host access.
	Critical
	// Host access is held while the scheduler processes a game.
	Host
)

func (i Intent) String() string {
	switch i {
	case Simple:
		return "simple"
	case Critical:
		return "critical"
	case Host:
		return "host"
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

func (i Intent) exclusive() bool { return i == Critical || i == Host }

// Arbiter is the per-process lock table. The zero value is not usable;
// call New.
type Arbiter struct {
	mu    sync.Mutex
	locks map[model.GameID]map[Intent]int
}

// New creates an empty lock table.
func New() *Arbiter {
	return &Arbiter{locks: make(map[model.GameID]map[Intent]int)}
}

// Lock registers intent on game, or fails with ErrLocked if an exclusive
// intent is requested while another exclusive intent is held. Locks stack:
// every successful Lock needs its own Unlock.
func (a *Arbiter) Lock(game model.GameID, intent Intent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	held := a.locks[game]
	if intent.exclusive() {
		for other, n := range held {
			if n > 0 && other.exclusive() {
				return fmt.Errorf("game %d: %s access while %s access is held: %w", game, intent, other, ErrLocked)
			}
		}
	}
	if held == nil {
		held = make(map[Intent]int)
		a.locks[game] = held
	}
	held[intent]++
	return nil
}

// Unlock removes one registration of intent on game. Unlocking something
// that is not held is a no-op.
func (a *Arbiter) Unlock(game model.GameID, intent Intent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	held := a.locks[game]
	if held[intent] == 0 {
		return
	}
	held[intent]--
	if held[intent] == 0 {
		delete(held, intent)
	}
	if len(held) == 0 {
		delete(a.locks, game)
	}
}

// Count returns how many registrations of intent are held on game.
func (a *Arbiter) Count(game model.GameID, intent Intent) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locks[game][intent]
}

// Guard holds one lock and releases it exactly once.
//
//	g, err := arbiter.Acquire(a, game, arbiter.Critical)
//	if err != nil {
//		return err
//	}
//	defer g.Release()
type Guard struct {
	a      *Arbiter
	game   model.GameID
	intent Intent
	once   sync.Once
}

// Acquire locks intent on game and returns a Guard for it.
func Acquire(a *Arbiter, game model.GameID, intent Intent) (*Guard, error) {
	if err := a.Lock(game, intent); err != nil {
		return nil, err
	}
	return &Guard{a: a, game: game, intent: intent}, nil
}

// Release unlocks the guarded lock. Further calls do nothing.
func (g *Guard) Release() {
	g.once.Do(func() { g.a.Unlock(g.game, g.intent) })
}

// WithLock runs fn while holding intent on game and releases the lock on
// every exit path, including a panic in fn.
func WithLock(a *Arbiter, game model.GameID, intent Intent, fn func() error) error {
	g, err := Acquire(a, game, intent)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn()
}
