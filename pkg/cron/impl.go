package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/pcc2/hostcron/pkg/arbiter"
	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/host"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/store"
)

// DefaultMaxSleep bounds one sleep of the scheduler goroutine.
const DefaultMaxSleep = time.Hour

// Option configures an Impl.
type Option func(*Impl)

// WithMaxSleep sets the longest time the scheduler sleeps before it
// re-checks its event list.
func WithMaxSleep(d time.Duration) Option {
	return func(c *Impl) {
		if d > 0 {
			c.maxSleep = d
		}
	}
}

// WithLogger sets the logger. The scheduler tags records with
// component=cron.
func WithLogger(l *slog.Logger) Option {
	return func(c *Impl) { c.log = l }
}

// Impl is the scheduler engine.
type Impl struct {
	root     *host.Root
	runner   HostRunner
	log      *slog.Logger
	maxSleep time.Duration

	// mu guards the fields below. When both are needed, the root's store
	// lock is taken first.
	mu       deadlock.Mutex
	changed  []model.GameID
	future   []model.Event
	due      []model.Event
	stopping bool
	dead     bool
	err      error

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New computes the initial schedule of every joining and running game and
// starts the scheduler goroutine. Call Stop to shut it down.
func New(root *host.Root, runner HostRunner, opts ...Option) (*Impl, error) {
	c := newImpl(root, runner, opts...)
	if err := c.loadInitial(); err != nil {
		return nil, fmt.Errorf("cron: initial schedule: %w", err)
	}
	go c.run()
	return c, nil
}

func newImpl(root *host.Root, runner HostRunner, opts ...Option) *Impl {
	c := &Impl{
		root:     root,
		runner:   runner,
		log:      root.Logger(),
		maxSleep: DefaultMaxSleep,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "cron")
	return c
}

// Stop asks the scheduler to exit and waits for it. A host run in progress
// is allowed to finish.
func (c *Impl) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopping = true
		c.mu.Unlock()
		c.signal()
	})
	<-c.done
}

// Done is closed when the scheduler goroutine has exited, after Stop or
// after a crash.
func (c *Impl) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the scheduler, or nil.
func (c *Impl) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// GetGameEvent implements Cron.
func (c *Impl) GetGameEvent(id model.GameID) model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slices.Contains(c.changed, id) {
		return model.Event{GameID: id, Action: model.ActionUnknown}
	}
	for _, ev := range c.due {
		if ev.GameID == id {
			return model.Event{GameID: id, Action: ev.Action}
		}
	}
	for _, ev := range c.future {
		if ev.GameID == id {
			return ev
		}
	}
	return model.Event{GameID: id, Action: model.ActionNone}
}

// ListGameEvents implements Cron.
func (c *Impl) ListGameEvents() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Event, 0, len(c.due)+len(c.future))
	for _, ev := range c.due {
		out = append(out, model.Event{GameID: ev.GameID, Action: ev.Action})
	}
	return append(out, c.future...)
}

// HandleGameChange implements Cron. Changes reported after the scheduler
// has stopped or crashed are ignored.
func (c *Impl) HandleGameChange(id model.GameID) {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return
	}
	c.changed = append(c.changed, id)
	c.mu.Unlock()
	c.signal()
}

func (c *Impl) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// --- Scheduler goroutine ---

func (c *Impl) run() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			c.crash(fmt.Errorf("panic: %v", r))
		}
	}()

	c.log.Info("scheduler started", "events", len(c.ListGameEvents()))
	for {
		stop, err := c.step()
		if err != nil {
			c.crash(err)
			return
		}
		if stop {
			c.shutdown()
			c.log.Info("scheduler stopped")
			return
		}
	}
}

// step runs one iteration of the main loop and reports whether the
// scheduler should exit.
func (c *Impl) step() (bool, error) {
	if err := c.processRequests(); err != nil {
		return false, err
	}
	if err := c.moveDueItems(); err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return true, nil
	}
	if len(c.due) > 0 {
		ev := c.due[0]
		c.mu.Unlock()
		return false, c.runDueItem(ev)
	}
	if len(c.future) == 0 {
		c.mu.Unlock()
		<-c.wake
		return false, nil
	}
	wait := min(clock.Until(c.root.Clock(), c.future[0].Time), c.maxSleep)
	c.mu.Unlock()

	c.sleep(wait)
	return false, nil
}

// sleep waits for d or a wake signal.
func (c *Impl) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := c.root.Clock().NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
	case <-c.wake:
	}
}

// crash clears all state so queries report nothing scheduled, and releases
// the arbiter locks held for due games.
func (c *Impl) crash(err error) {
	c.log.Error("scheduler crashed, no further games will be scheduled", "err", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.due {
		c.root.Arbiter().Unlock(ev.GameID, arbiter.Host)
	}
	c.changed = nil
	c.future = nil
	c.due = nil
	c.dead = true
	c.err = err
}

// shutdown drops due events that were never run, releases their Host
// locks and stops accepting changes.
func (c *Impl) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.due {
		c.root.Arbiter().Unlock(ev.GameID, arbiter.Host)
	}
	c.due = nil
	c.changed = nil
	c.dead = true
}

func (c *Impl) loadInitial() error {
	c.root.Lock()
	defer c.root.Unlock()

	now := c.root.Now()
	var events []model.Event
	for _, st := range []model.GameState{model.StateRunning, model.StateJoining} {
		ids, err := game.ListByState(c.root.Store(), st)
		if err != nil {
			return err
		}
		for _, id := range ids {
			evs, err := c.computeAt(now, id)
			if err != nil {
				return err
			}
			events = append(events, evs...)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.future = events
	return nil
}

// compute recomputes one game. The caller holds the store lock.
func (c *Impl) compute(id model.GameID) ([]model.Event, error) {
	return c.computeAt(c.root.Now(), id)
}

// computeAt recomputes one game as of now. A game whose records cannot be
// decoded is marked broken and yields no events; only store failures are
// returned.
func (c *Impl) computeAt(now clock.Time, id model.GameID) ([]model.Event, error) {
	g := game.New(c.root.Store(), id)
	evs, err := ComputeGameTimes(now, g)
	if err == nil {
		return evs, nil
	}
	if !isBadRecord(err) {
		return nil, fmt.Errorf("game %d: %w", id, err)
	}

	c.log.Error("unreadable game data, marking game broken", "game", id, "err", err)
	if err := breakGame(g, now, "unreadable game data: "+err.Error()); err != nil {
		if !isBadRecord(err) {
			return nil, fmt.Errorf("game %d: %w", id, err)
		}
		c.log.Error("cannot mark game broken", "game", id, "err", err)
	}
	return nil, nil
}

// isBadRecord reports whether err comes from one game's stored data rather
// than from the store itself.
func isBadRecord(err error) bool {
	return errors.Is(err, store.ErrMalformed) || errors.Is(err, store.ErrWrongType)
}

// breakGame marks a game broken and notes why in its history. The caller
// holds the store lock.
func breakGame(g *game.Game, now clock.Time, msg string) error {
	if err := g.MarkBroken(msg); err != nil {
		return err
	}
	return g.AddHistory(now, "marked broken: "+msg)
}

func (c *Impl) recompute(id model.GameID) ([]model.Event, error) {
	c.root.Lock()
	defer c.root.Unlock()
	return c.compute(id)
}

// processRequests recomputes every changed game that is not due. Due games
// stay queued and are picked up after their run.
func (c *Impl) processRequests() error {
	for {
		more, err := c.processOneRequest()
		if err != nil || !more {
			return err
		}
	}
}

func (c *Impl) processOneRequest() (bool, error) {
	c.root.Lock()
	defer c.root.Unlock()

	c.mu.Lock()
	id, ok := c.nextChangedLocked()
	c.mu.Unlock()
	if !ok {
		return false, nil
	}

	evs, err := c.compute(id)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.changed, id); i >= 0 {
		c.changed = slices.Delete(c.changed, i, i+1)
	}
	c.removeFutureLocked(id)
	c.mergeLocked(evs)
	c.log.Debug("recomputed", "game", id, "events", evs)
	return true, nil
}

func (c *Impl) nextChangedLocked() (model.GameID, bool) {
	for _, id := range c.changed {
		if !c.isDueLocked(id) {
			return id, true
		}
	}
	return 0, false
}

// moveDueItems moves every event whose time has come to the due list and
// takes the game's Host lock. A game another operation holds exclusively
// is retried a minute later.
func (c *Impl) moveDueItems() error {
	c.root.Lock()
	defer c.root.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.root.Now()
	for len(c.future) > 0 && c.future[0].Time <= now {
		ev := c.future[0]
		c.future = slices.Delete(c.future, 0, 1)
		if err := c.root.Arbiter().Lock(ev.GameID, arbiter.Host); err != nil {
			if !errors.Is(err, arbiter.ErrLocked) {
				return err
			}
			c.log.Warn("game busy, postponing", "game", ev.GameID, "action", ev.Action, "err", err)
			ev.Time = now + clock.Minute
			c.mergeLocked([]model.Event{ev})
			continue
		}
		c.due = append(c.due, ev)
	}
	return nil
}

// runDueItem re-validates a due event, runs it, and schedules the game's
// next event. A failing run marks the game broken; only store failures are
// returned.
func (c *Impl) runDueItem(ev model.Event) error {
	id := ev.GameID
	log := c.log.With("game", id)

	evs, err := c.recompute(id)
	if err != nil {
		return err
	}

	now := c.root.Now()
	switch {
	case len(evs) == 0 || evs[0].Time > now:
		log.Info("schedule updated, not running", "was", ev.Action)
	case evs[0].Action == model.ActionScheduleChange:
		log.Info("schedule changed")
	default:
		action := evs[0].Action
		log.Info("running", "action", action)
		if runErr := c.execute(action, id); runErr != nil {
			log.Error("run failed, marking game broken", "action", action, "err", runErr)
			if err := c.markBroken(id, action, runErr); err != nil {
				return err
			}
		}
	}
	return c.finishDueItem(id)
}

// execute calls the runner and turns a panic into an error.
func (c *Impl) execute(action model.Action, id model.GameID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx := context.Background()
	switch action {
	case model.ActionHost:
		return c.runner.RunHost(ctx, id)
	case model.ActionMaster:
		return c.runner.RunMaster(ctx, id)
	}
	return nil
}

func (c *Impl) markBroken(id model.GameID, action model.Action, runErr error) error {
	c.root.Lock()
	defer c.root.Unlock()

	msg := fmt.Sprintf("%s failed: %v", action, runErr)
	return breakGame(game.New(c.root.Store(), id), c.root.Now(), msg)
}

func (c *Impl) finishDueItem(id model.GameID) error {
	c.root.Lock()
	defer c.root.Unlock()

	evs, err := c.compute(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.IndexFunc(c.due, func(ev model.Event) bool { return ev.GameID == id }); i >= 0 {
		c.due = slices.Delete(c.due, i, i+1)
	}
	c.removeFutureLocked(id)
	c.mergeLocked(evs)
	c.root.Arbiter().Unlock(id, arbiter.Host)
	return nil
}

// --- Event list helpers; the caller holds mu ---

func (c *Impl) isDueLocked(id model.GameID) bool {
	return slices.ContainsFunc(c.due, func(ev model.Event) bool { return ev.GameID == id })
}

func (c *Impl) removeFutureLocked(id model.GameID) {
	c.future = slices.DeleteFunc(c.future, func(ev model.Event) bool { return ev.GameID == id })
}

// mergeLocked inserts events keeping future sorted by time. Events with
// equal times keep arrival order.
func (c *Impl) mergeLocked(evs []model.Event) {
	for _, ev := range evs {
		i := sort.Search(len(c.future), func(i int) bool { return c.future[i].Time > ev.Time })
		c.future = slices.Insert(c.future, i, ev)
	}
}
