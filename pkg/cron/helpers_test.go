package cron

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/host"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
	"github.com/pcc2/hostcron/pkg/store"
)

// t0 is a Monday at midnight.
var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "cron.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRoot(t *testing.T, s store.Store) (*host.Root, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(t0)
	return host.NewRoot(s, fc, nil), fc
}

func newRunningGame(t *testing.T, s store.Store, id model.GameID, turn int) *game.Game {
	t.Helper()
	g, err := game.Create(s, id, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetState(model.StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := g.SetTurn(turn); err != nil {
		t.Fatal(err)
	}
	return g
}

// playSlot puts a slot into the game and gives it a player.
func playSlot(t *testing.T, g *game.Game, slot int) {
	t.Helper()
	if err := g.SetSlotInGame(slot, true); err != nil {
		t.Fatal(err)
	}
	if err := g.JoinSlot(slot, "player", 1); err != nil {
		t.Fatal(err)
	}
}

func addSchedule(t *testing.T, g *game.Game, s schedule.Schedule, at clock.Time) {
	t.Helper()
	if _, err := g.AddSchedule(s, at); err != nil {
		t.Fatal(err)
	}
}

// dailyAt six o'clock, hosted last the day before t0.
func dailySix(t *testing.T, g *game.Game) {
	t.Helper()
	addSchedule(t, g, schedule.Schedule{Type: model.ScheduleDaily, Interval: 1, Daytime: 6 * clock.Hour}, clock.FromWall(t0)-clock.Week)
	if err := g.SetTime(game.FieldLastHostTime, clock.FromWall(t0)-clock.Day+6*clock.Hour); err != nil {
		t.Fatal(err)
	}
}

// procRunner stands in for the host and master programs.
type procRunner struct {
	mu    sync.Mutex
	jobs  []host.Job
	err   error
	ran   chan host.Job
	calls atomic.Int32
}

func newProcRunner() *procRunner {
	return &procRunner{ran: make(chan host.Job, 16)}
}

func (p *procRunner) Run(_ context.Context, job host.Job) error {
	p.calls.Add(1)
	p.mu.Lock()
	p.jobs = append(p.jobs, job)
	err := p.err
	p.mu.Unlock()
	p.ran <- job
	return err
}

func newExecutor(root *host.Root, p *procRunner) *host.Executor {
	return host.NewExecutor(root, p, []string{"host", "{game}"}, []string{"master", "{game}"})
}

// panicRunner panics on every run.
type panicRunner struct{}

func (panicRunner) RunHost(context.Context, model.GameID) error   { panic("host blew up") }
func (panicRunner) RunMaster(context.Context, model.GameID) error { panic("master blew up") }

// failingStore fails every HashGet once fail is set.
type failingStore struct {
	store.Store
	fail atomic.Bool
}

func (f *failingStore) HashGet(key, field string) (string, bool, error) {
	if f.fail.Load() {
		return "", false, errors.New("connection reset by peer")
	}
	return f.Store.HashGet(key, field)
}

// blockUntil waits until the scheduler sleeps on the fake clock.
func blockUntil(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fc.BlockUntil(n)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not go to sleep")
	}
}

// waitFor polls cond until it holds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func assertSorted(t *testing.T, evs []model.Event) {
	t.Helper()
	for i := 1; i < len(evs); i++ {
		if evs[i].Time < evs[i-1].Time {
			t.Fatalf("events not in time order: %+v", evs)
		}
	}
}

func assertOneEventPerGame(t *testing.T, evs []model.Event) {
	t.Helper()
	seen := make(map[model.GameID]bool)
	for _, ev := range evs {
		if seen[ev.GameID] {
			t.Fatalf("game %d listed twice: %+v", ev.GameID, evs)
		}
		seen[ev.GameID] = true
	}
}
