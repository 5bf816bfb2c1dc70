package game

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
	"github.com/pcc2/hostcron/pkg/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestGame(t *testing.T, s store.Store, id model.GameID) *Game {
	t.Helper()
	g, err := Create(s, id, "Test Game")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCreateAndOpen(t *testing.T) {
	s := newTestStore(t)
	newTestGame(t, s, 12)

	g, err := Open(s, 12)
	if err != nil {
		t.Fatal(err)
	}
	if name, _ := g.Name(); name != "Test Game" {
		t.Fatalf("Name = %q", name)
	}
	if st, _ := g.State(); st != model.StatePreparing {
		t.Fatalf("State = %s, want preparing", st)
	}
	if _, err := Open(s, 13); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open(13) err = %v, want ErrNotFound", err)
	}
	ids, _ := List(s)
	if len(ids) != 1 || ids[0] != 12 {
		t.Fatalf("List = %v", ids)
	}
	if _, err := Create(s, 12, "again"); !errors.Is(err, ErrExists) {
		t.Fatalf("Create(12) twice: err = %v, want ErrExists", err)
	}
	if name, _ := g.Name(); name != "Test Game" {
		t.Fatalf("duplicate create renamed the game to %q", name)
	}
}

func TestListBroken(t *testing.T) {
	s := newTestStore(t)
	newTestGame(t, s, 1)
	g := newTestGame(t, s, 2)
	if ids, _ := ListBroken(s); len(ids) != 0 {
		t.Fatalf("ListBroken = %v, want none", ids)
	}
	g.MarkBroken("crashed")
	if ids, _ := ListBroken(s); len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("ListBroken = %v, want [2]", ids)
	}
	g.Unbreak()
	if ids, _ := ListBroken(s); len(ids) != 0 {
		t.Fatalf("ListBroken after Unbreak = %v", ids)
	}
}

func TestMalformedRecords(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 6)
	s.HashSet("game:6:settings", FieldTurn, "x7")
	if _, err := g.Turn(); !errors.Is(err, store.ErrMalformed) {
		t.Fatalf("Turn err = %v, want ErrMalformed", err)
	}
	s.HashSet("game:6:settings", FieldState, "paused")
	if _, err := g.State(); !errors.Is(err, store.ErrMalformed) {
		t.Fatalf("State err = %v, want ErrMalformed", err)
	}
	s.ListPush("game:6:schedule:list", "seven")
	if _, err := g.Schedules(); !errors.Is(err, store.ErrMalformed) {
		t.Fatalf("Schedules err = %v, want ErrMalformed", err)
	}
}

func TestSetState_MovesBetweenSets(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 1)
	if err := g.SetState(model.StateJoining); err != nil {
		t.Fatal(err)
	}
	if err := g.SetState(model.StateRunning); err != nil {
		t.Fatal(err)
	}
	joining, _ := ListByState(s, model.StateJoining)
	running, _ := ListByState(s, model.StateRunning)
	if len(joining) != 0 || len(running) != 1 {
		t.Fatalf("joining = %v, running = %v", joining, running)
	}
	if err := g.SetState("sleeping"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestBrokenMark(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 2)
	if err := g.MarkBroken("host exited with status 3"); err != nil {
		t.Fatal(err)
	}
	if b, _ := g.IsBroken(); !b {
		t.Fatal("game should be broken")
	}
	if msg, _ := g.CrashMessage(); msg != "host exited with status 3" {
		t.Fatalf("CrashMessage = %q", msg)
	}
	if err := g.Unbreak(); err != nil {
		t.Fatal(err)
	}
	if b, _ := g.IsBroken(); b {
		t.Fatal("game should not be broken after Unbreak")
	}
	if msg, _ := g.CrashMessage(); msg != "" {
		t.Fatalf("CrashMessage after Unbreak = %q", msg)
	}
}

func TestSlotsAndJoin(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 3)
	g.SetSlotInGame(1, true)
	g.SetSlotInGame(2, true)

	if err := g.JoinSlot(5, "alice", 100); !errors.Is(err, ErrBadSlot) {
		t.Fatalf("joining a slot that is not in the game: err = %v", err)
	}
	if err := g.JoinSlot(12, "alice", 100); !errors.Is(err, ErrBadSlot) {
		t.Fatalf("joining slot 12: err = %v", err)
	}
	if err := g.LeaveSlot(0, "alice"); !errors.Is(err, ErrBadSlot) {
		t.Fatalf("leaving slot 0: err = %v", err)
	}
	if err := g.JoinSlot(1, "alice", 100); err != nil {
		t.Fatal(err)
	}
	if ts, _ := g.Time(FieldLastPlayerJoined); ts != 100 {
		t.Fatalf("lastPlayerJoined = %d, want 100", ts)
	}
	inGame, played, err := g.SlotStats()
	if err != nil || inGame != 2 || played != 1 {
		t.Fatalf("SlotStats = %d, %d, %v; want 2, 1", inGame, played, err)
	}
	g.LeaveSlot(1, "alice")
	if p, _ := g.IsSlotPlayed(1); p {
		t.Fatal("slot 1 should be empty after LeaveSlot")
	}
}

func TestTurnStatus(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 4)
	g.SetSlotInGame(3, true)
	g.JoinSlot(3, "bob", 10)

	if err := g.SetTurnStatus(3, model.TurnGreen|model.TurnTemporary, 50); err != nil {
		t.Fatal(err)
	}
	if ts, _ := g.Time(FieldLastTurnSubmitted); ts != 0 {
		t.Fatalf("temporary turn recorded submission time %d", ts)
	}
	if err := g.SetTurnStatus(3, model.TurnYellow, 60); err != nil {
		t.Fatal(err)
	}
	if ts, _ := g.Time(FieldLastTurnSubmitted); ts != 60 {
		t.Fatalf("lastTurnSubmitted = %d, want 60", ts)
	}
	if st, _ := g.TurnStatus(3); st != model.TurnYellow {
		t.Fatalf("TurnStatus = %d", st)
	}
	if err := g.ResetTurnStatus(); err != nil {
		t.Fatal(err)
	}
	if st, _ := g.TurnStatus(3); st != model.TurnMissing {
		t.Fatalf("TurnStatus after reset = %d", st)
	}
}

func TestSchedules_Queue(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 5)

	first := schedule.Schedule{Type: model.ScheduleQuick, Condition: model.ConditionTurn, CondTurn: 10}
	second := schedule.Schedule{Type: model.ScheduleWeekly, Weekdays: 0x02, Daytime: 6 * clock.Hour}
	id1, err := g.AddSchedule(first, 1000)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := g.AddSchedule(second, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatalf("schedule ids not unique: %d", id1)
	}
	if ts, _ := g.Time(FieldLastScheduleChange); ts != 2000 {
		t.Fatalf("lastScheduleChange = %d, want 2000", ts)
	}

	cur, ok, err := g.CurrentSchedule()
	if err != nil || !ok || cur.Type != model.ScheduleQuick || cur.ID != id1 {
		t.Fatalf("CurrentSchedule = %+v, %v, %v", cur, ok, err)
	}
	if dropped, err := g.DropFirstSchedule(); err != nil || !dropped {
		t.Fatalf("DropFirstSchedule = %v, %v", dropped, err)
	}
	cur, _, _ = g.CurrentSchedule()
	if cur.ID != id2 || cur.Weekdays != 0x02 {
		t.Fatalf("after drop, current = %+v", cur)
	}
	if err := g.ClearSchedules(3000); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := g.CurrentSchedule(); ok {
		t.Fatal("queue should be empty")
	}
	if dropped, _ := g.DropFirstSchedule(); dropped {
		t.Fatal("DropFirstSchedule on empty queue reported a drop")
	}
}

func TestAddSchedule_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 6)
	_, err := g.AddSchedule(schedule.Schedule{Type: model.ScheduleDaily, Daytime: -5}, 1)
	if !errors.Is(err, schedule.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if ids, _ := g.ScheduleIDs(); len(ids) != 0 {
		t.Fatalf("invalid schedule was stored: %v", ids)
	}
}

func TestHistory(t *testing.T) {
	s := newTestStore(t)
	g := newTestGame(t, s, 7)
	g.AddHistory(10, "host: turn 1 done")
	g.AddHistory(20, "marked broken: exit status 1")
	h, err := g.History()
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 2 || h[0].Time != 10 || h[1].Text != "marked broken: exit status 1" {
		t.Fatalf("History = %+v", h)
	}
}
