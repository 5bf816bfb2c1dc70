package cron

import (
	"fmt"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
)

const (
	// GracePeriod is how long the scheduler leaves a game alone after a
	// schedule edit.
	GracePeriod = 10 * clock.Minute

	// MasterDelay is the wait after the last player joined before master
	// runs.
	MasterDelay = 15 * clock.Minute
)

// ComputeGameTimes returns the next event for a game, or nothing for games
// that are broken or neither joining nor running. The caller holds the
// store lock.
func ComputeGameTimes(now clock.Time, g *game.Game) ([]model.Event, error) {
	broken, err := g.IsBroken()
	if err != nil {
		return nil, err
	}
	if broken {
		return nil, nil
	}
	st, err := g.State()
	if err != nil {
		return nil, err
	}
	switch st {
	case model.StateJoining:
		return ComputeGameMasterTimes(now, g)
	case model.StateRunning:
		return ComputeGameHostTimes(now, g)
	}
	return nil, nil
}

// ComputeGameMasterTimes schedules master for a joining game once every
// slot has a player.
func ComputeGameMasterTimes(now clock.Time, g *game.Game) ([]model.Event, error) {
	inGame, played, err := g.SlotStats()
	if err != nil {
		return nil, err
	}
	if inGame == 0 || played < inGame {
		return nil, nil
	}
	joined, err := g.Time(game.FieldLastPlayerJoined)
	if err != nil {
		return nil, err
	}
	t := now
	if joined != 0 {
		t = joined + MasterDelay
	}
	return []model.Event{{GameID: g.ID(), Action: model.ActionMaster, Time: t}}, nil
}

// ComputeGameHostTimes schedules the next host of a running game. Expired
// schedules are dropped from the game's queue, and the chosen host time is
// written to the game's nextHostTime field.
func ComputeGameHostTimes(now clock.Time, g *game.Game) ([]model.Event, error) {
	turn, err := g.Turn()
	if err != nil {
		return nil, err
	}
	lastChange, err := g.Time(game.FieldLastScheduleChange)
	if err != nil {
		return nil, err
	}
	initial := clock.Max(now, lastChange+GracePeriod)

	if turn == 0 {
		return []model.Event{{GameID: g.ID(), Action: model.ActionMaster, Time: initial}}, nil
	}

	cur, ok, dropped, err := currentSchedule(now, turn, g)
	if err != nil {
		return nil, err
	}

	lastHost, err := g.Time(game.FieldLastHostTime)
	if err != nil {
		return nil, err
	}
	if ok && dropped && lastHost != 0 {
		if virt := cur.PreviousVirtualHost(initial); virt > lastHost {
			lastHost = virt
			if err := g.SetTime(game.FieldLastHostTime, virt); err != nil {
				return nil, err
			}
		}
	}

	var next, change clock.Time
	if ok {
		next, err = nextHostTime(cur, initial, lastHost, g)
		if err != nil {
			return nil, err
		}
		change = cur.ExpirationTime()
	}
	if next != 0 && next < initial {
		next = initial
	}

	var events []model.Event
	switch {
	case next != 0 && (change == 0 || next <= change):
		events = append(events, model.Event{GameID: g.ID(), Action: model.ActionHost, Time: next})
	case change != 0:
		events = append(events, model.Event{GameID: g.ID(), Action: model.ActionScheduleChange, Time: change})
		next = 0
	}

	if next != 0 {
		err = g.SetTime(game.FieldNextHostTime, next)
	} else {
		err = g.ClearField(game.FieldNextHostTime)
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

// currentSchedule drops expired schedules from the head of the queue and
// returns the first one still valid.
func currentSchedule(now clock.Time, turn int, g *game.Game) (cur schedule.Schedule, ok, dropped bool, err error) {
	for {
		cur, ok, err = g.CurrentSchedule()
		if err != nil || !ok {
			return cur, ok, dropped, err
		}
		if !cur.IsExpired(turn, now) {
			return cur, true, dropped, nil
		}
		if _, err = g.DropFirstSchedule(); err != nil {
			return cur, false, dropped, err
		}
		if err = g.AddHistory(now, fmt.Sprintf("schedule %d expired", cur.ID)); err != nil {
			return cur, false, dropped, err
		}
		dropped = true
	}
}

func nextHostTime(cur schedule.Schedule, initial, lastHost clock.Time, g *game.Game) (clock.Time, error) {
	// early is the accelerated host time once all turns are in.
	early := func() (clock.Time, bool, error) {
		in, err := CheckAllTurnsIn(g)
		if err != nil || !in {
			return 0, false, err
		}
		last, err := g.Time(game.FieldLastTurnSubmitted)
		if err != nil {
			return 0, false, err
		}
		return last + cur.HostDelay, true, nil
	}

	switch cur.Type {
	case model.ScheduleQuick:
		t, in, err := early()
		if err != nil || !in {
			return 0, err
		}
		return t, nil

	case model.ScheduleManual:
		runNow, err := g.Flag(game.FieldHostRunNow)
		if err != nil {
			return 0, err
		}
		if runNow {
			return initial, nil
		}
		if !cur.HostEarly {
			return 0, nil
		}
		t, in, err := early()
		if err != nil || !in {
			return 0, err
		}
		return t, nil

	case model.ScheduleWeekly, model.ScheduleDaily:
		next := cur.NextHost(lastHost)
		if !cur.HostEarly {
			return next, nil
		}
		t, in, err := early()
		if err != nil {
			return 0, err
		}
		if in && (next == 0 || t < next) {
			next = t
		}
		return next, nil
	}
	return 0, nil
}

// CheckAllTurnsIn reports whether every played slot has a final turn. A
// game without any played slot never has all turns in.
func CheckAllTurnsIn(g *game.Game) (bool, error) {
	seen := false
	for slot := 1; slot <= model.NumSlots; slot++ {
		played, err := g.IsSlotPlayed(slot)
		if err != nil {
			return false, err
		}
		if !played {
			continue
		}
		st, err := g.TurnStatus(slot)
		if err != nil {
			return false, err
		}
		if !st.IsFinal() {
			return false, nil
		}
		seen = true
	}
	return seen, nil
}
