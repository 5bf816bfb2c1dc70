package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/schedule"
	"github.com/pcc2/hostcron/pkg/store"
)

func (g *Game) scheduleListKey() string { return g.key("schedule:list") }

func (g *Game) scheduleKey(id int64) string {
	return g.key("schedule:" + strconv.FormatInt(id, 10))
}

// ScheduleIDs returns the schedule queue, current schedule first.
func (g *Game) ScheduleIDs() ([]int64, error) {
	raw, err := g.s.ListRange(g.scheduleListKey())
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: game %d: schedule id %q", store.ErrMalformed, g.id, r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadSchedule reads one schedule record.
func (g *Game) LoadSchedule(id int64) (schedule.Schedule, error) {
	h, err := g.s.HashGetAll(g.scheduleKey(id))
	if err != nil {
		return schedule.Schedule{}, err
	}
	s, err := schedule.FromHash(id, h)
	if err != nil {
		return s, fmt.Errorf("%w: game %d: %w", store.ErrMalformed, g.id, err)
	}
	return s, nil
}

// Schedules returns the whole schedule queue.
func (g *Game) Schedules() ([]schedule.Schedule, error) {
	ids, err := g.ScheduleIDs()
	if err != nil {
		return nil, err
	}
	out := make([]schedule.Schedule, 0, len(ids))
	for _, id := range ids {
		s, err := g.LoadSchedule(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// CurrentSchedule returns the head of the schedule queue, reporting false
// if the queue is empty.
func (g *Game) CurrentSchedule() (schedule.Schedule, bool, error) {
	ids, err := g.ScheduleIDs()
	if err != nil || len(ids) == 0 {
		return schedule.Schedule{}, false, err
	}
	s, err := g.LoadSchedule(ids[0])
	return s, err == nil, err
}

// AddSchedule appends a schedule to the queue and records the edit time,
// which starts the scheduler's grace period. The stored schedule's id is
// returned.
func (g *Game) AddSchedule(s schedule.Schedule, now clock.Time) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	id, err := g.s.HashIncrement(g.settingsKey(), FieldLastScheduleID, 1)
	if err != nil {
		return 0, err
	}
	s.ID = id
	for field, value := range s.ToHash() {
		if err := g.s.HashSet(g.scheduleKey(id), field, value); err != nil {
			return 0, err
		}
	}
	if err := g.s.ListPush(g.scheduleListKey(), strconv.FormatInt(id, 10)); err != nil {
		return 0, err
	}
	if err := g.SetTime(FieldLastScheduleChange, now); err != nil {
		return 0, err
	}
	return id, nil
}

// DropFirstSchedule removes the current schedule from the queue and
// deletes its record. It reports false if the queue was empty.
func (g *Game) DropFirstSchedule() (bool, error) {
	raw, ok, err := g.s.ListPopFront(g.scheduleListKey())
	if err != nil || !ok {
		return false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, fmt.Errorf("%w: game %d: schedule id %q", store.ErrMalformed, g.id, raw)
	}
	return true, g.s.Delete(g.scheduleKey(id))
}

// ClearSchedules removes every schedule.
func (g *Game) ClearSchedules(now clock.Time) error {
	for {
		ok, err := g.DropFirstSchedule()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return g.SetTime(FieldLastScheduleChange, now)
}

// HistoryEntry is one line of a game's history.
type HistoryEntry struct {
	Time clock.Time `json:"time"`
	Text string     `json:"text"`
}

// AddHistory appends an entry to the game's history.
func (g *Game) AddHistory(now clock.Time, text string) error {
	return g.s.ListPush(g.key("history"), strconv.FormatInt(int64(now), 10)+" "+text)
}

// History returns the game's history, oldest first.
func (g *Game) History() ([]HistoryEntry, error) {
	raw, err := g.s.ListRange(g.key("history"))
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(raw))
	for _, r := range raw {
		ts, text, _ := strings.Cut(r, " ")
		n, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: game %d: history entry %q", store.ErrMalformed, g.id, r)
		}
		out = append(out, HistoryEntry{Time: clock.Time(n), Text: text})
	}
	return out, nil
}
