// Package model defines the core domain types for hostcron.
//
// hostcron decides when the games of a turn-based multiplayer host service
// are processed. Each game is identified by a GameID and follows a list of
// schedules; the scheduler turns game state into at most one Event per game:
// "at Time, game GameID must undergo Action".
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pcc2/hostcron/pkg/clock"
)

// GameID identifies a persistent game. Valid IDs are positive.
type GameID int64

// ParseGameID parses a decimal game ID and rejects non-positive values.
func ParseGameID(s string) (GameID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	return GameID(n), nil
}

// String returns the decimal form used in store keys and protocol replies.
func (id GameID) String() string { return strconv.FormatInt(int64(id), 10) }

// Action is what the scheduler intends to do with a game.
type Action int

const (
	// ActionUnknown means the scheduler has not yet processed a change.
	ActionUnknown Action = iota
	// ActionNone means nothing is scheduled.
	ActionNone
	// ActionHost runs turn processing.
	ActionHost
	// ActionMaster runs initial game setup.
	ActionMaster
	// ActionScheduleChange re-evaluates the game when its schedule expires.
	ActionScheduleChange
)

var actionNames = map[Action]string{
	ActionUnknown:        "unknown",
	ActionNone:           "none",
	ActionHost:           "host",
	ActionMaster:         "master",
	ActionScheduleChange: "schedulechange",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown action %q", s)
}

// Event is a scheduler decision for one game. A zero Time on a due event
// means "now".
type Event struct {
	GameID GameID     `json:"game"`
	Action Action     `json:"action"`
	Time   clock.Time `json:"time"`
}

// GameState is the lifecycle state of a game.
type GameState string

const (
	StatePreparing GameState = "preparing"
	StateJoining   GameState = "joining"
	StateRunning   GameState = "running"
	StateFinished  GameState = "finished"
	StateDeleted   GameState = "deleted"
)

// AllStates lists every lifecycle state.
var AllStates = []GameState{StatePreparing, StateJoining, StateRunning, StateFinished, StateDeleted}

// ParseGameState validates a state name.
func ParseGameState(s string) (GameState, error) {
	for _, st := range AllStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown game state %q", s)
}

// TurnStatus is the recorded state of a player's turn file. The low bits
// hold the check result; TurnTemporary marks a turn the player has not
// declared final.
type TurnStatus int

const (
	TurnMissing TurnStatus = 0
	TurnGreen   TurnStatus = 1
	TurnYellow  TurnStatus = 2
	TurnRed     TurnStatus = 3
	TurnBad     TurnStatus = 4
	TurnStale   TurnStatus = 5

	TurnTemporary TurnStatus = 16

	turnStateMask TurnStatus = 15
)

// State returns the status without the temporary flag.
func (s TurnStatus) State() TurnStatus { return s & turnStateMask }

// IsTemporary reports whether the temporary flag is set.
func (s TurnStatus) IsTemporary() bool { return s&TurnTemporary != 0 }

var turnStateNames = map[TurnStatus]string{
	TurnMissing: "missing",
	TurnGreen:   "green",
	TurnYellow:  "yellow",
	TurnRed:     "red",
	TurnBad:     "bad",
	TurnStale:   "stale",
}

// String returns the state name, with "+temporary" for temporary turns.
func (s TurnStatus) String() string {
	name, ok := turnStateNames[s.State()]
	if !ok {
		name = strconv.Itoa(int(s.State()))
	}
	if s.IsTemporary() {
		name += "+temporary"
	}
	return name
}

// Valid reports whether s is a known state with no bits besides the
// temporary flag.
func (s TurnStatus) Valid() bool {
	_, ok := turnStateNames[s.State()]
	return ok && s&^(turnStateMask|TurnTemporary) == 0
}

// ParseTurnStatus accepts a state name, optionally with "+temporary", or
// the stored integer form.
func ParseTurnStatus(s string) (TurnStatus, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if st := TurnStatus(n); st.Valid() {
			return st, nil
		}
		return 0, fmt.Errorf("invalid turn status %q", s)
	}
	name, temp := strings.CutSuffix(s, "+temporary")
	for st, n := range turnStateNames {
		if n == name {
			if temp {
				st |= TurnTemporary
			}
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown turn status %q", s)
}

// IsFinal reports whether the turn counts as submitted: a Green or Yellow
// turn not marked temporary.
func (s TurnStatus) IsFinal() bool {
	if s.IsTemporary() {
		return false
	}
	st := s.State()
	return st == TurnGreen || st == TurnYellow
}

// ScheduleType selects how a schedule picks host times.
type ScheduleType int

const (
	// ScheduleStopped never hosts.
	ScheduleStopped ScheduleType = iota
	// ScheduleWeekly hosts on selected week days at a fixed day time.
	ScheduleWeekly
	// ScheduleDaily hosts every Interval days at a fixed day time.
	ScheduleDaily
	// ScheduleQuick hosts as soon as all turns are in.
	ScheduleQuick
	// ScheduleManual hosts only on explicit request.
	ScheduleManual
)

var scheduleTypeNames = map[ScheduleType]string{
	ScheduleStopped: "stopped",
	ScheduleWeekly:  "weekly",
	ScheduleDaily:   "daily",
	ScheduleQuick:   "quick",
	ScheduleManual:  "manual",
}

func (t ScheduleType) String() string {
	if s, ok := scheduleTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseScheduleType is the inverse of ScheduleType.String.
func ParseScheduleType(s string) (ScheduleType, error) {
	for t, name := range scheduleTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ScheduleStopped, fmt.Errorf("unknown schedule type %q", s)
}

// Condition is a schedule expiration condition.
type Condition int

const (
	// ConditionNone never expires.
	ConditionNone Condition = iota
	// ConditionTurn expires once the game reaches a turn number.
	ConditionTurn
	// ConditionTime expires at a point in time.
	ConditionTime
)

func (c Condition) String() string {
	switch c {
	case ConditionNone:
		return "none"
	case ConditionTurn:
		return "turn"
	case ConditionTime:
		return "time"
	}
	return fmt.Sprintf("condition(%d)", int(c))
}

// NumSlots is the number of player slots in a game.
const NumSlots = 11

// ParseCondition is the inverse of Condition.String.
func ParseCondition(s string) (Condition, error) {
	for _, c := range []Condition{ConditionNone, ConditionTurn, ConditionTime} {
		if c.String() == s {
			return c, nil
		}
	}
	return ConditionNone, fmt.Errorf("unknown condition %q", s)
}
