// Package game reads and writes one game's persisted state.
//
// Key layout:
//
//	game:all                        set of game ids
//	game:state:<state>              set of game ids per lifecycle state
//	game:broken                     set of game ids excluded from scheduling
//	game:<id>:settings              hash of scalar settings (Field* names)
//	game:<id>:slots                 hash slot -> "1" for slots in the game
//	game:<id>:slot:<n>:users        set of users playing slot n
//	game:<id>:turnstatus            hash slot -> model.TurnStatus
//	game:<id>:schedule:list         list of schedule ids, current first
//	game:<id>:schedule:<sid>        hash, see schedule.FromHash
//	game:<id>:history               list of history entries, oldest first
//
// Game does no locking. Callers serialize access with the host root's
// store lock.
package game

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/store"
)

// ErrNotFound is returned when a game id is not in game:all.
var ErrNotFound = errors.New("game not found")

// ErrExists is returned by Create for an id that is already registered.
var ErrExists = errors.New("game already exists")

// ErrBadSlot is returned for a slot number out of range or not in the game.
var ErrBadSlot = errors.New("invalid slot")

// Settings fields.
const (
	FieldState              = "state"
	FieldName               = "name"
	FieldTurn               = "turn"
	FieldLastHostTime       = "lastHostTime"
	FieldNextHostTime       = "nextHostTime"
	FieldLastTurnSubmitted  = "lastTurnSubmitted"
	FieldLastScheduleChange = "lastScheduleChange"
	FieldLastPlayerJoined   = "lastPlayerJoined"
	FieldHostRunNow         = "hostRunNow"
	FieldMasterHasRun       = "masterHasRun"
	FieldCrashMessage       = "crashMessage"
	FieldLastScheduleID     = "lastScheduleId"
)

const (
	keyAll    = "game:all"
	keyBroken = "game:broken"
)

func stateKey(st model.GameState) string { return "game:state:" + string(st) }

// Game is a handle on one game's keys.
type Game struct {
	s  store.Store
	id model.GameID
}

// New returns a handle without checking that the game exists.
func New(s store.Store, id model.GameID) *Game {
	return &Game{s: s, id: id}
}

// Open returns a handle for an existing game.
func Open(s store.Store, id model.GameID) (*Game, error) {
	ok, err := Exists(s, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return New(s, id), nil
}

// Create registers a new game in the preparing state.
func Create(s store.Store, id model.GameID, name string) (*Game, error) {
	if id <= 0 {
		return nil, fmt.Errorf("create game: invalid id %d", id)
	}
	ok, err := Exists(s, id)
	if err != nil {
		return nil, fmt.Errorf("create game %d: %w", id, err)
	}
	if ok {
		return nil, fmt.Errorf("game %d: %w", id, ErrExists)
	}
	g := New(s, id)
	if err := s.HashSet(g.settingsKey(), FieldName, name); err != nil {
		return nil, fmt.Errorf("create game %d: %w", id, err)
	}
	if err := g.SetState(model.StatePreparing); err != nil {
		return nil, fmt.Errorf("create game %d: %w", id, err)
	}
	if err := s.SetAdd(keyAll, id.String()); err != nil {
		return nil, fmt.Errorf("create game %d: %w", id, err)
	}
	return g, nil
}

// Exists reports whether id is a registered game.
func Exists(s store.Store, id model.GameID) (bool, error) {
	return s.SetContains(keyAll, id.String())
}

// List returns all registered game ids.
func List(s store.Store) ([]model.GameID, error) {
	return idSet(s, keyAll)
}

// ListByState returns the ids of games in a lifecycle state.
func ListByState(s store.Store, st model.GameState) ([]model.GameID, error) {
	return idSet(s, stateKey(st))
}

// ListBroken returns the ids of broken games.
func ListBroken(s store.Store) ([]model.GameID, error) {
	return idSet(s, keyBroken)
}

func idSet(s store.Store, key string) ([]model.GameID, error) {
	members, err := s.SetMembers(key)
	if err != nil {
		return nil, err
	}
	ids := make([]model.GameID, 0, len(members))
	for _, m := range members {
		id, err := model.ParseGameID(m)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ID returns the game id.
func (g *Game) ID() model.GameID { return g.id }

func (g *Game) key(suffix string) string {
	return "game:" + g.id.String() + ":" + suffix
}

func (g *Game) settingsKey() string { return g.key("settings") }

// --- Settings ---

// Int reads an integer setting; missing reads as 0.
func (g *Game) Int(field string) (int64, error) {
	return store.GetInt(g.s, g.settingsKey(), field)
}

// SetInt writes an integer setting.
func (g *Game) SetInt(field string, v int64) error {
	return store.SetInt(g.s, g.settingsKey(), field, v)
}

// Time reads a time setting; missing reads as 0.
func (g *Game) Time(field string) (clock.Time, error) {
	n, err := g.Int(field)
	return clock.Time(n), err
}

// SetTime writes a time setting.
func (g *Game) SetTime(field string, t clock.Time) error {
	return g.SetInt(field, int64(t))
}

// Flag reads a boolean setting.
func (g *Game) Flag(field string) (bool, error) {
	n, err := g.Int(field)
	return n != 0, err
}

// ClearField removes a setting.
func (g *Game) ClearField(field string) error {
	return g.s.HashDelete(g.settingsKey(), field)
}

// Name returns the game's display name.
func (g *Game) Name() (string, error) {
	return store.GetString(g.s, g.settingsKey(), FieldName)
}

// Turn returns the current turn number; 0 means never hosted.
func (g *Game) Turn() (int, error) {
	n, err := g.Int(FieldTurn)
	return int(n), err
}

// SetTurn sets the turn number.
func (g *Game) SetTurn(turn int) error {
	return g.SetInt(FieldTurn, int64(turn))
}

// Settings returns all settings for display.
func (g *Game) Settings() (map[string]string, error) {
	return g.s.HashGetAll(g.settingsKey())
}

// --- Lifecycle ---

// State returns the game's lifecycle state.
func (g *Game) State() (model.GameState, error) {
	v, err := store.GetString(g.s, g.settingsKey(), FieldState)
	if err != nil {
		return "", err
	}
	if v == "" {
		return model.StatePreparing, nil
	}
	st, err := model.ParseGameState(v)
	if err != nil {
		return "", fmt.Errorf("%w: game %d: %w", store.ErrMalformed, g.id, err)
	}
	return st, nil
}

// SetState moves the game into a lifecycle state, keeping the per-state
// sets in step with the settings field.
func (g *Game) SetState(st model.GameState) error {
	if _, err := model.ParseGameState(string(st)); err != nil {
		return err
	}
	for _, other := range model.AllStates {
		if other == st {
			continue
		}
		if err := g.s.SetRemove(stateKey(other), g.id.String()); err != nil {
			return err
		}
	}
	if err := g.s.SetAdd(stateKey(st), g.id.String()); err != nil {
		return err
	}
	return g.s.HashSet(g.settingsKey(), FieldState, string(st))
}

// IsBroken reports whether the game is excluded from scheduling.
func (g *Game) IsBroken() (bool, error) {
	return g.s.SetContains(keyBroken, g.id.String())
}

// MarkBroken excludes the game from scheduling and records why.
func (g *Game) MarkBroken(msg string) error {
	if err := g.s.HashSet(g.settingsKey(), FieldCrashMessage, msg); err != nil {
		return err
	}
	return g.s.SetAdd(keyBroken, g.id.String())
}

// Unbreak returns a broken game to scheduling.
func (g *Game) Unbreak() error {
	if err := g.s.SetRemove(keyBroken, g.id.String()); err != nil {
		return err
	}
	return g.ClearField(FieldCrashMessage)
}

// CrashMessage returns the reason the game was marked broken.
func (g *Game) CrashMessage() (string, error) {
	return store.GetString(g.s, g.settingsKey(), FieldCrashMessage)
}

// --- Slots and turns ---

func slotField(slot int) string { return strconv.Itoa(slot) }

func checkSlot(slot int) error {
	if slot < 1 || slot > model.NumSlots {
		return fmt.Errorf("%w: %d is out of range 1..%d", ErrBadSlot, slot, model.NumSlots)
	}
	return nil
}

// SetSlotInGame adds or removes a slot from the game.
func (g *Game) SetSlotInGame(slot int, in bool) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if in {
		return g.s.HashSet(g.key("slots"), slotField(slot), "1")
	}
	return g.s.HashDelete(g.key("slots"), slotField(slot))
}

// IsSlotInGame reports whether a slot takes part in the game.
func (g *Game) IsSlotInGame(slot int) (bool, error) {
	v, _, err := g.s.HashGet(g.key("slots"), slotField(slot))
	return v == "1", err
}

// SlotUsers returns the users playing a slot.
func (g *Game) SlotUsers(slot int) ([]string, error) {
	return g.s.SetMembers(g.key("slot:" + slotField(slot) + ":users"))
}

// IsSlotPlayed reports whether a slot is in the game and has a player.
func (g *Game) IsSlotPlayed(slot int) (bool, error) {
	in, err := g.IsSlotInGame(slot)
	if err != nil || !in {
		return false, err
	}
	users, err := g.SlotUsers(slot)
	return len(users) > 0, err
}

// JoinSlot adds a user to a slot and records the join time.
func (g *Game) JoinSlot(slot int, user string, now clock.Time) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	in, err := g.IsSlotInGame(slot)
	if err != nil {
		return err
	}
	if !in {
		return fmt.Errorf("%w: slot %d is not in game %d", ErrBadSlot, slot, g.id)
	}
	if err := g.s.SetAdd(g.key("slot:"+slotField(slot)+":users"), user); err != nil {
		return err
	}
	return g.SetTime(FieldLastPlayerJoined, now)
}

// LeaveSlot removes a user from a slot.
func (g *Game) LeaveSlot(slot int, user string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return g.s.SetRemove(g.key("slot:"+slotField(slot)+":users"), user)
}

// SlotStats counts slots in the game and how many of them have players.
func (g *Game) SlotStats() (inGame, played int, err error) {
	for slot := 1; slot <= model.NumSlots; slot++ {
		in, err := g.IsSlotInGame(slot)
		if err != nil {
			return 0, 0, err
		}
		if !in {
			continue
		}
		inGame++
		users, err := g.SlotUsers(slot)
		if err != nil {
			return 0, 0, err
		}
		if len(users) > 0 {
			played++
		}
	}
	return inGame, played, nil
}

// TurnStatus returns the recorded turn status of a slot.
func (g *Game) TurnStatus(slot int) (model.TurnStatus, error) {
	n, err := store.GetInt(g.s, g.key("turnstatus"), slotField(slot))
	return model.TurnStatus(n), err
}

// SetTurnStatus records a slot's turn status. A final turn also updates
// the last submission time.
func (g *Game) SetTurnStatus(slot int, st model.TurnStatus, now clock.Time) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if err := store.SetInt(g.s, g.key("turnstatus"), slotField(slot), int64(st)); err != nil {
		return err
	}
	if st.IsFinal() {
		return g.SetTime(FieldLastTurnSubmitted, now)
	}
	return nil
}

// ResetTurnStatus marks every played slot as missing its turn.
func (g *Game) ResetTurnStatus() error {
	for slot := 1; slot <= model.NumSlots; slot++ {
		played, err := g.IsSlotPlayed(slot)
		if err != nil {
			return err
		}
		if !played {
			continue
		}
		if err := store.SetInt(g.s, g.key("turnstatus"), slotField(slot), int64(model.TurnMissing)); err != nil {
			return err
		}
	}
	return nil
}
