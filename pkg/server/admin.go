package server

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mediocregopher/radix/v3/resp"
	"github.com/mediocregopher/radix/v3/resp/resp2"

	"github.com/pcc2/hostcron/pkg/arbiter"
	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
)

// lockedPrefix starts the error reply for a game that is busy. Clients
// map it back to arbiter.ErrLocked.
const lockedPrefix = "LOCKED"

var errBadArg = errors.New("invalid argument")

// adminArgs is the usage of each administrative command after the game id.
var adminArgs = map[string]string{
	"GAMECREATE":   "[name]",
	"GAMESTATE":    "<state>",
	"SLOTSET":      "<slot> <0|1>",
	"JOIN":         "<slot> <user>",
	"LEAVE":        "<slot> <user>",
	"TURNSTATUS":   "<slot> <status>",
	"HOSTNOW":      "",
	"UNBREAK":      "",
	"SCHEDULEADD":  "[field value ...]",
	"SCHEDULEDROP": "",
}

func adminHelp() []string {
	names := make([]string, 0, len(adminArgs))
	for name := range adminArgs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.TrimSpace(name + " <game> " + adminArgs[name])
	}
	return out
}

// arityOK checks the number of arguments after the game id.
func arityOK(cmd string, n int) bool {
	switch cmd {
	case "GAMECREATE":
		return n <= 1
	case "GAMESTATE":
		return n == 1
	case "SLOTSET", "JOIN", "LEAVE", "TURNSTATUS":
		return n == 2
	case "SCHEDULEADD":
		return n%2 == 0
	}
	return n == 0
}

// Administrative commands change a game under a Critical lock and then
// notify the scheduler. GAMECREATE registers a new game; the others need
// an existing one:
//
//	GAMECREATE <game> [name]             new game in the preparing state
//	GAMESTATE <game> <state>             move the game to a lifecycle state
//	SLOTSET <game> <slot> <0|1>          take a slot out of or into the game
//	JOIN <game> <slot> <user>            a player joins a slot
//	LEAVE <game> <slot> <user>           a player leaves a slot
//	TURNSTATUS <game> <slot> <status>    record a turn file check result
//	HOSTNOW <game>                       request a host run (manual schedules)
//	UNBREAK <game>                       clear the broken mark
//	SCHEDULEADD <game> [field value...]  append a schedule; replies its id
//	SCHEDULEDROP <game>                  drop the current schedule
func (s *Server) admin(cmd string, args []string) resp.Marshaler {
	if len(args) < 1 || !arityOK(cmd, len(args)-1) {
		return errReply("wrong number of arguments for %s", cmd)
	}
	id, err := model.ParseGameID(args[0])
	if err != nil {
		return errReply("%v", err)
	}

	var reply resp.Marshaler = resp2.Int{I: 1}
	if cmd == "GAMECREATE" {
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		err = s.createGame(id, name)
	} else {
		err = s.withGame(id, func(g *game.Game, now clock.Time) error {
			var err error
			reply, err = applyAdmin(cmd, g, now, args[1:])
			return err
		})
	}
	switch {
	case err == nil:
		s.cron.HandleGameChange(id)
		s.log.Info("game changed", "cmd", strings.ToLower(cmd), "game", id)
		return reply
	case errors.Is(err, arbiter.ErrLocked):
		return resp2.Error{E: fmt.Errorf("%s %v", lockedPrefix, err)}
	case errors.Is(err, game.ErrNotFound), errors.Is(err, game.ErrExists),
		errors.Is(err, game.ErrBadSlot), errors.Is(err, schedule.ErrInvalid),
		errors.Is(err, errBadArg):
		return errReply("%v", err)
	default:
		s.log.Error("command failed", "cmd", strings.ToLower(cmd), "game", id, "err", err)
		return errReply("%v", err)
	}
}

// applyAdmin runs one command on g. The caller holds the game's Critical
// lock and the store lock.
func applyAdmin(cmd string, g *game.Game, now clock.Time, args []string) (resp.Marshaler, error) {
	ok := resp2.Int{I: 1}
	switch cmd {
	case "GAMESTATE":
		st, err := model.ParseGameState(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadArg, err)
		}
		if err := g.SetState(st); err != nil {
			return nil, err
		}
		return ok, g.AddHistory(now, "state set to "+string(st))
	case "SLOTSET":
		slot, err := parseSlot(args[0])
		if err != nil {
			return nil, err
		}
		in, err := strconv.ParseBool(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not 0 or 1", errBadArg, args[1])
		}
		if err := g.SetSlotInGame(slot, in); err != nil {
			return nil, err
		}
		verb := "removed from"
		if in {
			verb = "added to"
		}
		return ok, g.AddHistory(now, fmt.Sprintf("slot %d %s the game", slot, verb))
	case "JOIN":
		slot, err := parseSlot(args[0])
		if err != nil {
			return nil, err
		}
		if err := g.JoinSlot(slot, args[1], now); err != nil {
			return nil, err
		}
		return ok, g.AddHistory(now, fmt.Sprintf("%s joined slot %d", args[1], slot))
	case "LEAVE":
		slot, err := parseSlot(args[0])
		if err != nil {
			return nil, err
		}
		if err := g.LeaveSlot(slot, args[1]); err != nil {
			return nil, err
		}
		return ok, g.AddHistory(now, fmt.Sprintf("%s left slot %d", args[1], slot))
	case "TURNSTATUS":
		slot, err := parseSlot(args[0])
		if err != nil {
			return nil, err
		}
		st, err := model.ParseTurnStatus(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadArg, err)
		}
		in, err := g.IsSlotInGame(slot)
		if err != nil {
			return nil, err
		}
		if !in {
			return nil, fmt.Errorf("%w: slot %d is not in game %d", game.ErrBadSlot, slot, g.ID())
		}
		return ok, g.SetTurnStatus(slot, st, now)
	case "HOSTNOW":
		if err := g.SetInt(game.FieldHostRunNow, 1); err != nil {
			return nil, err
		}
		return ok, g.AddHistory(now, "host requested")
	case "UNBREAK":
		if err := g.Unbreak(); err != nil {
			return nil, err
		}
		return ok, g.AddHistory(now, "unbroken")
	case "SCHEDULEADD":
		sch, err := parseSchedule(args)
		if err != nil {
			return nil, err
		}
		sid, err := g.AddSchedule(sch, now)
		if err != nil {
			return nil, err
		}
		return resp2.Int{I: sid}, g.AddHistory(now, fmt.Sprintf("schedule %d added: %s", sid, sch))
	case "SCHEDULEDROP":
		dropped, err := g.DropFirstSchedule()
		if err != nil {
			return nil, err
		}
		if !dropped {
			return resp2.Int{I: 0}, nil
		}
		if err := g.SetTime(game.FieldLastScheduleChange, now); err != nil {
			return nil, err
		}
		return ok, g.AddHistory(now, "schedule dropped")
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

// createGame registers a new game under a Critical lock on its id.
func (s *Server) createGame(id model.GameID, name string) error {
	return arbiter.WithLock(s.root.Arbiter(), id, arbiter.Critical, func() error {
		s.root.Lock()
		defer s.root.Unlock()
		g, err := game.Create(s.root.Store(), id, name)
		if err != nil {
			return err
		}
		return g.AddHistory(s.root.Now(), "created")
	})
}

// withGame runs fn on an existing game while holding a Critical lock on it
// and the root store lock.
func (s *Server) withGame(id model.GameID, fn func(g *game.Game, now clock.Time) error) error {
	return arbiter.WithLock(s.root.Arbiter(), id, arbiter.Critical, func() error {
		s.root.Lock()
		defer s.root.Unlock()
		g, err := game.Open(s.root.Store(), id)
		if err != nil {
			return err
		}
		return fn(g, s.root.Now())
	})
}

func parseSlot(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil || slot < 1 || slot > model.NumSlots {
		return 0, fmt.Errorf("%w: %q is out of range 1..%d", game.ErrBadSlot, arg, model.NumSlots)
	}
	return slot, nil
}

// parseSchedule decodes field/value pairs in the stored schedule format.
func parseSchedule(args []string) (schedule.Schedule, error) {
	h := make(map[string]string, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		h[args[i]] = args[i+1]
	}
	sch, err := schedule.FromHash(0, h)
	if err != nil {
		return sch, fmt.Errorf("%w: %v", schedule.ErrInvalid, err)
	}
	return sch, sch.Validate()
}
