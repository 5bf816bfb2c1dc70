package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/server"
)

// Game administration commands are applied by the daemon under the game's
// Critical lock, and the scheduler re-evaluates the game afterwards.

func (a *app) cmdCreate(args []string) int {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	name := flags.String("name", "", "display name")
	return a.gameCommand(flags, "", args, func(c *server.Client, id model.GameID, _ []string) (string, error) {
		if err := c.CreateGame(id, *name); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d created", id), nil
	})
}

func (a *app) cmdState(args []string) int {
	flags := flag.NewFlagSet("state", flag.ContinueOnError)
	return a.gameCommand(flags, "<state>", args, func(c *server.Client, id model.GameID, rest []string) (string, error) {
		st, err := model.ParseGameState(rest[0])
		if err != nil {
			return "", err
		}
		if err := c.SetState(id, st); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d is now %s", id, st), nil
	})
}

func (a *app) cmdSlot(args []string) int {
	flags := flag.NewFlagSet("slot", flag.ContinueOnError)
	return a.gameCommand(flags, "<slot> in|out", args, func(c *server.Client, id model.GameID, rest []string) (string, error) {
		slot, err := parseSlot(rest[0])
		if err != nil {
			return "", err
		}
		var in bool
		switch rest[1] {
		case "in":
			in = true
		case "out":
		default:
			return "", fmt.Errorf("want in or out, got %q", rest[1])
		}
		if err := c.SetSlot(id, slot, in); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d: slot %d %s", id, slot, rest[1]), nil
	})
}

func (a *app) cmdJoin(args []string) int {
	flags := flag.NewFlagSet("join", flag.ContinueOnError)
	return a.gameCommand(flags, "<slot> <user>", args, func(c *server.Client, id model.GameID, rest []string) (string, error) {
		slot, err := parseSlot(rest[0])
		if err != nil {
			return "", err
		}
		if err := c.Join(id, slot, rest[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d: %s joined slot %d", id, rest[1], slot), nil
	})
}

func (a *app) cmdLeave(args []string) int {
	flags := flag.NewFlagSet("leave", flag.ContinueOnError)
	return a.gameCommand(flags, "<slot> <user>", args, func(c *server.Client, id model.GameID, rest []string) (string, error) {
		slot, err := parseSlot(rest[0])
		if err != nil {
			return "", err
		}
		if err := c.Leave(id, slot, rest[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d: %s left slot %d", id, rest[1], slot), nil
	})
}

func (a *app) cmdTurn(args []string) int {
	flags := flag.NewFlagSet("turn", flag.ContinueOnError)
	temporary := flags.Bool("temporary", false, "the player has not marked the turn final")
	return a.gameCommand(flags, "<slot> <status>", args, func(c *server.Client, id model.GameID, rest []string) (string, error) {
		slot, err := parseSlot(rest[0])
		if err != nil {
			return "", err
		}
		st, err := model.ParseTurnStatus(rest[1])
		if err != nil {
			return "", err
		}
		if *temporary {
			st |= model.TurnTemporary
		}
		if err := c.SetTurnStatus(id, slot, st); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d: slot %d turn %s", id, slot, st), nil
	})
}

func parseSlot(s string) (int, error) {
	slot, err := strconv.Atoi(s)
	if err != nil || slot < 1 || slot > model.NumSlots {
		return 0, fmt.Errorf("invalid slot %q (1..%d)", s, model.NumSlots)
	}
	return slot, nil
}
