package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/server"
)

func (a *app) cmdHostNow(args []string) int {
	flags := flag.NewFlagSet("hostnow", flag.ContinueOnError)
	return a.gameCommand(flags, "", args, func(c *server.Client, id model.GameID, _ []string) (string, error) {
		if err := c.HostNow(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d: host requested", id), nil
	})
}

func (a *app) cmdUnbreak(args []string) int {
	flags := flag.NewFlagSet("unbreak", flag.ContinueOnError)
	return a.gameCommand(flags, "", args, func(c *server.Client, id model.GameID, _ []string) (string, error) {
		if err := c.Unbreak(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("game %d is no longer broken", id), nil
	})
}

// gameCommand parses "<cmd> <game> <params> [--json]", where params names
// the positional arguments after the game, and runs fn against the daemon
// with those arguments.
func (a *app) gameCommand(flags *flag.FlagSet, params string, args []string,
	fn func(c *server.Client, id model.GameID, rest []string) (string, error)) int {
	cmd := flags.Name()
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	line := cmd + " <game>"
	if params != "" {
		line += " " + params
	}
	if len(pos) != 1+len(strings.Fields(params)) {
		return usage(line + " [--json]")
	}
	id, err := model.ParseGameID(pos[0])
	if err != nil {
		return fail(cmd, err)
	}

	c, err := a.dial()
	if err != nil {
		return fail(cmd, err)
	}
	defer c.Close()
	msg, err := fn(c, id, pos[1:])
	if err != nil {
		return fail(cmd, err)
	}
	if *jsonOut {
		printJSON(map[string]interface{}{"game": id, "ok": true})
	} else {
		fmt.Println(msg)
	}
	return 0
}

func (a *app) cmdHistory(args []string) int {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := flags.Int("limit", 20, "show the last N entries (0 = all)")
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		return usage("history <game> [--limit N] [--json]")
	}
	g, err := a.openGame(pos[0])
	if err != nil {
		return fail("history", err)
	}
	hist, err := g.History()
	if err != nil {
		return fail("history", err)
	}
	if *limit > 0 && len(hist) > *limit {
		hist = hist[len(hist)-*limit:]
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"game": g.ID(), "history": hist})
		return 0
	}
	if len(hist) == 0 {
		fmt.Printf("game %d has no history\n", g.ID())
		return 0
	}
	for _, h := range hist {
		fmt.Printf("  %s  %s\n", h.Time.Wall().Format("2006-01-02 15:04"), h.Text)
	}
	return 0
}
