package main

import (
	"flag"
	"fmt"

	"github.com/pcc2/hostcron/pkg/model"
)

// eventJSON is the machine-readable form of a scheduled event.
type eventJSON struct {
	Game   model.GameID `json:"game"`
	Action string       `json:"action"`
	Time   int64        `json:"time"`
	At     string       `json:"at,omitempty"`
}

func toEventJSON(ev model.Event) eventJSON {
	out := eventJSON{Game: ev.GameID, Action: ev.Action.String(), Time: int64(ev.Time)}
	if ev.Time > 0 {
		out.At = ev.Time.Wall().Format("2006-01-02T15:04:05Z")
	}
	return out
}

func printEvent(ev model.Event) {
	switch ev.Action {
	case model.ActionNone:
		fmt.Printf("game %d: nothing scheduled\n", ev.GameID)
		return
	case model.ActionUnknown:
		fmt.Printf("game %d: change pending\n", ev.GameID)
		return
	}
	when := formatTime(ev.Time)
	if ev.Time == 0 {
		when = "due now"
	}
	fmt.Printf("game %-5d %-15s %s\n", ev.GameID, ev.Action, when)
}

func (a *app) cmdGet(args []string) int {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		return usage("get <game> [--json]")
	}
	id, err := model.ParseGameID(pos[0])
	if err != nil {
		return fail("get", err)
	}

	c, err := a.dial()
	if err != nil {
		return fail("get", err)
	}
	defer c.Close()
	ev, err := c.Get(id)
	if err != nil {
		return fail("get", err)
	}

	if *jsonOut {
		printJSON(toEventJSON(ev))
	} else {
		printEvent(ev)
	}
	return 0
}

func (a *app) cmdList(args []string) int {
	flags := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := flags.Int("limit", -1, "show at most N events (-1 = all)")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	c, err := a.dial()
	if err != nil {
		return fail("list", err)
	}
	defer c.Close()
	evs, err := c.List(*limit)
	if err != nil {
		return fail("list", err)
	}

	if *jsonOut {
		out := make([]eventJSON, len(evs))
		for i, ev := range evs {
			out[i] = toEventJSON(ev)
		}
		printJSON(map[string]interface{}{"events": out, "count": len(out)})
		return 0
	}
	if len(evs) == 0 {
		fmt.Println("nothing scheduled")
		return 0
	}
	for _, ev := range evs {
		printEvent(ev)
	}
	return 0
}

func (a *app) cmdKick(args []string) int {
	flags := flag.NewFlagSet("kick", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		return usage("kick <game> [--json]")
	}
	id, err := model.ParseGameID(pos[0])
	if err != nil {
		return fail("kick", err)
	}

	c, err := a.dial()
	if err != nil {
		return fail("kick", err)
	}
	defer c.Close()
	ok, err := c.Kick(id)
	if err != nil {
		return fail("kick", err)
	}
	if !ok {
		return fail("kick", fmt.Errorf("game %d does not exist", id))
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"game": id, "kicked": true})
	} else {
		fmt.Printf("game %d queued for re-evaluation\n", id)
	}
	return 0
}
