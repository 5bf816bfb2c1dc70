package main

import (
	"flag"
	"fmt"

	"github.com/dustin/go-humanize/english"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
)

// gameInfo is a snapshot of one game as shown by status.
type gameInfo struct {
	ID       model.GameID    `json:"id"`
	Name     string          `json:"name"`
	State    model.GameState `json:"state"`
	Turn     int             `json:"turn"`
	LastHost clock.Time      `json:"last_host"`
	NextHost clock.Time      `json:"next_host"`
	InGame   int             `json:"slots"`
	Played   int             `json:"slots_in"`
	Broken   bool            `json:"broken"`
	Crash    string          `json:"crash,omitempty"`

	Schedule *schedule.Schedule `json:"schedule,omitempty"`
}

func loadGameInfo(g *game.Game) (gameInfo, error) {
	info := gameInfo{ID: g.ID()}
	var err error
	if info.Name, err = g.Name(); err != nil {
		return info, err
	}
	if info.State, err = g.State(); err != nil {
		return info, err
	}
	if info.Turn, err = g.Turn(); err != nil {
		return info, err
	}
	if info.LastHost, err = g.Time(game.FieldLastHostTime); err != nil {
		return info, err
	}
	if info.NextHost, err = g.Time(game.FieldNextHostTime); err != nil {
		return info, err
	}
	if info.InGame, info.Played, err = g.SlotStats(); err != nil {
		return info, err
	}
	if info.Broken, err = g.IsBroken(); err != nil {
		return info, err
	}
	if info.Broken {
		if info.Crash, err = g.CrashMessage(); err != nil {
			return info, err
		}
	}
	sch, ok, err := g.CurrentSchedule()
	if err != nil {
		return info, err
	}
	if ok {
		info.Schedule = &sch
	}
	return info, nil
}

func (a *app) cmdStatus(args []string) int {
	flags := flag.NewFlagSet("status", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	brokenOnly := flags.Bool("broken", false, "only broken games")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) > 1 || (len(pos) == 1 && *brokenOnly) {
		return usage("status [game | --broken] [--json]")
	}

	if len(pos) == 1 {
		g, err := a.openGame(pos[0])
		if err != nil {
			return fail("status", err)
		}
		info, err := loadGameInfo(g)
		if err != nil {
			return fail("status", err)
		}
		if *jsonOut {
			printJSON(info)
		} else {
			printGameDetails(info)
		}
		return 0
	}

	list := game.List
	if *brokenOnly {
		list = game.ListBroken
	}
	ids, err := list(a.store)
	if err != nil {
		return fail("status", err)
	}
	infos := make([]gameInfo, 0, len(ids))
	for _, id := range ids {
		info, err := loadGameInfo(game.New(a.store, id))
		if err != nil {
			return fail("status", err)
		}
		infos = append(infos, info)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"games": infos, "count": len(infos)})
		return 0
	}
	if len(infos) == 0 {
		if *brokenOnly {
			fmt.Println("no broken games")
		} else {
			fmt.Println("no games")
		}
		return 0
	}
	fmt.Printf("%s:\n", english.Plural(len(infos), "game", "games"))
	for _, info := range infos {
		mark := ""
		if info.Broken {
			mark = "  BROKEN"
		}
		fmt.Printf("  %-5d %-10s turn %-4d %d/%d in  next %s%s\n",
			info.ID, info.State, info.Turn, info.Played, info.InGame, formatTime(info.NextHost), mark)
	}
	return 0
}

func printGameDetails(info gameInfo) {
	fmt.Printf("game %d %q\n", info.ID, info.Name)
	fmt.Printf("  state:     %s\n", info.State)
	fmt.Printf("  turn:      %d (%d of %d turns in)\n", info.Turn, info.Played, info.InGame)
	fmt.Printf("  last host: %s\n", formatTime(info.LastHost))
	fmt.Printf("  next host: %s\n", formatTime(info.NextHost))
	if info.Schedule != nil {
		fmt.Printf("  schedule:  %s\n", info.Schedule)
	} else {
		fmt.Println("  schedule:  none")
	}
	if info.Broken {
		fmt.Printf("  BROKEN:    %s\n", info.Crash)
	}
}
