package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
)

func (a *app) cmdSchedule(args []string) int {
	if len(args) == 0 {
		return usage("schedule list|add|drop <game> [flags]")
	}
	switch args[0] {
	case "list", "ls":
		return a.cmdScheduleList(args[1:])
	case "add":
		return a.cmdScheduleAdd(args[1:])
	case "drop":
		return a.cmdScheduleDrop(args[1:])
	}
	fmt.Fprintf(os.Stderr, "hostcron: schedule: unknown subcommand %q\n", args[0])
	return 1
}

func (a *app) cmdScheduleList(args []string) int {
	flags := flag.NewFlagSet("schedule list", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		return usage("schedule list <game> [--json]")
	}
	g, err := a.openGame(pos[0])
	if err != nil {
		return fail("schedule", err)
	}
	list, err := g.Schedules()
	if err != nil {
		return fail("schedule", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"game": g.ID(), "schedules": list})
		return 0
	}
	if len(list) == 0 {
		fmt.Printf("game %d has no schedule\n", g.ID())
		return 0
	}
	for i, s := range list {
		marker := ""
		if i == 0 {
			marker = "  <-- current"
		}
		fmt.Printf("  #%-4d %s%s\n", s.ID, s, marker)
	}
	return 0
}

// scheduleFlags are the flags of "schedule add".
type scheduleFlags struct {
	kind      string
	days      string
	every     int
	at        string
	early     bool
	delay     int
	limit     int
	untilTurn int
	until     string
}

func (f *scheduleFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&f.kind, "type", "weekly", "weekly, daily, quick, manual or stopped")
	flags.StringVar(&f.days, "days", "", "week days for weekly, e.g. mon,thu")
	flags.IntVar(&f.every, "every", 1, "days between hosts for daily")
	flags.StringVar(&f.at, "at", "00:00", "host time of day (HH:MM, UTC)")
	flags.BoolVar(&f.early, "early", false, "host early once all turns are in")
	flags.IntVar(&f.delay, "delay", 0, "minutes to wait after the last turn")
	flags.IntVar(&f.limit, "limit", 0, "minimum minutes between two hosts")
	flags.IntVar(&f.untilTurn, "until-turn", 0, "expire once the game reaches this turn")
	flags.StringVar(&f.until, "until", "", "expire at this time (YYYY-MM-DD HH:MM, UTC)")
}

// build converts the flags into a validated schedule.
func (f *scheduleFlags) build() (schedule.Schedule, error) {
	var s schedule.Schedule
	var err error
	if s.Type, err = model.ParseScheduleType(f.kind); err != nil {
		return s, err
	}
	if f.days != "" {
		if s.Weekdays, err = schedule.ParseWeekDays(f.days); err != nil {
			return s, err
		}
	}
	if s.Daytime, err = schedule.ParseDaytime(f.at); err != nil {
		return s, err
	}
	s.Interval = f.every
	s.HostEarly = f.early
	s.HostDelay = clock.Time(f.delay)
	s.HostLimit = clock.Time(f.limit)

	switch {
	case f.untilTurn > 0 && f.until != "":
		return s, fmt.Errorf("%w: --until-turn and --until are exclusive", schedule.ErrInvalid)
	case f.untilTurn > 0:
		s.Condition = model.ConditionTurn
		s.CondTurn = f.untilTurn
	case f.until != "":
		t, err := time.Parse("2006-01-02 15:04", f.until)
		if err != nil {
			return s, fmt.Errorf("%w: expiry time %q", schedule.ErrInvalid, f.until)
		}
		s.Condition = model.ConditionTime
		s.CondTime = clock.FromWall(t)
	}
	if s.Type == model.ScheduleWeekly && s.Weekdays == 0 {
		return s, fmt.Errorf("%w: weekly schedule needs --days", schedule.ErrInvalid)
	}
	return s, s.Validate()
}

func (a *app) cmdScheduleAdd(args []string) int {
	flags := flag.NewFlagSet("schedule add", flag.ContinueOnError)
	var sf scheduleFlags
	sf.register(flags)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		return usage("schedule add <game> --type T [--days D] [--at HH:MM] [--every N] [--early] [--delay N] [--limit N] [--until-turn N | --until T]")
	}
	id, err := model.ParseGameID(pos[0])
	if err != nil {
		return fail("schedule", err)
	}
	s, err := sf.build()
	if err != nil {
		return fail("schedule", err)
	}

	c, err := a.dial()
	if err != nil {
		return fail("schedule", err)
	}
	defer c.Close()
	sid, err := c.AddSchedule(id, s)
	if err != nil {
		return fail("schedule", err)
	}
	s.ID = sid

	if *jsonOut {
		printJSON(map[string]interface{}{"game": id, "schedule": s})
	} else {
		fmt.Printf("game %d: added schedule #%d: %s\n", id, sid, s)
	}
	return 0
}

func (a *app) cmdScheduleDrop(args []string) int {
	flags := flag.NewFlagSet("schedule drop", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		return usage("schedule drop <game> [--json]")
	}
	id, err := model.ParseGameID(pos[0])
	if err != nil {
		return fail("schedule", err)
	}

	c, err := a.dial()
	if err != nil {
		return fail("schedule", err)
	}
	defer c.Close()
	dropped, err := c.DropSchedule(id)
	if err != nil {
		return fail("schedule", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"game": id, "dropped": dropped})
	} else if dropped {
		fmt.Printf("game %d: dropped current schedule\n", id)
	} else {
		fmt.Printf("game %d has no schedule\n", id)
	}
	return 0
}
