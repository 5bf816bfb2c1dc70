// Command hostcron runs and inspects the turn scheduler of a game host.
package main

import (
	"fmt"
	"os"

	"github.com/pcc2/hostcron/pkg/config"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("hostcron", version)
		return
	}

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostcron: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostcron: %v\n", err)
		os.Exit(1)
	}
	code := a.run(os.Args[1], os.Args[2:])
	a.Close()
	os.Exit(code)
}

func (a *app) run(cmd string, args []string) int {
	switch cmd {
	// Daemon
	case "serve":
		return a.cmdServe(args)

	// Scheduler queries
	case "get":
		return a.cmdGet(args)
	case "list", "ls":
		return a.cmdList(args)
	case "kick":
		return a.cmdKick(args)

	// Games
	case "status":
		return a.cmdStatus(args)
	case "schedule":
		return a.cmdSchedule(args)
	case "create":
		return a.cmdCreate(args)
	case "state":
		return a.cmdState(args)
	case "slot":
		return a.cmdSlot(args)
	case "join":
		return a.cmdJoin(args)
	case "leave":
		return a.cmdLeave(args)
	case "turn":
		return a.cmdTurn(args)
	case "hostnow":
		return a.cmdHostNow(args)
	case "unbreak":
		return a.cmdUnbreak(args)
	case "history":
		return a.cmdHistory(args)
	}
	fmt.Fprintf(os.Stderr, "hostcron: unknown command %q\n", cmd)
	fmt.Fprintln(os.Stderr, "Run 'hostcron --help' for usage.")
	return 1
}

func printUsage() {
	fmt.Print(`hostcron - turn scheduler for hosted games

Usage:
  hostcron <command> [flags]

Daemon:
  serve [--addr A]                 Run the scheduler and its command server

Scheduler:
  get <game>                       Next scheduled action of a game
  list [--limit N]                 All scheduled actions, soonest first
  kick <game>                      Ask the scheduler to re-evaluate a game

Games:
  status [game] [--broken]         Game overview, or details of one game
  schedule list <game>             Show the schedule queue
  schedule add <game> [flags]      Append a schedule (see 'schedule add -h')
  schedule drop <game>             Drop the current schedule
  create <game> [--name N]         Register a new game (preparing)
  state <game> <state>             Set preparing, joining, running, finished or deleted
  slot <game> <slot> in|out        Take a slot into or out of the game
  join <game> <slot> <user>        Add a player to a slot
  leave <game> <slot> <user>       Remove a player from a slot
  turn <game> <slot> <status>      Record a turn check: green, yellow, red,
                                   bad, stale or missing [--temporary]
  hostnow <game>                   Request a host run (manual schedules)
  unbreak <game>                   Clear a game's broken mark
  history <game> [--limit N]       Show a game's history

Aliases:
  ls = list

Environment:
  HOSTCRON_CONFIG      YAML config file (default: hostcron.yaml)
  HOSTCRON_DB          SQLite database path (default: hostcron.db)
  HOSTCRON_REDIS       Redis address; replaces SQLite when set
  HOSTCRON_ADDR        Daemon address (default: 127.0.0.1:6390)
  HOSTCRON_HOST_CMD    Host command line, "{game}" is the game id
  HOSTCRON_MASTER_CMD  Master command line
  HOSTCRON_LOG_LEVEL   debug, info, warn or error
  HOSTCRON_COLOR       always, never or auto (default; honors NO_COLOR)

All query commands support --json for machine-readable output.

Exit codes:
  0  success
  1  error
  2  game locked (retry later)
`)
}
