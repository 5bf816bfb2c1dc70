package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/pcc2/hostcron/pkg/arbiter"
	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/config"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/host"
	"github.com/pcc2/hostcron/pkg/logging"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/server"
	"github.com/pcc2/hostcron/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg   *config.Config
	store store.Store
	root  *host.Root
	log   *slog.Logger
}

// newApp opens the configured store.
func newApp(cfg *config.Config) (*app, error) {
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	s, err := cfg.OpenStore()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:   cfg,
		store: s,
		root:  host.NewRoot(s, nil, log),
		log:   log,
	}, nil
}

// Close releases the store.
func (a *app) Close() { a.store.Close() }

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(w, &logging.Options{Level: level, Color: useColor(w)}), nil
}

// useColor applies HOSTCRON_COLOR: "always", "never", or "auto" for color
// on terminals unless NO_COLOR is set.
func useColor(w io.Writer) bool {
	switch envOr("HOSTCRON_COLOR", "auto") {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// dial connects to the running daemon.
func (a *app) dial() (*server.Client, error) {
	c, err := server.Dial(a.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable (is 'hostcron serve' running?): %w", err)
	}
	return c, nil
}

// openGame opens an existing game for reading.
func (a *app) openGame(arg string) (*game.Game, error) {
	id, err := model.ParseGameID(arg)
	if err != nil {
		return nil, err
	}
	return game.Open(a.store, id)
}

// fail reports err for cmd and returns the exit code: 2 when the game is
// locked, 1 otherwise.
func fail(cmd string, err error) int {
	fmt.Fprintf(os.Stderr, "hostcron: %s: %v\n", cmd, err)
	if errors.Is(err, arbiter.ErrLocked) {
		return 2
	}
	return 1
}

// parseArgs parses flags that may come before or after the positional
// arguments and returns the positionals.
func parseArgs(flags *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}
		args = flags.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// usage prints a usage line and returns exit code 1.
func usage(line string) int {
	fmt.Fprintln(os.Stderr, "usage: hostcron "+line)
	return 1
}

// formatTime renders a scheduler time for humans.
func formatTime(t clock.Time) string {
	if t <= 0 {
		return "-"
	}
	w := t.Wall()
	return fmt.Sprintf("%s (%s)", w.Format("2006-01-02 15:04"), humanize.Time(w))
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
