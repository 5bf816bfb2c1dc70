package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pcc2/hostcron/pkg/model"
)

// Job is one invocation of an external host or master program.
type Job struct {
	RunID string
	Game  model.GameID
	Kind  string
	Args  []string
}

// Runner executes jobs. Implementations report failure as an error and
// must return once ctx is done.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// ExecRunner runs jobs as child processes.
type ExecRunner struct {
	// Timeout bounds one run; zero means no limit.
	Timeout time.Duration
	Log     *slog.Logger
}

// maxOutputTail is how much process output is kept in error messages.
const maxOutputTail = 400

// Run starts job.Args[0] with the remaining arguments. The child sees the
// run id and game id in HOSTCRON_RUN_ID and HOSTCRON_GAME.
func (r *ExecRunner) Run(ctx context.Context, job Job) error {
	if len(job.Args) == 0 {
		return fmt.Errorf("%s: no command configured", job.Kind)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, job.Args[0], job.Args[1:]...)
	cmd.Env = append(os.Environ(),
		"HOSTCRON_RUN_ID="+job.RunID,
		"HOSTCRON_GAME="+job.Game.String(),
	)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if r.Log != nil {
		r.Log.Debug("process finished", "run", job.RunID, "kind", job.Kind, "game", job.Game, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.Timeout, err)
		}
		if tail := outputTail(out); tail != "" {
			return fmt.Errorf("%s %s: %w: %s", job.Kind, job.Args[0], err, tail)
		}
		return fmt.Errorf("%s %s: %w", job.Kind, job.Args[0], err)
	}
	return nil
}

// outputTail keeps the last maxOutputTail bytes of out, starting on a rune
// boundary.
func outputTail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) <= maxOutputTail {
		return s
	}
	cut := len(s) - maxOutputTail
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}

// expandArgs substitutes {game} in every argument.
func expandArgs(args []string, id model.GameID) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, "{game}", id.String())
	}
	return out
}
