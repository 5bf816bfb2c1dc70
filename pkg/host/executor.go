package host

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/model"
)

// Executor runs host and master processing for a game and records the
// result in the game's state.
type Executor struct {
	root      *Root
	runner    Runner
	hostCmd   []string
	masterCmd []string
}

// NewExecutor creates an executor. The command lines may contain {game},
// which is replaced by the game id.
func NewExecutor(root *Root, runner Runner, hostCmd, masterCmd []string) *Executor {
	return &Executor{root: root, runner: runner, hostCmd: hostCmd, masterCmd: masterCmd}
}

// RunHost processes one turn. The store lock must not be held by the
// caller.
func (e *Executor) RunHost(ctx context.Context, id model.GameID) error {
	if err := e.run(ctx, "host", e.hostCmd, id); err != nil {
		return err
	}

	e.root.Lock()
	defer e.root.Unlock()

	now := e.root.Now()
	g := game.New(e.root.Store(), id)
	turn, err := g.Turn()
	if err != nil {
		return err
	}
	turn++
	if err := g.SetTurn(turn); err != nil {
		return err
	}
	if err := g.SetTime(game.FieldLastHostTime, now); err != nil {
		return err
	}
	if err := g.ClearField(game.FieldHostRunNow); err != nil {
		return err
	}
	if err := g.ResetTurnStatus(); err != nil {
		return err
	}
	return g.AddHistory(now, fmt.Sprintf("host: turn %d", turn))
}

// RunMaster sets up a game whose slots are all filled and starts it.
func (e *Executor) RunMaster(ctx context.Context, id model.GameID) error {
	if err := e.run(ctx, "master", e.masterCmd, id); err != nil {
		return err
	}

	e.root.Lock()
	defer e.root.Unlock()

	now := e.root.Now()
	g := game.New(e.root.Store(), id)
	if err := g.SetInt(game.FieldMasterHasRun, 1); err != nil {
		return err
	}
	turn, err := g.Turn()
	if err != nil {
		return err
	}
	if turn == 0 {
		if err := g.SetTurn(1); err != nil {
			return err
		}
	}
	if err := g.SetTime(game.FieldLastHostTime, now); err != nil {
		return err
	}
	st, err := g.State()
	if err != nil {
		return err
	}
	if st == model.StateJoining {
		if err := g.SetState(model.StateRunning); err != nil {
			return err
		}
	}
	return g.AddHistory(now, "master: game started")
}

func (e *Executor) run(ctx context.Context, kind string, args []string, id model.GameID) error {
	job := Job{
		RunID: uuid.NewString(),
		Game:  id,
		Kind:  kind,
		Args:  expandArgs(args, id),
	}
	log := e.root.Logger().With("run", job.RunID, "game", id)
	log.Info("starting "+kind, "cmd", job.Args)
	if err := e.runner.Run(ctx, job); err != nil {
		log.Error(kind+" failed", "err", err)
		return err
	}
	log.Info(kind + " finished")
	return nil
}
