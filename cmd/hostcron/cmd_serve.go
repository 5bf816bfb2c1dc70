package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcc2/hostcron/pkg/cron"
	"github.com/pcc2/hostcron/pkg/host"
	"github.com/pcc2/hostcron/pkg/server"
)

func (a *app) cmdServe(args []string) int {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := flags.String("addr", a.cfg.Listen, "listen address")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if err := a.cfg.ValidateServe(); err != nil {
		return fail("serve", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.serve(ctx, *addr); err != nil {
		return fail("serve", err)
	}
	return 0
}

// serve runs the scheduler and the command server until ctx is cancelled
// or the scheduler dies.
func (a *app) serve(ctx context.Context, addr string) error {
	runner := &host.ExecRunner{Timeout: a.cfg.RunTimeout, Log: a.log.With("component", "runner")}
	exec := host.NewExecutor(a.root, runner, a.cfg.HostCommand, a.cfg.MasterCommand)

	sched, err := cron.New(a.root, exec,
		cron.WithMaxSleep(a.cfg.MaxSleep),
		cron.WithLogger(a.log))
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srvErr := make(chan error, 1)
	go func() { srvErr <- server.New(a.root, sched).ListenAndServe(ctx, addr) }()

	a.log.Info("hostcron started", "addr", addr, "events", len(sched.ListGameEvents()))
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		<-srvErr
		return nil
	case <-sched.Done():
		cancel()
		<-srvErr
		if err := sched.Err(); err != nil {
			return fmt.Errorf("scheduler stopped: %w", err)
		}
		return errors.New("scheduler stopped")
	case err := <-srvErr:
		return err
	}
}
