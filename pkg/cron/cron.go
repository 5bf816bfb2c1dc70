// Package cron decides when games get hosted and runs them when due.
//
// Impl keeps one event per scheduled game in memory. External callers
// report configuration changes with HandleGameChange; the scheduler
// goroutine recomputes those games, moves events whose time has come to
// the due list and runs them one at a time, holding the game's Host
// arbiter lock from the moment an event becomes due until its successor
// has been computed.
package cron

import (
	"context"

	"github.com/pcc2/hostcron/pkg/model"
)

// Cron is the scheduler surface seen by request handlers.
type Cron interface {
	// GetGameEvent returns the scheduled event of one game. A game whose
	// change has not been processed yet reports ActionUnknown; a due game
	// reports time 0.
	GetGameEvent(id model.GameID) model.Event

	// ListGameEvents returns all due (time 0) and future events in time
	// order.
	ListGameEvents() []model.Event

	// HandleGameChange tells the scheduler a game's configuration changed.
	HandleGameChange(id model.GameID)
}

// HostRunner performs turn processing. Errors mark the game broken.
type HostRunner interface {
	RunHost(ctx context.Context, id model.GameID) error
	RunMaster(ctx context.Context, id model.GameID) error
}

// NullCron schedules nothing. It serves tools that run without a
// scheduler.
type NullCron struct{}

// GetGameEvent reports no action.
func (NullCron) GetGameEvent(id model.GameID) model.Event {
	return model.Event{GameID: id, Action: model.ActionNone}
}

// ListGameEvents returns nothing.
func (NullCron) ListGameEvents() []model.Event { return nil }

// HandleGameChange does nothing.
func (NullCron) HandleGameChange(model.GameID) {}

var (
	_ Cron = NullCron{}
	_ Cron = (*Impl)(nil)
)
