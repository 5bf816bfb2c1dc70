package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mediocregopher/radix/v3"

	"github.com/pcc2/hostcron/pkg/arbiter"
	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/schedule"
)

// Client talks to a running scheduler daemon.
type Client struct {
	conn radix.Conn
}

// Dial connects to the daemon at addr.
func Dial(addr string) (*Client, error) {
	conn, err := radix.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Ping checks the connection.
func (c *Client) Ping() error {
	var pong string
	return c.conn.Do(radix.Cmd(&pong, "PING"))
}

// Get returns one game's scheduled event.
func (c *Client) Get(id model.GameID) (model.Event, error) {
	var m map[string]string
	if err := c.conn.Do(radix.Cmd(&m, "CRONGET", id.String())); err != nil {
		return model.Event{}, err
	}
	return eventFromMap(m)
}

// List returns the scheduled events; limit < 0 means all.
func (c *Client) List(limit int) ([]model.Event, error) {
	args := []string{}
	if limit >= 0 {
		args = append(args, "LIMIT", strconv.Itoa(limit))
	}
	var ms []map[string]string
	if err := c.conn.Do(radix.Cmd(&ms, "CRONLIST", args...)); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(ms))
	for _, m := range ms {
		ev, err := eventFromMap(m)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Kick asks the scheduler to recompute a game and reports whether the
// game exists.
func (c *Client) Kick(id model.GameID) (bool, error) {
	var n int
	if err := c.conn.Do(radix.Cmd(&n, "CRONKICK", id.String())); err != nil {
		return false, err
	}
	return n == 1, nil
}

// CreateGame registers a new game in the preparing state.
func (c *Client) CreateGame(id model.GameID, name string) error {
	args := []string{id.String()}
	if name != "" {
		args = append(args, name)
	}
	var n int
	return c.admin(&n, "GAMECREATE", args...)
}

// SetState moves a game to a lifecycle state.
func (c *Client) SetState(id model.GameID, st model.GameState) error {
	var n int
	return c.admin(&n, "GAMESTATE", id.String(), string(st))
}

// SetSlot takes a slot into or out of the game.
func (c *Client) SetSlot(id model.GameID, slot int, in bool) error {
	v := "0"
	if in {
		v = "1"
	}
	var n int
	return c.admin(&n, "SLOTSET", id.String(), strconv.Itoa(slot), v)
}

// Join adds a player to a slot.
func (c *Client) Join(id model.GameID, slot int, user string) error {
	var n int
	return c.admin(&n, "JOIN", id.String(), strconv.Itoa(slot), user)
}

// Leave removes a player from a slot.
func (c *Client) Leave(id model.GameID, slot int, user string) error {
	var n int
	return c.admin(&n, "LEAVE", id.String(), strconv.Itoa(slot), user)
}

// SetTurnStatus records the checked turn file of a slot.
func (c *Client) SetTurnStatus(id model.GameID, slot int, st model.TurnStatus) error {
	var n int
	return c.admin(&n, "TURNSTATUS", id.String(), strconv.Itoa(slot), strconv.Itoa(int(st)))
}

// HostNow requests a host run. Only manual schedules act on it.
func (c *Client) HostNow(id model.GameID) error {
	var n int
	return c.admin(&n, "HOSTNOW", id.String())
}

// Unbreak clears the game's broken mark.
func (c *Client) Unbreak(id model.GameID) error {
	var n int
	return c.admin(&n, "UNBREAK", id.String())
}

// AddSchedule appends sch to the game's schedule list and returns the id
// the daemon assigned.
func (c *Client) AddSchedule(id model.GameID, sch schedule.Schedule) (int64, error) {
	h := sch.ToHash()
	fields := make([]string, 0, len(h))
	for f := range h {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	args := []string{id.String()}
	for _, f := range fields {
		args = append(args, f, h[f])
	}
	var sid int64
	err := c.admin(&sid, "SCHEDULEADD", args...)
	return sid, err
}

// DropSchedule removes the current schedule and reports whether there was
// one.
func (c *Client) DropSchedule(id model.GameID) (bool, error) {
	var n int
	err := c.admin(&n, "SCHEDULEDROP", id.String())
	return n == 1, err
}

func (c *Client) admin(rcv interface{}, cmd string, args ...string) error {
	err := c.conn.Do(radix.Cmd(rcv, cmd, args...))
	if err != nil && strings.HasPrefix(err.Error(), lockedPrefix) {
		return lockedError(strings.TrimSpace(strings.TrimPrefix(err.Error(), lockedPrefix)))
	}
	return err
}

// lockedError is a LOCKED reply; it matches arbiter.ErrLocked.
type lockedError string

func (e lockedError) Error() string { return string(e) }

func (e lockedError) Is(target error) bool { return target == arbiter.ErrLocked }

func eventFromMap(m map[string]string) (model.Event, error) {
	var ev model.Event
	id, err := model.ParseGameID(m["game"])
	if err != nil {
		return ev, fmt.Errorf("bad reply: %w", err)
	}
	action, err := model.ParseAction(m["action"])
	if err != nil {
		return ev, fmt.Errorf("bad reply: %w", err)
	}
	t, err := strconv.ParseInt(m["time"], 10, 64)
	if err != nil {
		return ev, fmt.Errorf("bad reply: time %q", m["time"])
	}
	return model.Event{GameID: id, Action: action, Time: clock.Time(t)}, nil
}
