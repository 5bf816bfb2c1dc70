package server

import (
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mediocregopher/radix/v3"

	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/host"
	"github.com/pcc2/hostcron/pkg/model"
	"github.com/pcc2/hostcron/pkg/store"
)

// fakeCron returns canned events and records kicks.
type fakeCron struct {
	mu     sync.Mutex
	events []model.Event
	kicked []model.GameID
}

func (f *fakeCron) GetGameEvent(id model.GameID) model.Event {
	for _, ev := range f.events {
		if ev.GameID == id {
			return ev
		}
	}
	return model.Event{GameID: id, Action: model.ActionNone}
}

func (f *fakeCron) ListGameEvents() []model.Event { return f.events }

func (f *fakeCron) HandleGameChange(id model.GameID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, id)
}

func (f *fakeCron) kicks() []model.GameID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.GameID(nil), f.kicked...)
}

func startServer(t *testing.T, fc *fakeCron) (string, *host.Root) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	root := host.NewRoot(s, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(root, fc)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String(), root
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCronGet(t *testing.T) {
	fc := &fakeCron{events: []model.Event{
		{GameID: 4, Action: model.ActionHost, Time: 0},
		{GameID: 9, Action: model.ActionMaster, Time: 28400000},
	}}
	addr, _ := startServer(t, fc)
	c := dial(t, addr)

	ev, err := c.Get(9)
	if err != nil {
		t.Fatal(err)
	}
	if ev != fc.events[1] {
		t.Fatalf("Get(9) = %+v", ev)
	}
	ev, err = c.Get(5)
	if err != nil || ev.Action != model.ActionNone || ev.GameID != 5 {
		t.Fatalf("Get(5) = %+v, %v", ev, err)
	}
}

func TestCronList(t *testing.T) {
	fc := &fakeCron{events: []model.Event{
		{GameID: 4, Action: model.ActionHost, Time: 0},
		{GameID: 9, Action: model.ActionMaster, Time: 100},
		{GameID: 2, Action: model.ActionScheduleChange, Time: 200},
	}}
	addr, _ := startServer(t, fc)
	c := dial(t, addr)

	all, err := c.List(-1)
	if err != nil || len(all) != 3 || all[2] != fc.events[2] {
		t.Fatalf("List(all) = %+v, %v", all, err)
	}
	two, err := c.List(2)
	if err != nil || len(two) != 2 || two[1].GameID != 9 {
		t.Fatalf("List(2) = %+v, %v", two, err)
	}
}

func TestCronKick(t *testing.T) {
	fc := &fakeCron{}
	addr, root := startServer(t, fc)
	if _, err := game.Create(root.Store(), 7, ""); err != nil {
		t.Fatal(err)
	}
	c := dial(t, addr)

	if ok, err := c.Kick(7); err != nil || !ok {
		t.Fatalf("Kick(7) = %v, %v", ok, err)
	}
	if ok, err := c.Kick(8); err != nil || ok {
		t.Fatalf("Kick(8) = %v, %v; want false for unknown game", ok, err)
	}
	if kicked := fc.kicks(); len(kicked) != 1 || kicked[0] != 7 {
		t.Fatalf("kicked = %v", kicked)
	}
}

func TestErrors(t *testing.T) {
	addr, _ := startServer(t, &fakeCron{})
	conn, err := radix.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	cases := []struct {
		cmd  string
		args []string
		want string
	}{
		{"FLUSHALL", nil, "unknown command"},
		{"CRONGET", []string{"x"}, "invalid game id"},
		{"CRONGET", nil, "wrong number"},
		{"CRONLIST", []string{"TOP", "3"}, "syntax error"},
		{"CRONLIST", []string{"LIMIT", "-1"}, "invalid limit"},
	}
	for _, tc := range cases {
		var rcv interface{}
		err := conn.Do(radix.Cmd(&rcv, tc.cmd, tc.args...))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s %v: err = %v, want %q", tc.cmd, tc.args, err, tc.want)
		}
	}

	var pong string
	if err := conn.Do(radix.Cmd(&pong, "PING")); err != nil || pong != "PONG" {
		t.Fatalf("PING after errors = %q, %v", pong, err)
	}
}

func TestClose_StopsServe(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "close.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	srv := New(host.NewRoot(s, nil, nil), &fakeCron{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	c := dial(t, ln.Addr().String())
	if err := c.Ping(); err != nil {
		t.Fatal(err)
	}
	if err := srv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve after Close = %v", err)
	}
}
