// Package server exposes the scheduler over a Redis-protocol (RESP)
// command connection.
//
// Commands:
//
//	CRONGET <game>          event of one game
//	CRONLIST [LIMIT <n>]    all scheduled events, due ones first
//	CRONKICK <game>         recompute one game; replies 1 if it exists
//	PING                    PONG
//	HELP                    command list
//
// plus the administrative commands in admin.go.
//
// An event is replied as a flat array of field/value bulk strings
// ("action", "time", "game"), which Redis clients read as a map.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/mediocregopher/radix/v3/resp"
	"github.com/mediocregopher/radix/v3/resp/resp2"

	"github.com/pcc2/hostcron/pkg/cron"
	"github.com/pcc2/hostcron/pkg/game"
	"github.com/pcc2/hostcron/pkg/host"
	"github.com/pcc2/hostcron/pkg/model"
)

// Server answers scheduler commands.
type Server struct {
	root *host.Root
	cron cron.Cron
	log  *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a server for the given scheduler.
func New(root *host.Root, c cron.Cron) *Server {
	return &Server{
		root:  root,
		cron:  c,
		log:   root.Logger().With("component", "server"),
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case <-ctx.Done():
		return s.Close()
	case err := <-errCh:
		return err
	}
}

// Serve accepts connections on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.log.Info("listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting, closes open connections and waits for their
// handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	for {
		var args []string
		if err := (resp2.Any{I: &args}).UnmarshalRESP(br); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("connection closed", "remote", conn.RemoteAddr().String(), "err", err)
			}
			return
		}
		if err := s.dispatch(args).MarshalRESP(bw); err != nil {
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
	}
}

func errReply(format string, a ...any) resp.Marshaler {
	return resp2.Error{E: fmt.Errorf("ERR "+format, a...)}
}

func (s *Server) dispatch(args []string) resp.Marshaler {
	if len(args) == 0 {
		return errReply("empty command")
	}
	switch cmd := strings.ToUpper(args[0]); cmd {
	case "PING":
		return resp2.SimpleString{S: "PONG"}
	case "HELP":
		help := stringArray{
			"CRONGET <game>",
			"CRONLIST [LIMIT <n>]",
			"CRONKICK <game>",
		}
		return append(append(help, adminHelp()...), "PING", "HELP")
	case "CRONGET":
		if len(args) != 2 {
			return errReply("wrong number of arguments for %s", cmd)
		}
		id, err := model.ParseGameID(args[1])
		if err != nil {
			return errReply("%v", err)
		}
		return eventReply(s.cron.GetGameEvent(id))
	case "CRONLIST":
		limit, err := parseLimit(args[1:])
		if err != nil {
			return errReply("%v", err)
		}
		evs := s.cron.ListGameEvents()
		if limit >= 0 && len(evs) > limit {
			evs = evs[:limit]
		}
		return eventList(evs)
	case "CRONKICK":
		if len(args) != 2 {
			return errReply("wrong number of arguments for %s", cmd)
		}
		id, err := model.ParseGameID(args[1])
		if err != nil {
			return errReply("%v", err)
		}
		ok, err := s.gameExists(id)
		if err != nil {
			s.log.Error("kick failed", "game", id, "err", err)
			return errReply("%v", err)
		}
		if !ok {
			return resp2.Int{I: 0}
		}
		s.cron.HandleGameChange(id)
		return resp2.Int{I: 1}
	default:
		if _, ok := adminArgs[cmd]; ok {
			return s.admin(cmd, args[1:])
		}
		return errReply("unknown command %q", args[0])
	}
}

func (s *Server) gameExists(id model.GameID) (bool, error) {
	s.root.Lock()
	defer s.root.Unlock()
	return game.Exists(s.root.Store(), id)
}

// parseLimit reads an optional "LIMIT n"; -1 means no limit.
func parseLimit(args []string) (int, error) {
	switch len(args) {
	case 0:
		return -1, nil
	case 2:
		if !strings.EqualFold(args[0], "LIMIT") {
			return 0, fmt.Errorf("syntax error near %q", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid limit %q", args[1])
		}
		return n, nil
	}
	return 0, errors.New("syntax error")
}

// --- Replies ---

type stringArray []string

func (a stringArray) MarshalRESP(w io.Writer) error {
	if err := (resp2.ArrayHeader{N: len(a)}).MarshalRESP(w); err != nil {
		return err
	}
	for _, s := range a {
		if err := (resp2.BulkString{S: s}).MarshalRESP(w); err != nil {
			return err
		}
	}
	return nil
}

func eventReply(ev model.Event) stringArray {
	return stringArray{
		"action", ev.Action.String(),
		"time", strconv.FormatInt(int64(ev.Time), 10),
		"game", ev.GameID.String(),
	}
}

type eventList []model.Event

func (l eventList) MarshalRESP(w io.Writer) error {
	if err := (resp2.ArrayHeader{N: len(l)}).MarshalRESP(w); err != nil {
		return err
	}
	for _, ev := range l {
		if err := eventReply(ev).MarshalRESP(w); err != nil {
			return err
		}
	}
	return nil
}
