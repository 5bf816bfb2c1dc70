package store

import (
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.HashSet("game:1:settings", "turn", "12"); err != nil {
		t.Fatal(err)
	}
	if err := s.ListPush("game:1:schedule:list", "1"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if v, ok, _ := s2.HashGet("game:1:settings", "turn"); !ok || v != "12" {
		t.Fatalf("after reopen: turn = %q (ok=%v), want 12", v, ok)
	}
	if l, _ := s2.ListRange("game:1:schedule:list"); len(l) != 1 {
		t.Fatalf("after reopen: list = %v", l)
	}
}

func TestHashIncrement_Concurrent(t *testing.T) {
	s := newTestStore(t)
	const workers = 4
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := s.HashIncrement("counter", "n", 1); err != nil {
					t.Errorf("HashIncrement: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	n, err := GetInt(s, "counter", "n")
	if err != nil {
		t.Fatal(err)
	}
	if n != workers*perWorker {
		t.Fatalf("counter = %d, want %d", n, workers*perWorker)
	}
}

func TestHashIncrement_RejectsNonInteger(t *testing.T) {
	s := newTestStore(t)
	s.HashSet("h", "name", "Orion")
	if _, err := s.HashIncrement("h", "name", 1); err == nil {
		t.Fatal("expected error incrementing a non-integer field")
	}
}

func TestListPopFront_KeysAreIndependent(t *testing.T) {
	s := newTestStore(t)
	s.ListPush("a", "1")
	s.ListPush("b", "2")
	s.ListPush("a", "3")

	v, ok, err := s.ListPopFront("b")
	if err != nil || !ok || v != "2" {
		t.Fatalf("pop b = %q, %v, %v", v, ok, err)
	}
	if l, _ := s.ListRange("a"); len(l) != 2 || l[0] != "1" || l[1] != "3" {
		t.Fatalf("list a = %v, want [1 3]", l)
	}
}

func TestFieldHelpers(t *testing.T) {
	s := newTestStore(t)
	if n, err := GetInt(s, "k", "missing"); err != nil || n != 0 {
		t.Fatalf("GetInt(missing) = %d, %v", n, err)
	}
	if err := SetInt(s, "k", "n", -42); err != nil {
		t.Fatal(err)
	}
	if n, _ := GetInt(s, "k", "n"); n != -42 {
		t.Fatalf("GetInt = %d, want -42", n)
	}
	s.HashSet("k", "bad", "x1")
	if _, err := GetInt(s, "k", "bad"); err == nil {
		t.Fatal("GetInt should reject non-integer values")
	}
	s.HashSet("k", "name", "Pleiades")
	if v, _ := GetString(s, "k", "name"); v != "Pleiades" {
		t.Fatalf("GetString = %q", v)
	}
}
