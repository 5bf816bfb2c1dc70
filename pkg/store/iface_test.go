package store

import (
	"sort"
	"testing"
)

// runStoreContract exercises every Store method against a backend. Keys are
// prefixed so the test can share a Redis server with other data.
func runStoreContract(t *testing.T, s Store, prefix string) {
	t.Helper()
	h := prefix + "hash"
	set := prefix + "set"
	list := prefix + "list"
	t.Cleanup(func() {
		for _, k := range []string{h, set, list} {
			s.Delete(k)
		}
	})

	// Hashes
	if _, ok, err := s.HashGet(h, "turn"); err != nil || ok {
		t.Fatalf("HashGet on missing field: ok=%v err=%v", ok, err)
	}
	if err := s.HashSet(h, "turn", "7"); err != nil {
		t.Fatalf("HashSet: %v", err)
	}
	if v, ok, err := s.HashGet(h, "turn"); err != nil || !ok || v != "7" {
		t.Fatalf("HashGet = %q, %v, %v; want 7", v, ok, err)
	}
	if err := s.HashSet(h, "turn", "8"); err != nil {
		t.Fatalf("HashSet overwrite: %v", err)
	}
	n, err := s.HashIncrement(h, "turn", 2)
	if err != nil || n != 10 {
		t.Fatalf("HashIncrement = %d, %v; want 10", n, err)
	}
	n, err = s.HashIncrement(h, "fresh", 1)
	if err != nil || n != 1 {
		t.Fatalf("HashIncrement on missing field = %d, %v; want 1", n, err)
	}
	all, err := s.HashGetAll(h)
	if err != nil {
		t.Fatalf("HashGetAll: %v", err)
	}
	if len(all) != 2 || all["turn"] != "10" || all["fresh"] != "1" {
		t.Fatalf("HashGetAll = %v", all)
	}
	if err := s.HashDelete(h, "fresh"); err != nil {
		t.Fatalf("HashDelete: %v", err)
	}
	if err := s.HashDelete(h, "fresh"); err != nil {
		t.Fatalf("HashDelete twice should be a no-op: %v", err)
	}
	if _, ok, _ := s.HashGet(h, "fresh"); ok {
		t.Fatal("field should be gone after HashDelete")
	}

	// Sets
	for _, m := range []string{"3", "1", "2", "1"} {
		if err := s.SetAdd(set, m); err != nil {
			t.Fatalf("SetAdd(%s): %v", m, err)
		}
	}
	members, err := s.SetMembers(set)
	if err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	sort.Strings(members)
	if len(members) != 3 || members[0] != "1" || members[2] != "3" {
		t.Fatalf("SetMembers = %v, want [1 2 3]", members)
	}
	if ok, err := s.SetContains(set, "2"); err != nil || !ok {
		t.Fatalf("SetContains(2) = %v, %v", ok, err)
	}
	if err := s.SetRemove(set, "2"); err != nil {
		t.Fatalf("SetRemove: %v", err)
	}
	if ok, _ := s.SetContains(set, "2"); ok {
		t.Fatal("member should be gone after SetRemove")
	}

	// Lists
	if _, ok, err := s.ListPopFront(list); err != nil || ok {
		t.Fatalf("ListPopFront on empty list: ok=%v err=%v", ok, err)
	}
	for _, v := range []string{"a", "b", "c"} {
		if err := s.ListPush(list, v); err != nil {
			t.Fatalf("ListPush(%s): %v", v, err)
		}
	}
	vals, err := s.ListRange(list)
	if err != nil || len(vals) != 3 || vals[0] != "a" || vals[2] != "c" {
		t.Fatalf("ListRange = %v, %v; want [a b c]", vals, err)
	}
	v, ok, err := s.ListPopFront(list)
	if err != nil || !ok || v != "a" {
		t.Fatalf("ListPopFront = %q, %v, %v; want a", v, ok, err)
	}
	vals, _ = s.ListRange(list)
	if len(vals) != 2 || vals[0] != "b" {
		t.Fatalf("ListRange after pop = %v, want [b c]", vals)
	}

	// Keys
	for _, k := range []string{h, set, list} {
		if err := s.Delete(k); err != nil {
			t.Fatalf("Delete(%s): %v", k, err)
		}
	}
	if all, _ := s.HashGetAll(h); len(all) != 0 {
		t.Fatalf("hash should be empty after Delete, got %v", all)
	}
	if m, _ := s.SetMembers(set); len(m) != 0 {
		t.Fatalf("set should be empty after Delete, got %v", m)
	}
	if l, _ := s.ListRange(list); len(l) != 0 {
		t.Fatalf("list should be empty after Delete, got %v", l)
	}
}

func TestSQLiteImplementsStore(t *testing.T) {
	runStoreContract(t, newTestStore(t), "contract:")
}
