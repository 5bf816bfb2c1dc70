package store

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// newTestRedis connects to the server named by HOSTCRON_TEST_REDIS, or
// skips the test when it is unset.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("HOSTCRON_TEST_REDIS")
	if addr == "" {
		t.Skip("HOSTCRON_TEST_REDIS not set")
	}
	r, err := NewRedis(addr, 2)
	if err != nil {
		t.Fatalf("NewRedis(%q): %v", addr, err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisImplementsStore(t *testing.T) {
	r := newTestRedis(t)
	prefix := fmt.Sprintf("hostcron-test:%d:", time.Now().UnixNano())
	runStoreContract(t, r, prefix)
}
