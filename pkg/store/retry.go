package store

import (
	"math/rand"
	"strings"
	"time"
)

// retryPolicy decides which errors are worth another attempt and how long
// to wait between attempts.
type retryPolicy struct {
	attempts  int // total tries, including the first
	baseDelay time.Duration
	maxDelay  time.Duration
	transient func(error) bool
}

// sqliteRetry covers write contention between the daemon and the CLI on a
// shared WAL database. busy_timeout absorbs most of it; SQLITE_LOCKED and
// IOERR_SHORT_READ (522) still surface and clear up on retry.
var sqliteRetry = retryPolicy{
	attempts:  5,
	baseDelay: 25 * time.Millisecond,
	maxDelay:  400 * time.Millisecond,
	transient: isSQLiteContention,
}

// redisRetry covers replies for commands the server refused without
// executing them, so a retry never applies a write twice.
var redisRetry = retryPolicy{
	attempts:  4,
	baseDelay: 100 * time.Millisecond,
	maxDelay:  time.Second,
	transient: isRedisUnavailable,
}

var sqliteContention = []string{
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"IOERR_SHORT_READ",
	"database is locked",
	"database table is locked",
	"(5)",
	"(6)",
	"(522)",
}

func isSQLiteContention(err error) bool {
	return err != nil && containsAny(err.Error(), sqliteContention)
}

// Reply prefixes of commands Redis rejected before running them.
var redisUnavailable = []string{"LOADING", "TRYAGAIN", "MASTERDOWN", "CLUSTERDOWN"}

func isRedisUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range redisUnavailable {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// run calls fn until it succeeds, fails permanently or runs out of
// attempts, and returns fn's last error.
func (p retryPolicy) run(fn func() error) error {
	err := fn()
	for attempt := 1; attempt < p.attempts && p.transient(err); attempt++ {
		time.Sleep(p.delay(attempt - 1))
		err = fn()
	}
	return err
}

// delay is baseDelay doubled per attempt, capped at maxDelay, plus up to
// one baseDelay of jitter.
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.baseDelay << uint(attempt)
	if d > p.maxDelay || d <= 0 {
		d = p.maxDelay
	}
	return d + time.Duration(rand.Int63n(int64(p.baseDelay)))
}
