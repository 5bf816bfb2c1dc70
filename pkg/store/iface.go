// iface.go defines the Store interface for dependency injection and testing.
//
// The host service keeps its game state in a Redis-style key space: hashes
// of fields, unordered sets and FIFO lists, addressed by string keys. Two
// backends implement it: *SQLite (embedded, the default) and *Redis (an
// external server shared with other host components). Code that reads or
// writes game state accepts Store, so tests can substitute a failing or
// recording decorator.
package store

import "errors"

// ErrWrongType is returned when a key holds a different kind of value than
// the operation expects. Only the Redis backend can detect this.
var ErrWrongType = errors.New("store: wrong value type for key")

// ErrMalformed is wrapped by decoders that find a stored value they cannot
// parse. Such a value is confined to the record it was read from.
var ErrMalformed = errors.New("store: malformed value")

// Store is the key/value surface the scheduler and game model consume.
// Missing keys behave like empty hashes, sets and lists.
type Store interface {
	// Close releases the backend connection.
	Close() error

	// --- Hashes ---

	// HashGet returns a field's value and whether the field exists.
	HashGet(key, field string) (string, bool, error)

	// HashGetAll returns all fields of a hash.
	HashGetAll(key string) (map[string]string, error)

	// HashSet creates or overwrites a field.
	HashSet(key, field, value string) error

	// HashIncrement adds delta to an integer field (missing counts as 0)
	// and returns the new value.
	HashIncrement(key, field string, delta int64) (int64, error)

	// HashDelete removes a field. Removing a missing field is not an error.
	HashDelete(key, field string) error

	// --- Sets ---

	// SetAdd adds a member. Adding an existing member is a no-op.
	SetAdd(key, member string) error

	// SetRemove removes a member. Removing a missing member is a no-op.
	SetRemove(key, member string) error

	// SetContains reports membership.
	SetContains(key, member string) (bool, error)

	// SetMembers returns all members in unspecified order.
	SetMembers(key string) ([]string, error)

	// --- Lists ---

	// ListPush appends a value at the tail.
	ListPush(key, value string) error

	// ListPopFront removes and returns the head, reporting false if the
	// list is empty.
	ListPopFront(key string) (string, bool, error)

	// ListRange returns the whole list, head first.
	ListRange(key string) ([]string, error)

	// --- Keys ---

	// Delete removes a key of any kind.
	Delete(key string) error
}

// Compile-time checks that the backends implement Store.
var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Redis)(nil)
)
