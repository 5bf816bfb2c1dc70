package store

import (
	"fmt"
	"strings"

	"github.com/mediocregopher/radix/v3"
)

// Redis implements Store on a Redis server through a radix connection
// pool. The host service's other components use the same key space, so
// this backend lets the scheduler run against the live database.
type Redis struct {
	pool *radix.Pool
}

// NewRedis connects a pool of size connections to addr.
func NewRedis(addr string, size int) (*Redis, error) {
	if size <= 0 {
		size = 4
	}
	pool, err := radix.NewPool("tcp", addr, size)
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &Redis{pool: pool}, nil
}

// Close closes all pooled connections.
func (r *Redis) Close() error { return r.pool.Close() }

func (r *Redis) do(a radix.Action) error {
	err := redisRetry.run(func() error { return r.pool.Do(a) })
	if err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return fmt.Errorf("%w: %v", ErrWrongType, err)
	}
	return err
}

// HashGet returns a field's value and whether it exists.
func (r *Redis) HashGet(key, field string) (string, bool, error) {
	var v string
	mn := radix.MaybeNil{Rcv: &v}
	if err := r.do(radix.Cmd(&mn, "HGET", key, field)); err != nil {
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return v, !mn.Nil, nil
}

// HashGetAll returns all fields of a hash.
func (r *Redis) HashGetAll(key string) (map[string]string, error) {
	result := make(map[string]string)
	if err := r.do(radix.Cmd(&result, "HGETALL", key)); err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return result, nil
}

// HashSet creates or overwrites a field.
func (r *Redis) HashSet(key, field, value string) error {
	return r.do(radix.Cmd(nil, "HSET", key, field, value))
}

// HashIncrement maps to HINCRBY.
func (r *Redis) HashIncrement(key, field string, delta int64) (int64, error) {
	var n int64
	if err := r.do(radix.FlatCmd(&n, "HINCRBY", key, field, delta)); err != nil {
		return 0, fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return n, nil
}

// HashDelete removes a field.
func (r *Redis) HashDelete(key, field string) error {
	return r.do(radix.Cmd(nil, "HDEL", key, field))
}

// SetAdd adds a member to a set.
func (r *Redis) SetAdd(key, member string) error {
	return r.do(radix.Cmd(nil, "SADD", key, member))
}

// SetRemove removes a member from a set.
func (r *Redis) SetRemove(key, member string) error {
	return r.do(radix.Cmd(nil, "SREM", key, member))
}

// SetContains reports whether member is in the set.
func (r *Redis) SetContains(key, member string) (bool, error) {
	var n int
	if err := r.do(radix.Cmd(&n, "SISMEMBER", key, member)); err != nil {
		return false, fmt.Errorf("sismember %s: %w", key, err)
	}
	return n != 0, nil
}

// SetMembers returns all members.
func (r *Redis) SetMembers(key string) ([]string, error) {
	var result []string
	if err := r.do(radix.Cmd(&result, "SMEMBERS", key)); err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return result, nil
}

// ListPush appends a value (RPUSH).
func (r *Redis) ListPush(key, value string) error {
	return r.do(radix.Cmd(nil, "RPUSH", key, value))
}

// ListPopFront removes and returns the head (LPOP).
func (r *Redis) ListPopFront(key string) (string, bool, error) {
	var v string
	mn := radix.MaybeNil{Rcv: &v}
	if err := r.do(radix.Cmd(&mn, "LPOP", key)); err != nil {
		return "", false, fmt.Errorf("lpop %s: %w", key, err)
	}
	return v, !mn.Nil, nil
}

// ListRange returns the whole list.
func (r *Redis) ListRange(key string) ([]string, error) {
	var result []string
	if err := r.do(radix.Cmd(&result, "LRANGE", key, "0", "-1")); err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return result, nil
}

// Delete removes a key.
func (r *Redis) Delete(key string) error {
	return r.do(radix.Cmd(nil, "DEL", key))
}
