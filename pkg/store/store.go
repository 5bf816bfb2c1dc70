// Package store manages persistence of the host service's game state.
//
// The state is a Redis-style key space (hashes, sets, lists). The embedded
// backend stores it in SQLite in WAL mode so the scheduler daemon and the
// CLI can share one database file; the Redis backend in redis.go talks to
// an external server.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite implements Store on top of an SQLite database.
type SQLite struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*SQLite, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error { return s.db.Close() }

func retryOnContention(fn func() error) error { return sqliteRetry.run(fn) }

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hashes (
		key   TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (key, field)
	);

	CREATE TABLE IF NOT EXISTS sets (
		key    TEXT NOT NULL,
		member TEXT NOT NULL,
		PRIMARY KEY (key, member)
	);

	CREATE TABLE IF NOT EXISTS lists (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		key   TEXT NOT NULL,
		value TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lists_key ON lists(key, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Hashes
// ---------------------------------------------------------------------------

// HashGet returns a field's value and whether it exists.
func (s *SQLite) HashGet(key, field string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM hashes WHERE key = ? AND field = ?`, key, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return v, true, nil
}

// HashGetAll returns all fields of a hash.
func (s *SQLite) HashGetAll(key string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT field, value FROM hashes WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, err
		}
		result[f] = v
	}
	return result, rows.Err()
}

// HashSet creates or overwrites a field.
func (s *SQLite) HashSet(key, field, value string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
			 ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`,
			key, field, value,
		)
		return err
	})
}

// HashIncrement adds delta to an integer field inside a transaction so
// concurrent increments from the CLI and the daemon do not get lost.
func (s *SQLite) HashIncrement(key, field string, delta int64) (int64, error) {
	var result int64
	err := retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		var cur string
		err = tx.QueryRow(`SELECT value FROM hashes WHERE key = ? AND field = ?`, key, field).Scan(&cur)
		var n int64
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			n, err = strconv.ParseInt(cur, 10, 64)
			if err != nil {
				return fmt.Errorf("hincrby %s %s: value %q is not an integer", key, field, cur)
			}
		}
		n += delta
		if _, err := tx.Exec(
			`INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
			 ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`,
			key, field, strconv.FormatInt(n, 10),
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = n
		return nil
	})
	return result, err
}

// HashDelete removes a field.
func (s *SQLite) HashDelete(key, field string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM hashes WHERE key = ? AND field = ?`, key, field)
		return err
	})
}

// ---------------------------------------------------------------------------
// Sets
// ---------------------------------------------------------------------------

// SetAdd adds a member to a set.
func (s *SQLite) SetAdd(key, member string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`INSERT OR IGNORE INTO sets (key, member) VALUES (?, ?)`, key, member)
		return err
	})
}

// SetRemove removes a member from a set.
func (s *SQLite) SetRemove(key, member string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM sets WHERE key = ? AND member = ?`, key, member)
		return err
	})
}

// SetContains reports whether member is in the set.
func (s *SQLite) SetContains(key, member string) (bool, error) {
	var n int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sets WHERE key = ? AND member = ?`, key, member,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("sismember %s: %w", key, err)
	}
	return n > 0, nil
}

// SetMembers returns all members, sorted for stable output.
func (s *SQLite) SetMembers(key string) ([]string, error) {
	rows, err := s.db.Query(`SELECT member FROM sets WHERE key = ? ORDER BY member`, key)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

// ListPush appends a value. The autoincrement row ID keeps insertion order.
func (s *SQLite) ListPush(key, value string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`INSERT INTO lists (key, value) VALUES (?, ?)`, key, value)
		return err
	})
}

// ListPopFront removes and returns the oldest element. The select and
// delete run in one transaction so two poppers never get the same element.
func (s *SQLite) ListPopFront(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		var id int64
		err = tx.QueryRow(
			`SELECT id, value FROM lists WHERE key = ? ORDER BY id ASC LIMIT 1`, key,
		).Scan(&id, &value)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM lists WHERE id = ?`, id); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("lpop %s: %w", key, err)
	}
	return value, found, nil
}

// ListRange returns the whole list, oldest first.
func (s *SQLite) ListRange(key string) ([]string, error) {
	rows, err := s.db.Query(`SELECT value FROM lists WHERE key = ? ORDER BY id ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// Delete removes a key from every table.
func (s *SQLite) Delete(key string) error {
	return retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		for _, q := range []string{
			`DELETE FROM hashes WHERE key = ?`,
			`DELETE FROM sets WHERE key = ?`,
			`DELETE FROM lists WHERE key = ?`,
		} {
			if _, err := tx.Exec(q, key); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func scanStrings(rows *sql.Rows) ([]string, error) {
	var result []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
