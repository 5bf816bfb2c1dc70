package store

import (
	"fmt"
	"strconv"
)

// GetInt reads an integer hash field. A missing or empty field reads as 0.
func GetInt(s Store, key, field string) (int64, error) {
	v, ok, err := s.HashGet(key, field)
	if err != nil {
		return 0, err
	}
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %s.%s: %q is not an integer", ErrMalformed, key, field, v)
	}
	return n, nil
}

// SetInt writes an integer hash field.
func SetInt(s Store, key, field string, v int64) error {
	return s.HashSet(key, field, strconv.FormatInt(v, 10))
}

// GetString reads a string hash field. A missing field reads as "".
func GetString(s Store, key, field string) (string, error) {
	v, _, err := s.HashGet(key, field)
	return v, err
}
