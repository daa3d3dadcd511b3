// Package session keeps per-session scratch state for grid components, such
// as the last read parameters a later request replays.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when nothing is stored under a key.
var ErrNotFound = errors.New("session value not found")

// Store holds opaque values scoped to (component, session, key).
type Store interface {
	Get(ctx context.Context, component, session, key string) ([]byte, error)
	Set(ctx context.Context, component, session, key string, value []byte) error
	Delete(ctx context.Context, component, session, key string) error
	Close() error
}

// MaxIDLength bounds client-supplied session ids.
const MaxIDLength = 128

// ErrInvalidID is returned by ValidateID for ids that cannot be used as a
// key segment.
var ErrInvalidID = errors.New("invalid session id")

// ValidateID checks a client-supplied session id. Ids must be non-empty,
// at most MaxIDLength bytes and free of ':' and control characters, so that
// Key stays unambiguous.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case len(id) > MaxIDLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidID, MaxIDLength)
	case strings.ContainsFunc(id, func(r rune) bool { return r == ':' || r < 0x20 || r == 0x7f }):
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Key flattens a scoped key into the form both stores index by.
func Key(component, session, key string) string {
	return component + ":" + session + ":" + key
}

// LoadJSON decodes the value under key into v. It returns ErrNotFound when
// nothing has been stored yet.
func LoadJSON(ctx context.Context, s Store, component, session, key string, v any) error {
	data, err := s.Get(ctx, component, session, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode session %s: %w", Key(component, session, key), err)
	}
	return nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, component, session, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", Key(component, session, key), err)
	}
	return s.Set(ctx, component, session, key, data)
}
