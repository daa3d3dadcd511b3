// Package idgen mints session identifiers and string primary keys backed by
// nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// SessionPrefix is prepended to generated grid session IDs.
var SessionPrefix = "gs-"

// RecordPrefix is prepended to generated string primary keys.
var RecordPrefix = "rec-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// Session returns a new grid session ID.
func Session() (string, error) {
	return GenerateWithPrefix(SessionPrefix)
}

// Record returns a new string primary key.
func Record() (string, error) {
	return GenerateWithPrefix(RecordPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
