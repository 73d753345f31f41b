// Package id generates opaque entity identifiers.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 encoding of a random
// version 4 UUID.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// Generator produces identifiers; use cases accept one so tests can inject
// deterministic values.
type Generator func() (string, error)

// Sequence returns a Generator yielding prefix-1, prefix-2, ... It is meant
// for tests and fixtures.
func Sequence(prefix string) Generator {
	next := 0
	return func() (string, error) {
		next++
		return fmt.Sprintf("%s-%d", prefix, next), nil
	}
}
