// Package id generates identifiers for books and jobs.
package id

import (
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// BookPrefix prefixes every generated book ID.
const BookPrefix = "book"

// safeID matches IDs that are usable as a single path segment. Book IDs name
// directories under the media root, so anything else is rejected.
var safeID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "book-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewBookID returns a fresh book ID.
func NewBookID() (string, error) {
	return Generate(BookPrefix)
}

// Valid reports whether id can safely name a storage directory.
func Valid(id string) bool {
	return safeID.MatchString(id)
}
