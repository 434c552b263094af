// Package id generates prefixed, URL-safe identifiers.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the entities the catalog stores.
const (
	PrefixBook     = "book"
	PrefixUser     = "user"
	PrefixSession  = "sess"
	PrefixFavorite = "fav"
)

// Generate returns prefix-nanoid, e.g. "book-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	nid, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return nid
}

// HasPrefix reports whether s looks like an id generated with prefix.
func HasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix+"-") && len(s) > len(prefix)+1
}
