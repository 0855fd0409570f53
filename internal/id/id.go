// Package id generates prefixed unique identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity prefixes used across the engine.
const (
	PrefixSource   = "src"
	PrefixBook     = "bok"
	PrefixChapter  = "chp"
	PrefixProgress = "bpr"
	PrefixShelf    = "shf"
	PrefixTag      = "tag"
	PrefixBookmark = "bmk"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "bok-V1StGXR8_Z5jdHi6B-myT").
//
// NanoIDs are URL-friendly, compact, and use a larger alphabet than UUIDs
// for better entropy per character.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Use only when system entropy is known to be available, or when failure
// should crash the program.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
