// Package domain contains the core business entities and domain logic for the Soundleaf library engine.
package domain

import "time"

// Source represents a user-registered storage root to be scanned for audiobooks.
type Source struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
