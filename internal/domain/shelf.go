package domain

import "time"

// Shelf is a user-defined grouping of books.
type Shelf struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag is a free-form label attached to books.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bookmark marks a position within a book.
type Bookmark struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	ChapterID  string    `json:"chapter_id,omitempty"`
	PositionMs int64     `json:"position_ms"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BookConfig is an opaque per-book settings record keyed by book ID.
type BookConfig struct {
	BookID   string            `json:"book_id"`
	Settings map[string]string `json:"settings"`
}
