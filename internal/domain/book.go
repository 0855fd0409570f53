package domain

import "sort"

// InactiveReason explains why a book is currently inactive.
type InactiveReason string

// Inactive reasons.
const (
	// InactiveReasonScanning marks a book whose source is mid-rescan.
	InactiveReasonScanning InactiveReason = "SCANNING"
	// InactiveReasonNotFound marks a book whose file disappeared from its source.
	InactiveReasonNotFound InactiveReason = "NOT_FOUND"
)

// Book represents an audiobook in the library.
// Hash is the deduplication key: at most one active book exists per hash.
type Book struct {
	ID             string         `json:"id"`
	URI            string         `json:"uri"`
	CoverURI       string         `json:"cover_uri,omitempty"`
	Author         string         `json:"author,omitempty"`
	Series         string         `json:"series,omitempty"`
	Title          string         `json:"title"`
	DurationMs     int64          `json:"duration_ms"`
	Hash           string         `json:"hash"`
	IsActive       bool           `json:"is_active"`
	InactiveReason InactiveReason `json:"inactive_reason,omitempty"`
}

// Chapter represents a single playable track span within a book.
// Start and End are offsets in the book timeline, in milliseconds.
type Chapter struct {
	ID         string `json:"id"`
	TrackID    int    `json:"track_id"`
	Title      string `json:"title"`
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	DurationMs int64  `json:"duration_ms"`
	URI        string `json:"uri"`
	CoverURI   string `json:"cover_uri,omitempty"`
	Hash       string `json:"hash"`
}

// Valid reports whether the chapter's bounds are playable.
// A chapter is invalid when start >= end, either bound is negative,
// or a bound falls outside [0, DurationMs].
func (c *Chapter) Valid() bool {
	if c.StartMs < 0 || c.EndMs < 0 {
		return false
	}
	if c.StartMs >= c.EndMs {
		return false
	}
	if c.DurationMs > 0 && (c.StartMs > c.DurationMs || c.EndMs > c.DurationMs) {
		return false
	}
	return true
}

// AudibleSpanMs returns the audible length of the chapter.
func (c *Chapter) AudibleSpanMs() int64 {
	return c.EndMs - c.StartMs
}

// BookAggregate is an in-flight (Book, Chapters) pair produced by ingestion
// before persistence.
type BookAggregate struct {
	Book     Book      `json:"book"`
	Chapters []Chapter `json:"chapters"`
}

// SortChapters orders the aggregate's chapters by track ID ascending,
// the canonical order used everywhere downstream.
func (a *BookAggregate) SortChapters() {
	sort.Slice(a.Chapters, func(i, j int) bool {
		return a.Chapters[i].TrackID < a.Chapters[j].TrackID
	})
}

// FirstChapter returns the chapter with the lowest track ID, or nil for a
// bookless aggregate. Callers must SortChapters first if order is unknown.
func (a *BookAggregate) FirstChapter() *Chapter {
	if len(a.Chapters) == 0 {
		return nil
	}
	return &a.Chapters[0]
}
