package domain

import "time"

// Category is the playback state of a book, always derived from the
// progress duration fields and never set directly by callers.
type Category string

// Playback categories.
const (
	CategoryNotStarted Category = "NOT_STARTED"
	CategoryInProgress Category = "IN_PROGRESS"
	CategoryFinished   Category = "FINISHED"
)

// BookProgress is the live playback-state record for a book. Exactly one
// row exists per book with playable content.
//
// Invariant: BookProgressMs + BookRemainingMs == book duration.
type BookProgress struct {
	ID                string    `json:"id"`
	BookID            string    `json:"book_id"`
	ChapterID         string    `json:"chapter_id"`
	TotalChapters     int       `json:"total_chapters"`
	CurrentChapter    int       `json:"current_chapter"` // 1-based index into the ordered chapter list
	ChapterProgressMs int64     `json:"chapter_progress_ms"`
	BookProgressMs    int64     `json:"book_progress_ms"`
	BookRemainingMs   int64     `json:"book_remaining_ms"`
	Category          Category  `json:"category"`
	IsVisible         bool      `json:"is_visible"`
	LastUpdatedAt     time.Time `json:"last_updated_at"`
}

// ProgressSnapshot is an archived copy of a BookProgress, retained when a
// resumable book is deleted so its position survives a reappearance.
type ProgressSnapshot struct {
	BookHash          string    `json:"book_hash"`
	BookID            string    `json:"book_id"`
	ChapterID         string    `json:"chapter_id"`
	TotalChapters     int       `json:"total_chapters"`
	CurrentChapter    int       `json:"current_chapter"`
	ChapterProgressMs int64     `json:"chapter_progress_ms"`
	BookProgressMs    int64     `json:"book_progress_ms"`
	BookRemainingMs   int64     `json:"book_remaining_ms"`
	ArchivedAt        time.Time `json:"archived_at"`
}

// NewBookProgress seeds the initial progress row for a freshly ingested
// book: positioned at the first chapter, nothing elapsed, NOT_STARTED.
// Chapters must already be in track order.
func NewBookProgress(id string, book *Book, chapters []Chapter, now time.Time) *BookProgress {
	p := &BookProgress{
		ID:              id,
		BookID:          book.ID,
		TotalChapters:   len(chapters),
		CurrentChapter:  1,
		BookRemainingMs: book.DurationMs,
		Category:        CategoryNotStarted,
		IsVisible:       true,
		LastUpdatedAt:   now,
	}
	if len(chapters) > 0 {
		p.ChapterID = chapters[0].ID
	}
	return p
}

// Apply recomputes the progress record from an absolute playback position.
// The position is clamped to [0, duration]; the category, remaining
// duration, and resolved chapter are all derived, keeping the accounting
// invariant intact for any input.
func (p *BookProgress) Apply(positionMs, durationMs int64, chapters []Chapter, now time.Time) {
	if positionMs < 0 {
		positionMs = 0
	}
	if positionMs > durationMs {
		positionMs = durationMs
	}

	p.BookProgressMs = positionMs
	p.BookRemainingMs = durationMs - positionMs
	p.Category = DeriveCategory(p.BookProgressMs, p.BookRemainingMs)
	p.LastUpdatedAt = now

	if idx := chapterAt(chapters, positionMs); idx >= 0 {
		p.ChapterID = chapters[idx].ID
		p.CurrentChapter = idx + 1
		p.ChapterProgressMs = positionMs - chapters[idx].StartMs
		if p.ChapterProgressMs < 0 {
			p.ChapterProgressMs = 0
		}
	}
}

// DeriveCategory maps the progress duration fields to a category:
// nothing elapsed is NOT_STARTED, nothing remaining is FINISHED,
// everything else is IN_PROGRESS.
func DeriveCategory(progressMs, remainingMs int64) Category {
	switch {
	case progressMs == 0:
		return CategoryNotStarted
	case remainingMs <= 0:
		return CategoryFinished
	default:
		return CategoryInProgress
	}
}

// Resumable reports whether the progress is worth archiving on deletion:
// some listening happened and some remains.
func (p *BookProgress) Resumable() bool {
	return p.BookProgressMs > 0 && p.BookRemainingMs > 0
}

// Snapshot produces the archival copy of this progress record.
func (p *BookProgress) Snapshot(bookHash string, now time.Time) *ProgressSnapshot {
	return &ProgressSnapshot{
		BookHash:          bookHash,
		BookID:            p.BookID,
		ChapterID:         p.ChapterID,
		TotalChapters:     p.TotalChapters,
		CurrentChapter:    p.CurrentChapter,
		ChapterProgressMs: p.ChapterProgressMs,
		BookProgressMs:    p.BookProgressMs,
		BookRemainingMs:   p.BookRemainingMs,
		ArchivedAt:        now,
	}
}

// chapterAt returns the index of the chapter containing the position, or
// the last chapter when the position sits at or past the end of the book.
// Returns -1 for an empty chapter list.
func chapterAt(chapters []Chapter, positionMs int64) int {
	if len(chapters) == 0 {
		return -1
	}
	for i := range chapters {
		if positionMs >= chapters[i].StartMs && positionMs < chapters[i].EndMs {
			return i
		}
	}
	return len(chapters) - 1
}
