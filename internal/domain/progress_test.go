package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoChapterBook() (*Book, []Chapter) {
	book := &Book{
		ID:         "bok-1",
		Title:      "The Name of the Wind",
		Author:     "Patrick Rothfuss",
		DurationMs: 1200000,
		Hash:       "abc123",
		IsActive:   true,
	}
	chapters := []Chapter{
		{ID: "chp-1", TrackID: 1, Title: "Chapter 1", StartMs: 0, EndMs: 600000, DurationMs: 1200000},
		{ID: "chp-2", TrackID: 2, Title: "Chapter 2", StartMs: 600000, EndMs: 1200000, DurationMs: 1200000},
	}
	return book, chapters
}

func TestNewBookProgress(t *testing.T) {
	book, chapters := twoChapterBook()
	now := time.Now()

	p := NewBookProgress("bpr-1", book, chapters, now)

	assert.Equal(t, "bok-1", p.BookID)
	assert.Equal(t, "chp-1", p.ChapterID)
	assert.Equal(t, 2, p.TotalChapters)
	assert.Equal(t, 1, p.CurrentChapter)
	assert.Zero(t, p.BookProgressMs)
	assert.Equal(t, int64(1200000), p.BookRemainingMs)
	assert.Equal(t, CategoryNotStarted, p.Category)
	assert.True(t, p.IsVisible)
}

func TestApplyAccountingInvariant(t *testing.T) {
	book, chapters := twoChapterBook()
	p := NewBookProgress("bpr-1", book, chapters, time.Now())

	positions := []int64{0, 1, 599999, 600000, 1199999, 1200000}
	for _, pos := range positions {
		p.Apply(pos, book.DurationMs, chapters, time.Now())
		assert.Equal(t, book.DurationMs, p.BookProgressMs+p.BookRemainingMs,
			"invariant violated at position %d", pos)
	}
}

func TestApplyClampsOutOfRangePositions(t *testing.T) {
	book, chapters := twoChapterBook()
	p := NewBookProgress("bpr-1", book, chapters, time.Now())

	p.Apply(-500, book.DurationMs, chapters, time.Now())
	assert.Zero(t, p.BookProgressMs)
	assert.Equal(t, CategoryNotStarted, p.Category)

	p.Apply(book.DurationMs+99999, book.DurationMs, chapters, time.Now())
	assert.Equal(t, book.DurationMs, p.BookProgressMs)
	assert.Zero(t, p.BookRemainingMs)
	assert.Equal(t, CategoryFinished, p.Category)
}

func TestApplyResolvesChapter(t *testing.T) {
	book, chapters := twoChapterBook()
	p := NewBookProgress("bpr-1", book, chapters, time.Now())

	p.Apply(700000, book.DurationMs, chapters, time.Now())

	assert.Equal(t, "chp-2", p.ChapterID)
	assert.Equal(t, 2, p.CurrentChapter)
	assert.Equal(t, int64(100000), p.ChapterProgressMs)
	assert.Equal(t, CategoryInProgress, p.Category)
}

func TestApplyRefreshesLastUpdatedAt(t *testing.T) {
	book, chapters := twoChapterBook()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	p := NewBookProgress("bpr-1", book, chapters, t0)
	p.Apply(1000, book.DurationMs, chapters, t1)

	assert.Equal(t, t1, p.LastUpdatedAt)
}

func TestDeriveCategory(t *testing.T) {
	tests := []struct {
		name        string
		progressMs  int64
		remainingMs int64
		want        Category
	}{
		{"nothing elapsed", 0, 1200000, CategoryNotStarted},
		{"zero duration book", 0, 0, CategoryNotStarted},
		{"midway", 600000, 600000, CategoryInProgress},
		{"one ms in", 1, 1199999, CategoryInProgress},
		{"complete", 1200000, 0, CategoryFinished},
		{"overshoot remaining", 1200001, -1, CategoryFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCategory(tt.progressMs, tt.remainingMs))
		})
	}
}

func TestResumable(t *testing.T) {
	p := &BookProgress{BookProgressMs: 0, BookRemainingMs: 1000}
	assert.False(t, p.Resumable(), "never started")

	p = &BookProgress{BookProgressMs: 1000, BookRemainingMs: 0}
	assert.False(t, p.Resumable(), "finished")

	p = &BookProgress{BookProgressMs: 500, BookRemainingMs: 500}
	assert.True(t, p.Resumable())
}

func TestSnapshot(t *testing.T) {
	now := time.Now()
	p := &BookProgress{
		ID:                "bpr-1",
		BookID:            "bok-1",
		ChapterID:         "chp-2",
		TotalChapters:     2,
		CurrentChapter:    2,
		ChapterProgressMs: 100000,
		BookProgressMs:    700000,
		BookRemainingMs:   500000,
	}

	snap := p.Snapshot("abc123", now)

	require.NotNil(t, snap)
	assert.Equal(t, "abc123", snap.BookHash)
	assert.Equal(t, "bok-1", snap.BookID)
	assert.Equal(t, int64(700000), snap.BookProgressMs)
	assert.Equal(t, int64(500000), snap.BookRemainingMs)
	assert.Equal(t, now, snap.ArchivedAt)
}
