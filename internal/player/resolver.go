// Package player resolves chapters into concrete playable media items.
package player

import (
	"fmt"
	"log/slog"

	"github.com/soundleaf/soundleaf-server/internal/domain"
)

// Item is the generic media item handed in by the transport layer.
// It carries the playback source without any chapter awareness.
type Item struct {
	URI      string
	CoverURI string
}

// PlayableItem is a resolved, chapter-clipped item ready for playback.
type PlayableItem struct {
	URI         string
	CoverURI    string
	ClipStartMs int64
	ClipEndMs   int64
	Title       string
	Artist      string
	TrackNumber int
	TrackCount  int
}

// Resolver maps chapter ids onto playable items.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve looks up chapterID in a book's chapter list and clips the
// generic item to that chapter's bounds. The progress record's current
// chapter is checked first since playback usually advances to an
// adjacent chapter.
//
// Returns nil when no chapter matches or the matched chapter has
// invalid bounds; an invalid chapter must never reach the transport.
func (r *Resolver) Resolve(progress *domain.BookProgress, book *domain.Book, chapters []domain.Chapter, item Item, chapterID string) *PlayableItem {
	chapter := findChapter(progress, chapters, chapterID)
	if chapter == nil {
		r.logger.Debug("chapter not found", "book_id", book.ID, "chapter_id", chapterID)
		return nil
	}
	if !chapter.Valid() {
		r.logger.Warn("refusing to play chapter with invalid bounds",
			"book_id", book.ID, "chapter_id", chapterID,
			"start_ms", chapter.StartMs, "end_ms", chapter.EndMs)
		return nil
	}

	uri := item.URI
	if uri == "" {
		uri = chapter.URI
	}
	coverURI := item.CoverURI
	if coverURI == "" {
		coverURI = book.CoverURI
	}

	return &PlayableItem{
		URI:         uri,
		CoverURI:    coverURI,
		ClipStartMs: chapter.StartMs,
		ClipEndMs:   chapter.EndMs,
		Title:       fmt.Sprintf("%s: %s", book.Title, chapter.Title),
		Artist:      book.Author,
		TrackNumber: chapter.TrackID,
		TrackCount:  len(chapters),
	}
}

// findChapter returns the chapter with the given id, trying the
// progress record's current chapter before scanning the full list.
func findChapter(progress *domain.BookProgress, chapters []domain.Chapter, chapterID string) *domain.Chapter {
	if progress != nil && progress.ChapterID == chapterID {
		idx := progress.CurrentChapter - 1
		if idx >= 0 && idx < len(chapters) && chapters[idx].ID == chapterID {
			return &chapters[idx]
		}
	}
	for i := range chapters {
		if chapters[i].ID == chapterID {
			return &chapters[i]
		}
	}
	return nil
}
