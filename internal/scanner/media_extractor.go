package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/simonhull/audiometa"

	"github.com/soundleaf/soundleaf-server/internal/hash"
)

// MediaExtractor parses audio container metadata natively.
type MediaExtractor struct{}

// parseableContainers are the formats the metadata parser handles. The
// walker admits a wider extension set; anything outside this map is a
// per-file extraction failure.
var parseableContainers = map[string]bool{
	".m4a":  true,
	".m4b":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// NewMediaExtractor creates the production metadata extractor.
func NewMediaExtractor() *MediaExtractor {
	return &MediaExtractor{}
}

// Extract parses a single audio container into file metadata. The file
// identity hash is computed first so two files with identical content
// report the same hash regardless of path.
func (e *MediaExtractor) Extract(ctx context.Context, path string) (*FileMetadata, error) {
	if !parseableContainers[strings.ToLower(filepath.Ext(path))] {
		return nil, fmt.Errorf("unsupported container format: %s", filepath.Ext(path))
	}

	fileHash, err := hash.File(path)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	f, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer f.Close()

	durationMs := f.Audio.Duration.Milliseconds()

	result := &FileMetadata{
		Title:      f.Tags.Title,
		Author:     f.Tags.Artist,
		Album:      f.Tags.Album,
		DurationMs: durationMs,
		Hash:       fileHash,
	}
	if result.Title == "" {
		result.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if f.Tags.Series != "" {
		result.Album = f.Tags.Series
	}

	result.Tracks = tracksFromChapters(f.Chapters, fileHash, durationMs)
	return result, nil
}

// tracksFromChapters converts embedded chapter markers to track info.
// A container without chapter markers becomes a single track spanning
// the whole file.
func tracksFromChapters(chapters []audiometa.Chapter, fileHash string, durationMs int64) []TrackInfo {
	if len(chapters) == 0 {
		return []TrackInfo{{
			ID:         1,
			Title:      "Chapter 1",
			StartMs:    0,
			EndMs:      durationMs,
			DurationMs: durationMs,
			Hash:       hash.Track(fileHash, 1, 0, durationMs),
		}}
	}

	tracks := make([]TrackInfo, 0, len(chapters))
	for i, ch := range chapters {
		startMs := ch.StartTime.Milliseconds()
		endMs := ch.EndTime.Milliseconds()
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		tracks = append(tracks, TrackInfo{
			ID:         i + 1,
			Title:      title,
			StartMs:    startMs,
			EndMs:      endMs,
			DurationMs: durationMs,
			Hash:       hash.Track(fileHash, i+1, startMs, endMs),
		})
	}
	return tracks
}
