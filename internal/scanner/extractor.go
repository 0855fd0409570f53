package scanner

import "context"

// TrackInfo describes a single track/chapter within an audio container,
// as reported by the metadata extractor.
type TrackInfo struct {
	ID         int
	Title      string
	StartMs    int64
	EndMs      int64
	DurationMs int64
	Hash       string
}

// FileMetadata is the per-file result of metadata extraction.
type FileMetadata struct {
	Title      string
	Author     string
	Album      string
	DurationMs int64
	Hash       string
	CoverRef   string
	Tracks     []TrackInfo
}

// Extractor parses an audio container and returns its metadata.
// Implementations may fail per file; the coordinator decides how a
// failure affects the rest of the scan.
type Extractor interface {
	Extract(ctx context.Context, path string) (*FileMetadata, error)
}
