package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Audio container extensions recognized by the walker.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".aac":  true,
	".wma":  true,
	".wav":  true,
}

// IsAudioExt checks if a file extension is for an audio container.
func IsAudioExt(ext string) bool {
	return audioExtensions[strings.ToLower(ext)]
}

// Walker traverses a source tree and discovers candidate audio containers.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a new walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{logger: logger}
}

// WalkResult represents a file discovered during walking.
type WalkResult struct {
	Path    string
	Size    int64
	ModTime int64
}

// IncludeFunc decides whether a discovered file should be ingested.
// Typical predicates exclude files whose identity hash is already known.
type IncludeFunc func(WalkResult) bool

// Walk traverses a source root and streams discovered audio files, filtered
// by the include predicate. The returned channel closes when the walk
// completes or the context is canceled.
//
// The walk fails softly: an unreadable root, a non-directory root, or a
// permission error mid-tree produces a logged diagnostic and an empty (or
// truncated) stream rather than an error.
func (w *Walker) Walk(ctx context.Context, root string, isIncluded IncludeFunc) <-chan WalkResult {
	results := make(chan WalkResult, 64)

	go func() {
		defer close(results)

		info, err := os.Stat(root)
		if err != nil {
			w.logger.Warn("source root not accessible, skipping", "root", root, "error", err)
			return
		}
		if !info.IsDir() {
			w.logger.Warn("source root is not a directory, skipping", "root", root)
			return
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				w.logger.Warn("walk error, continuing", "path", path, "error", err)
				return nil
			}

			// Skip hidden files and directories.
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			if !IsAudioExt(filepath.Ext(path)) {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				w.logger.Warn("failed to stat file, skipping", "path", path, "error", err)
				return nil
			}

			result := WalkResult{
				Path:    path,
				Size:    fi.Size(),
				ModTime: fi.ModTime().UnixMilli(),
			}

			if isIncluded != nil && !isIncluded(result) {
				return nil
			}

			select {
			case results <- result:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("walk aborted", "root", root, "error", err)
		}
	}()

	return results
}
