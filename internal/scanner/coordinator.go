package scanner

import (
	"context"
	"log/slog"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/id"
)

// DefaultBatchSize is the number of aggregates accumulated before a flush.
const DefaultBatchSize = 4

// BatchFunc persists a batch of aggregates for a source and reports how
// many books were actually inserted. It is the sole write path out of the
// coordinator.
type BatchFunc func(ctx context.Context, sourceID string, batch []domain.BookAggregate) (int, error)

// Coordinator drives the walker and extractor over a set of sources and
// flushes assembled aggregates in fixed-size batches.
type Coordinator struct {
	walker    *Walker
	extractor Extractor
	logger    *slog.Logger
}

// NewCoordinator creates a batch ingestion coordinator.
func NewCoordinator(walker *Walker, extractor Extractor, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		walker:    walker,
		extractor: extractor,
		logger:    logger,
	}
}

// ScanSources scans each active source in the order given, extracting
// metadata for every included file and flushing aggregates via onBatch in
// batches of batchSize (any remainder flushes at end of source). Returns
// the total number of books reported inserted across all batches.
//
// An empty source list returns 0 without touching the walker, extractor,
// or onBatch. A file whose metadata cannot be extracted is skipped with a
// logged warning; the rest of the source's scan continues. Cancellation is
// honored between items: the in-flight batch is discarded, never
// partially flushed.
func (c *Coordinator) ScanSources(ctx context.Context, sources []domain.Source, batchSize int, isIncluded IncludeFunc, onBatch BatchFunc) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total := 0

	for _, src := range sources {
		if !src.IsActive {
			c.logger.Debug("skipping inactive source", "source_id", src.ID)
			continue
		}

		n, err := c.scanSource(ctx, src, batchSize, isIncluded, onBatch)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// scanSource walks a single source and flushes its aggregates in batches.
func (c *Coordinator) scanSource(ctx context.Context, src domain.Source, batchSize int, isIncluded IncludeFunc, onBatch BatchFunc) (int, error) {
	c.logger.Info("scanning source", "source_id", src.ID, "uri", src.URI)

	// Walk-scoped context: an early return (flush failure) must release
	// the walker goroutine, which otherwise blocks on its results channel.
	walkCtx, cancelWalk := context.WithCancel(ctx)
	defer cancelWalk()

	total := 0
	batch := make([]domain.BookAggregate, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := onBatch(ctx, src.ID, batch)
		if err != nil {
			return err
		}
		total += inserted
		batch = batch[:0]
		return nil
	}

	for result := range c.walker.Walk(walkCtx, src.URI, isIncluded) {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		meta, err := c.extractor.Extract(ctx, result.Path)
		if err != nil {
			// Skip-and-continue: one unparseable file must not sink the
			// rest of the source's scan.
			c.logger.Warn("metadata extraction failed, skipping file",
				"path", result.Path, "error", err)
			continue
		}

		batch = append(batch, buildAggregate(result, meta))

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return total, err
	}

	if err := flush(); err != nil {
		return total, err
	}

	c.logger.Info("source scan complete", "source_id", src.ID, "added", total)
	return total, nil
}

// buildAggregate assembles a Book+Chapter aggregate from extracted metadata.
func buildAggregate(file WalkResult, meta *FileMetadata) domain.BookAggregate {
	title := meta.Title
	if title == "" {
		title = meta.Album
	}

	agg := domain.BookAggregate{
		Book: domain.Book{
			ID:         id.MustGenerate(id.PrefixBook),
			URI:        file.Path,
			CoverURI:   meta.CoverRef,
			Author:     meta.Author,
			Series:     meta.Album,
			Title:      title,
			DurationMs: meta.DurationMs,
			Hash:       meta.Hash,
			IsActive:   true,
		},
	}

	agg.Chapters = make([]domain.Chapter, 0, len(meta.Tracks))
	for _, tr := range meta.Tracks {
		agg.Chapters = append(agg.Chapters, domain.Chapter{
			ID:         id.MustGenerate(id.PrefixChapter),
			TrackID:    tr.ID,
			Title:      tr.Title,
			StartMs:    tr.StartMs,
			EndMs:      tr.EndMs,
			DurationMs: tr.DurationMs,
			URI:        file.Path,
			CoverURI:   meta.CoverRef,
			Hash:       tr.Hash,
		})
	}
	agg.SortChapters()

	return agg
}
