// Package service orchestrates the ingestion, library, and playback
// workflows on top of the persistence store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
	"github.com/soundleaf/soundleaf-server/internal/hash"
	"github.com/soundleaf/soundleaf-server/internal/id"
	"github.com/soundleaf/soundleaf-server/internal/lookup"
	"github.com/soundleaf/soundleaf-server/internal/scanner"
	"github.com/soundleaf/soundleaf-server/internal/store"
	"github.com/soundleaf/soundleaf-server/internal/store/sqlite"
	"github.com/soundleaf/soundleaf-server/internal/validation"
)

// Notice is a minimal in-progress message the scan reports to its host.
type Notice struct {
	Title string
	Body  string
}

// NoticeFunc receives scan progress notices. May be nil.
type NoticeFunc func(Notice)

// ScanOptions tunes a library scan.
type ScanOptions struct {
	BatchSize int `json:"batch_size" validate:"gte=0,lte=100"`
	Notify    NoticeFunc
}

// LibraryService owns source registration and the scan unit of work.
type LibraryService struct {
	store       *sqlite.Store
	coordinator *scanner.Coordinator
	validator   *validation.Validator
	logger      *slog.Logger
	lookup      *lookup.Client

	// hashFile computes a file's identity hash; overridable in tests.
	hashFile func(path string) (string, error)
}

// NewLibraryService creates a new library service.
func NewLibraryService(st *sqlite.Store, coordinator *scanner.Coordinator, validator *validation.Validator, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:       st,
		coordinator: coordinator,
		validator:   validator,
		logger:      logger,
		hashFile:    hash.File,
	}
}

type registerSourceRequest struct {
	URI string `json:"uri" validate:"required"`
}

// RegisterSource registers a directory root for scanning.
func (s *LibraryService) RegisterSource(ctx context.Context, uri string) (*domain.Source, error) {
	if err := s.validator.Validate(registerSourceRequest{URI: uri}); err != nil {
		return nil, err
	}

	info, err := os.Stat(uri)
	if err != nil {
		return nil, domainerrors.Validationf("source path %s is not accessible", uri)
	}
	if !info.IsDir() {
		return nil, domainerrors.Validationf("source path %s is not a directory", uri)
	}

	src := &domain.Source{
		ID:        id.MustGenerate(id.PrefixSource),
		URI:       uri,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}

	s.logger.Info("source registered", "source_id", src.ID, "uri", uri)
	return src, nil
}

// ListSources returns all registered sources.
func (s *LibraryService) ListSources(ctx context.Context) ([]domain.Source, error) {
	return s.store.ListSources(ctx)
}

// SetSourceActive toggles whether a source participates in scans.
func (s *LibraryService) SetSourceActive(ctx context.Context, sourceID string, active bool) error {
	return s.store.SetSourceActive(ctx, sourceID, active)
}

// RemoveSource deletes a source and its books, archiving resumable
// progress first.
func (s *LibraryService) RemoveSource(ctx context.Context, sourceID string) error {
	if err := s.store.DeleteSource(ctx, sourceID); err != nil {
		return err
	}
	s.logger.Info("source removed", "source_id", sourceID)
	return nil
}

// Scan runs the full ingestion unit of work over all registered
// sources and returns the number of newly added books.
//
// Files whose content hash already belongs to an active book are
// skipped before extraction. Books whose hash matches an inactive row
// are reactivated in place rather than re-inserted. Active books whose
// backing file has disappeared are marked inactive. Archived progress
// matching a newly added book's hash is restored.
func (s *LibraryService) Scan(ctx context.Context, opts ScanOptions) (int, error) {
	if err := s.validator.Validate(opts); err != nil {
		return 0, err
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = scanner.DefaultBatchSize
	}

	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}

	activeHashes, err := s.store.ActiveHashes(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active hashes: %w", err)
	}

	isIncluded := func(r scanner.WalkResult) bool {
		h, err := s.hashFile(r.Path)
		if err != nil {
			s.logger.Warn("could not hash file, skipping", "path", r.Path, "error", err)
			return false
		}
		return !activeHashes[h]
	}

	notify(opts.Notify, "Library scan", "Scanning sources for new audiobooks")

	added, err := s.coordinator.ScanSources(ctx, sources, batchSize, isIncluded, s.persistBatch)
	if err != nil {
		return added, err
	}

	if err := s.pruneMissing(ctx); err != nil {
		return added, err
	}

	notify(opts.Notify, "Library scan complete", fmt.Sprintf("%d new books added", added))
	s.logger.Info("scan complete", "added", added)
	return added, nil
}

// persistBatch writes one coordinator batch. Aggregates whose hash
// matches a known inactive book are reactivated instead of inserted
// and do not count toward the new-book total.
func (s *LibraryService) persistBatch(ctx context.Context, sourceID string, batch []domain.BookAggregate) (int, error) {
	fresh := make([]domain.BookAggregate, 0, len(batch))
	for _, aggregate := range batch {
		existing, err := s.store.GetBookByHash(ctx, aggregate.Book.Hash)
		if err != nil {
			if domainerrors.Is(err, store.ErrNotFound) {
				fresh = append(fresh, aggregate)
				continue
			}
			return 0, err
		}
		if existing.IsActive {
			// The include predicate should have filtered this; a file
			// touched mid-scan can still race through.
			continue
		}
		if _, err := s.store.ReactivateBookByHash(ctx, aggregate.Book.Hash, aggregate.Book.URI); err != nil {
			return 0, err
		}
		s.logger.Info("book reactivated", "book_id", existing.ID, "hash", aggregate.Book.Hash)
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	ids, err := s.store.CreateBooksWithChapters(ctx, sourceID, fresh)
	if err != nil {
		return 0, err
	}

	for i, aggregate := range fresh {
		if err := s.restoreArchivedProgress(ctx, ids[i], aggregate); err != nil {
			s.logger.Warn("could not restore archived progress",
				"book_id", ids[i], "hash", aggregate.Book.Hash, "error", err)
		}
	}
	return len(ids), nil
}

// restoreArchivedProgress re-applies an archived snapshot to a freshly
// created book so a re-added book resumes where it left off.
func (s *LibraryService) restoreArchivedProgress(ctx context.Context, bookID string, aggregate domain.BookAggregate) error {
	snap, err := s.store.GetArchivedProgress(ctx, aggregate.Book.Hash)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	progress, err := s.store.GetProgress(ctx, bookID)
	if err != nil {
		return err
	}

	// Chapter ids were regenerated on insert; re-derive chapter fields
	// from the archived book position instead of copying them over.
	progress.Apply(snap.BookProgressMs, aggregate.Book.DurationMs, aggregate.Chapters, time.Now())
	if err := s.store.SaveProgress(ctx, progress); err != nil {
		return err
	}
	if err := s.store.DeleteArchivedProgress(ctx, aggregate.Book.Hash); err != nil {
		return err
	}

	s.logger.Info("archived progress restored", "book_id", bookID, "position_ms", snap.BookProgressMs)
	return nil
}

// pruneMissing marks active books whose backing file no longer exists
// as inactive with reason NOT_FOUND.
func (s *LibraryService) pruneMissing(ctx context.Context) error {
	// Enumerate from the book table directly; the library query surface
	// joins progress and would miss books without a progress row.
	books, err := s.store.ListActiveBooks(ctx)
	if err != nil {
		return fmt.Errorf("list active books: %w", err)
	}

	var missing []string
	for _, b := range books {
		if _, err := os.Stat(b.URI); os.IsNotExist(err) {
			missing = append(missing, b.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	s.logger.Info("marking missing books inactive", "count", len(missing))
	return s.store.MarkBooksInactive(ctx, missing, domain.InactiveReasonNotFound)
}

// Query returns active books with progress for a library view.
func (s *LibraryService) Query(ctx context.Context, q store.LibraryQuery) ([]store.BookWithProgress, error) {
	return s.store.QueryLibrary(ctx, q)
}

// GetBook returns a book and its ordered chapters.
func (s *LibraryService) GetBook(ctx context.Context, bookID string) (*domain.Book, []domain.Chapter, error) {
	return s.store.GetBook(ctx, bookID)
}

// UpdateBookMetadata overrides book display fields. Empty fields are
// left unchanged.
func (s *LibraryService) UpdateBookMetadata(ctx context.Context, bookID, title, author, series string) error {
	return s.store.UpdateBookMetadata(ctx, bookID, title, author, series)
}

// SetLookupClient enables remote volume lookup.
func (s *LibraryService) SetLookupClient(c *lookup.Client) {
	s.lookup = c
}

// LookupVolumes searches the remote volume API for candidates matching
// a book's metadata.
func (s *LibraryService) LookupVolumes(ctx context.Context, bookID string) ([]lookup.Volume, error) {
	if s.lookup == nil {
		return nil, domainerrors.Unavailable("volume lookup is not configured")
	}
	book, _, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.lookup.Search(ctx, book.Title, book.Author, book.Series)
}

// Subscribe returns a channel of table-change notifications and a
// cancel function that stops future emissions.
func (s *LibraryService) Subscribe() (<-chan store.Change, func()) {
	return s.store.Notifier().Subscribe()
}

func notify(fn NoticeFunc, title, body string) {
	if fn != nil {
		fn(Notice{Title: title, Body: body})
	}
}
