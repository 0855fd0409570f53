package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
	"github.com/soundleaf/soundleaf-server/internal/id"
	"github.com/soundleaf/soundleaf-server/internal/normalize"
	"github.com/soundleaf/soundleaf-server/internal/store/sqlite"
)

// CollectionService manages shelves, tags, bookmarks, and per-book
// settings.
type CollectionService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewCollectionService creates a new collection service.
func NewCollectionService(st *sqlite.Store, logger *slog.Logger) *CollectionService {
	return &CollectionService{store: st, logger: logger}
}

// CreateShelf creates a named shelf.
func (s *CollectionService) CreateShelf(ctx context.Context, name string) (*domain.Shelf, error) {
	if name == "" {
		return nil, domainerrors.Validation("shelf name cannot be empty")
	}

	shelf := &domain.Shelf{
		ID:        id.MustGenerate(id.PrefixShelf),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateShelf(ctx, shelf); err != nil {
		return nil, err
	}

	s.logger.Info("shelf created", "shelf_id", shelf.ID, "name", name)
	return shelf, nil
}

// ListShelves returns all shelves.
func (s *CollectionService) ListShelves(ctx context.Context) ([]domain.Shelf, error) {
	return s.store.ListShelves(ctx)
}

// DeleteShelf removes a shelf and its memberships.
func (s *CollectionService) DeleteShelf(ctx context.Context, shelfID string) error {
	return s.store.DeleteShelf(ctx, shelfID)
}

// AddBookToShelf puts a book on a shelf. Idempotent.
func (s *CollectionService) AddBookToShelf(ctx context.Context, bookID, shelfID string) error {
	return s.store.AddBookToShelf(ctx, bookID, shelfID)
}

// RemoveBookFromShelf takes a book off a shelf.
func (s *CollectionService) RemoveBookFromShelf(ctx context.Context, bookID, shelfID string) error {
	return s.store.RemoveBookFromShelf(ctx, bookID, shelfID)
}

// ListShelfBooks returns the books on a shelf.
func (s *CollectionService) ListShelfBooks(ctx context.Context, shelfID string) ([]domain.Book, error) {
	return s.store.ListShelfBooks(ctx, shelfID)
}

// CreateTag creates a tag. The name is normalized to a canonical slug,
// which is the tag's identity.
func (s *CollectionService) CreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	slug := normalize.TagSlug(name)
	if slug == "" {
		return nil, domainerrors.Validation("tag name cannot be empty")
	}

	tag := &domain.Tag{ID: id.MustGenerate(id.PrefixTag), Name: slug}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags returns all tags.
func (s *CollectionService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.store.ListTags(ctx)
}

// DeleteTag removes a tag from every book and deletes it.
func (s *CollectionService) DeleteTag(ctx context.Context, tagID string) error {
	return s.store.DeleteTag(ctx, tagID)
}

// TagBook attaches a tag to a book.
func (s *CollectionService) TagBook(ctx context.Context, bookID, tagID string) error {
	return s.store.TagBook(ctx, bookID, tagID)
}

// UntagBook detaches a tag from a book.
func (s *CollectionService) UntagBook(ctx context.Context, bookID, tagID string) error {
	return s.store.UntagBook(ctx, bookID, tagID)
}

// ListBookTags returns a book's tags.
func (s *CollectionService) ListBookTags(ctx context.Context, bookID string) ([]domain.Tag, error) {
	return s.store.ListBookTags(ctx, bookID)
}

// CreateBookmark records a position bookmark in a book.
func (s *CollectionService) CreateBookmark(ctx context.Context, bookID, chapterID string, positionMs int64, title string) (*domain.Bookmark, error) {
	if positionMs < 0 {
		return nil, domainerrors.Validation("bookmark position cannot be negative")
	}

	bm := &domain.Bookmark{
		ID:         id.MustGenerate(id.PrefixBookmark),
		BookID:     bookID,
		ChapterID:  chapterID,
		PositionMs: positionMs,
		Title:      title,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateBookmark(ctx, bm); err != nil {
		return nil, err
	}
	return bm, nil
}

// ListBookmarks returns a book's bookmarks ordered by position.
func (s *CollectionService) ListBookmarks(ctx context.Context, bookID string) ([]domain.Bookmark, error) {
	return s.store.ListBookmarks(ctx, bookID)
}

// DeleteBookmark removes a bookmark.
func (s *CollectionService) DeleteBookmark(ctx context.Context, bookmarkID string) error {
	return s.store.DeleteBookmark(ctx, bookmarkID)
}

// GetBookConfig returns a book's settings record, empty if unset.
func (s *CollectionService) GetBookConfig(ctx context.Context, bookID string) (*domain.BookConfig, error) {
	return s.store.GetBookConfig(ctx, bookID)
}

// SetBookConfig upserts a book's settings record.
func (s *CollectionService) SetBookConfig(ctx context.Context, cfg *domain.BookConfig) error {
	return s.store.SetBookConfig(ctx, cfg)
}
