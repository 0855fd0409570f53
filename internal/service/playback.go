package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
	"github.com/soundleaf/soundleaf-server/internal/player"
	"github.com/soundleaf/soundleaf-server/internal/store/sqlite"
)

// PlaybackService applies playback events to progress records and
// resolves chapters into playable items.
type PlaybackService struct {
	store    *sqlite.Store
	resolver *player.Resolver
	logger   *slog.Logger

	now func() time.Time
}

// NewPlaybackService creates a new playback service.
func NewPlaybackService(st *sqlite.Store, resolver *player.Resolver, logger *slog.Logger) *PlaybackService {
	return &PlaybackService{
		store:    st,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// UpdatePosition records a playback position for a book, re-deriving
// progress, remaining duration, category, and current chapter.
func (s *PlaybackService) UpdatePosition(ctx context.Context, bookID string, positionMs int64) (*domain.BookProgress, error) {
	book, chapters, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.GetProgress(ctx, bookID)
	if err != nil {
		return nil, err
	}

	progress.Apply(positionMs, book.DurationMs, chapters, s.now())
	if err := s.store.SaveProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// GetProgress returns a book's live progress record.
func (s *PlaybackService) GetProgress(ctx context.Context, bookID string) (*domain.BookProgress, error) {
	return s.store.GetProgress(ctx, bookID)
}

// SetVisible toggles a book's soft-hide flag without touching its
// playback state.
func (s *PlaybackService) SetVisible(ctx context.Context, bookID string, visible bool) error {
	return s.store.SetProgressVisible(ctx, bookID, visible)
}

// ResolveChapter maps a chapter id onto a playable item clipped to the
// chapter's bounds. Returns a not-found error when the chapter does
// not exist or has invalid bounds.
func (s *PlaybackService) ResolveChapter(ctx context.Context, bookID, chapterID string, item player.Item) (*player.PlayableItem, error) {
	book, chapters, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.GetProgress(ctx, bookID)
	if err != nil {
		if !domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		progress = nil
	}

	playable := s.resolver.Resolve(progress, book, chapters, item, chapterID)
	if playable == nil {
		return nil, domainerrors.NotFoundf("no playable item for chapter %s", chapterID)
	}
	return playable, nil
}
