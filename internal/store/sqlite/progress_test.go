package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// advanceProgress applies a position update to a book's stored progress.
func advanceProgress(t *testing.T, s *Store, bookID string, positionMs int64) *domain.BookProgress {
	t.Helper()
	ctx := context.Background()

	book, chapters, err := s.GetBook(ctx, bookID)
	require.NoError(t, err)
	p, err := s.GetProgress(ctx, bookID)
	require.NoError(t, err)

	p.Apply(positionMs, book.DurationMs, chapters, time.Now())
	require.NoError(t, s.SaveProgress(ctx, p))
	return p
}

func TestSaveAndGetProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 1)

	advanceProgress(t, s, ids[0], 700000)

	p, err := s.GetProgress(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(700000), p.BookProgressMs)
	assert.Equal(t, int64(500000), p.BookRemainingMs)
	assert.Equal(t, domain.CategoryInProgress, p.Category)
	assert.Equal(t, "chp-0-2", p.ChapterID)
	assert.Equal(t, 2, p.CurrentChapter)
	assert.Equal(t, int64(100000), p.ChapterProgressMs)
}

func TestProgressAccountingInvariantSurvivesStorage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 1)

	for _, pos := range []int64{0, 1, 600000, 1199999, 1200000} {
		advanceProgress(t, s, ids[0], pos)
		p, err := s.GetProgress(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, int64(1200000), p.BookProgressMs+p.BookRemainingMs,
			"invariant violated at %d", pos)
	}
}

func TestSetProgressVisible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 1)

	require.NoError(t, s.SetProgressVisible(ctx, ids[0], false))

	p, err := s.GetProgress(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, p.IsVisible)
	assert.Equal(t, domain.CategoryNotStarted, p.Category, "visibility is orthogonal to category")
}

func TestDeleteOrResetArchivesResumableProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 1)

	advanceProgress(t, s, ids[0], 700000)
	require.NoError(t, s.DeleteOrResetBooksProgress(ctx, ids, 0))

	_, err := s.GetProgress(ctx, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)

	snap, err := s.GetArchivedProgress(ctx, "hash-0")
	require.NoError(t, err)
	assert.Equal(t, int64(700000), snap.BookProgressMs)
	assert.Equal(t, int64(500000), snap.BookRemainingMs)
	assert.Equal(t, "chp-0-2", snap.ChapterID)
	assert.Equal(t, 2, snap.CurrentChapter)
}

func TestDeleteOrResetSkipsArchivalForUnstarted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 1)

	require.NoError(t, s.DeleteOrResetBooksProgress(ctx, ids, 0))

	_, err := s.GetProgress(ctx, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetArchivedProgress(ctx, "hash-0")
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing worth resuming")
}

func TestDeleteOrResetSkipsArchivalForFinished(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 1)

	advanceProgress(t, s, ids[0], 1200000)
	require.NoError(t, s.DeleteOrResetBooksProgress(ctx, ids, 0))

	_, err := s.GetArchivedProgress(ctx, "hash-0")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteOrResetChunkedDeletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 7)

	// Chunk size 3 forces three separate delete transactions.
	require.NoError(t, s.DeleteOrResetBooksProgress(ctx, ids, 3))

	var remaining int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM book_progress`).Scan(&remaining))
	assert.Zero(t, remaining)
}

func TestQueryLibraryByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 3)

	advanceProgress(t, s, ids[1], 500)     // IN_PROGRESS
	advanceProgress(t, s, ids[2], 1200000) // FINISHED

	results, err := s.QueryLibrary(ctx, store.LibraryQuery{
		Categories: []domain.Category{domain.CategoryInProgress},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[1], results[0].Book.ID)

	results, err = s.QueryLibrary(ctx, store.LibraryQuery{
		Categories: []domain.Category{domain.CategoryNotStarted, domain.CategoryFinished},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestQueryLibraryFreeTextFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)

	a := makeTestAggregate(1)
	a.Book.Title = "The Dispossessed"
	b := makeTestAggregate(2)
	b.Book.Title = "Récits de voyage"
	b.Book.Author = "Jules Verne"

	_, err := s.CreateBooksWithChapters(ctx, sourceID, []domain.BookAggregate{a, b})
	require.NoError(t, err)

	// Title substring, case-insensitive.
	results, err := s.QueryLibrary(ctx, store.LibraryQuery{Filter: "dispossessed"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.Book.ID, results[0].Book.ID)

	// Accent-insensitive match.
	results, err = s.QueryLibrary(ctx, store.LibraryQuery{Filter: "recits"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, b.Book.ID, results[0].Book.ID)

	// Author substring.
	results, err = s.QueryLibrary(ctx, store.LibraryQuery{Filter: "verne"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueryLibraryAuthorAllowList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)

	a := makeTestAggregate(1)
	b := makeTestAggregate(2)
	b.Book.Author = "Frank Herbert"

	_, err := s.CreateBooksWithChapters(ctx, sourceID, []domain.BookAggregate{a, b})
	require.NoError(t, err)

	results, err := s.QueryLibrary(ctx, store.LibraryQuery{
		Authors: []string{"Frank Herbert"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, b.Book.ID, results[0].Book.ID)

	// Empty allow-list imposes no restriction.
	results, err = s.QueryLibrary(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestQueryLibraryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)

	a := makeTestAggregate(1)
	a.Book.Title = "Zebra"
	b := makeTestAggregate(2)
	b.Book.Title = "Aardvark"

	_, err := s.CreateBooksWithChapters(ctx, sourceID, []domain.BookAggregate{a, b})
	require.NoError(t, err)

	results, err := s.QueryLibrary(ctx, store.LibraryQuery{OrderBy: store.OrderByTitle})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Aardvark", results[0].Book.Title)

	results, err = s.QueryLibrary(ctx, store.LibraryQuery{OrderBy: store.OrderByTitle, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, "Zebra", results[0].Book.Title)
}

func TestQueryLibraryVisibleOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 2)

	require.NoError(t, s.SetProgressVisible(ctx, ids[0], false))

	results, err := s.QueryLibrary(ctx, store.LibraryQuery{VisibleOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[1], results[0].Book.ID)
}

func TestQueryLibraryExcludesInactiveBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, ids := seedBooks(t, s, 2)

	require.NoError(t, s.MarkBooksInactive(ctx, ids[:1], domain.InactiveReasonScanning))

	results, err := s.QueryLibrary(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[1], results[0].Book.ID)
}
