package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
)

func TestShelfOperations(t *testing.T) {
	st := newTestStore(t)
	bookID := seedBook(t, st)
	svc := NewCollectionService(st, testLogger())
	ctx := context.Background()

	shelf, err := svc.CreateShelf(ctx, "Favorites")
	require.NoError(t, err)
	assert.NotEmpty(t, shelf.ID)

	_, err = svc.CreateShelf(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	require.NoError(t, svc.AddBookToShelf(ctx, bookID, shelf.ID))

	books, err := svc.ListShelfBooks(ctx, shelf.ID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, bookID, books[0].ID)
}

func TestTagOperations(t *testing.T) {
	st := newTestStore(t)
	bookID := seedBook(t, st)
	svc := NewCollectionService(st, testLogger())
	ctx := context.Background()

	tag, err := svc.CreateTag(ctx, "Sci-Fi")
	require.NoError(t, err)
	assert.Equal(t, "sci-fi", tag.Name, "tag names are slugged")

	_, err = svc.CreateTag(ctx, "!!!")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	require.NoError(t, svc.TagBook(ctx, bookID, tag.ID))

	tags, err := svc.ListBookTags(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "sci-fi", tags[0].Name)
}

func TestBookmarkOperations(t *testing.T) {
	st := newTestStore(t)
	bookID := seedBook(t, st)
	svc := NewCollectionService(st, testLogger())
	ctx := context.Background()

	bm, err := svc.CreateBookmark(ctx, bookID, "", 42000, "great quote")
	require.NoError(t, err)

	_, err = svc.CreateBookmark(ctx, bookID, "", -1, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	list, err := svc.ListBookmarks(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bm.ID, list[0].ID)
}

func TestBookConfig(t *testing.T) {
	st := newTestStore(t)
	bookID := seedBook(t, st)
	svc := NewCollectionService(st, testLogger())
	ctx := context.Background()

	cfg, err := svc.GetBookConfig(ctx, bookID)
	require.NoError(t, err)
	cfg.Settings = map[string]string{"playback_speed": "1.5"}
	require.NoError(t, svc.SetBookConfig(ctx, cfg))

	got, err := svc.GetBookConfig(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "1.5", got.Settings["playback_speed"])
}
