package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
	"github.com/soundleaf/soundleaf-server/internal/lookup"
	"github.com/soundleaf/soundleaf-server/internal/scanner"
	"github.com/soundleaf/soundleaf-server/internal/store"
	"github.com/soundleaf/soundleaf-server/internal/store/sqlite"
	"github.com/soundleaf/soundleaf-server/internal/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeExtractor derives metadata from the file basename so hashes are
// deterministic across scans.
type fakeExtractor struct {
	calls    int
	noTracks map[string]bool
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (*scanner.FileMetadata, error) {
	f.calls++
	base := filepath.Base(path)
	meta := &scanner.FileMetadata{
		Title:      base,
		Author:     "Test Author",
		DurationMs: 3600000,
		Hash:       "hash-" + base,
	}
	if !f.noTracks[base] {
		meta.Tracks = []scanner.TrackInfo{
			{ID: 1, Title: "Part One", StartMs: 0, EndMs: 1800000, DurationMs: 3600000, Hash: "trk-1-" + base},
			{ID: 2, Title: "Part Two", StartMs: 1800000, EndMs: 3600000, DurationMs: 3600000, Hash: "trk-2-" + base},
		}
	}
	return meta, nil
}

func newTestLibrary(t *testing.T, st *sqlite.Store) (*LibraryService, *fakeExtractor) {
	t.Helper()
	log := testLogger()
	ext := &fakeExtractor{}
	coordinator := scanner.NewCoordinator(scanner.NewWalker(log), ext, log)
	svc := NewLibraryService(st, coordinator, validation.New(), log)
	// Hash by basename to match the fake extractor.
	svc.hashFile = func(path string) (string, error) {
		return "hash-" + filepath.Base(path), nil
	}
	return svc, ext
}

func writeBooks(t *testing.T, root string, n int) {
	t.Helper()
	for i := range n {
		path := filepath.Join(root, fmt.Sprintf("book%02d.m4b", i))
		require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	}
}

func TestRegisterSource(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()
	root := t.TempDir()

	src, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root, src.URI)
	assert.True(t, src.IsActive)

	sources, err := svc.ListSources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestRegisterSourceRejectsBadPaths(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	_, err := svc.RegisterSource(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.RegisterSource(ctx, "/no/such/dir")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	file := filepath.Join(t.TempDir(), "file.m4b")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = svc.RegisterSource(ctx, file)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestScanIngestsNewBooks(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	root := t.TempDir()
	writeBooks(t, root, 5)
	_, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	added, err := svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, added)

	results, err := svc.Query(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	assert.Len(t, results, 5)

	// Every ingested book carries its chapters and a seeded progress row.
	_, chapters, err := svc.GetBook(ctx, results[0].Book.ID)
	require.NoError(t, err)
	assert.Len(t, chapters, 2)
	assert.Equal(t, domain.CategoryNotStarted, results[0].Progress.Category)
}

func TestScanSkipsAlreadyIngestedFiles(t *testing.T) {
	st := newTestStore(t)
	svc, ext := newTestLibrary(t, st)
	ctx := context.Background()

	root := t.TempDir()
	writeBooks(t, root, 3)
	_, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	added, err := svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, added)
	extractions := ext.calls

	// Second scan finds nothing new and never re-extracts known files.
	added, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, extractions, ext.calls)
}

func TestScanReactivatesReappearedBook(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	root := t.TempDir()
	writeBooks(t, root, 1)
	_, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)

	results, err := svc.Query(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	bookID := results[0].Book.ID

	require.NoError(t, st.MarkBooksInactive(ctx, []string{bookID}, domain.InactiveReasonNotFound))

	// The file is still on disk, so a rescan reactivates the same row.
	added, err := svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Zero(t, added, "reactivation is not a new book")

	book, _, err := svc.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, book.IsActive)
	assert.Empty(t, string(book.InactiveReason))
}

func TestScanMarksMissingBooksInactive(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	root := t.TempDir()
	writeBooks(t, root, 2)
	_, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "book00.m4b")))

	_, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)

	results, err := svc.Query(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "book01.m4b", results[0].Book.Title)
}

func TestScanMarksMissingChapterlessBooksInactive(t *testing.T) {
	st := newTestStore(t)
	svc, ext := newTestLibrary(t, st)
	ext.noTracks = map[string]bool{"book00.m4b": true}
	ctx := context.Background()

	// book00 ingests with zero chapters and therefore no progress row.
	root := t.TempDir()
	writeBooks(t, root, 2)
	_, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "book00.m4b")))

	_, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)

	book, err := st.GetBookByHash(ctx, "hash-book00.m4b")
	require.NoError(t, err)
	assert.False(t, book.IsActive)
	assert.Equal(t, domain.InactiveReasonNotFound, book.InactiveReason)
}

func TestScanRestoresArchivedProgress(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	root := t.TempDir()
	writeBooks(t, root, 1)
	src, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)

	results, err := svc.Query(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	bookID := results[0].Book.ID

	// Listen partway, then remove the source (archives the progress).
	progress, err := st.GetProgress(ctx, bookID)
	require.NoError(t, err)
	book, chapters, err := st.GetBook(ctx, bookID)
	require.NoError(t, err)
	progress.Apply(2000000, book.DurationMs, chapters, time.Now())
	require.NoError(t, st.SaveProgress(ctx, progress))

	require.NoError(t, svc.RemoveSource(ctx, src.ID))

	// Re-register and rescan: the book comes back mid-listen.
	_, err = svc.RegisterSource(ctx, root)
	require.NoError(t, err)
	added, err := svc.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, added)

	results, err = svc.Query(ctx, store.LibraryQuery{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2000000), results[0].Progress.BookProgressMs)
	assert.Equal(t, domain.CategoryInProgress, results[0].Progress.Category)

	// The archive entry is consumed by the restore.
	_, err = st.GetArchivedProgress(ctx, results[0].Book.Hash)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestScanEmitsNotices(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	root := t.TempDir()
	writeBooks(t, root, 1)
	_, err := svc.RegisterSource(ctx, root)
	require.NoError(t, err)

	var notices []Notice
	_, err = svc.Scan(ctx, ScanOptions{Notify: func(n Notice) { notices = append(notices, n) }})
	require.NoError(t, err)

	require.Len(t, notices, 2)
	assert.Equal(t, "Library scan", notices[0].Title)
	assert.Contains(t, notices[1].Body, "1 new books")
}

func TestScanRejectsInvalidBatchSize(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)

	_, err := svc.Scan(context.Background(), ScanOptions{BatchSize: 500})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLookupVolumes(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	bookID := seedBook(t, st)

	_, err := svc.LookupVolumes(ctx, bookID)
	assert.ErrorIs(t, err, domainerrors.ErrUnavailable, "not configured")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "book00.m4b", r.URL.Query().Get("title"))
		w.Write([]byte(`{"resultCount":1,"results":[{"id":"vol-1","title":"Book","author":"Test Author"}]}`))
	}))
	defer server.Close()
	svc.SetLookupClient(lookup.NewClient(server.URL, "key", testLogger()))

	volumes, err := svc.LookupVolumes(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Equal(t, "vol-1", volumes[0].ID)
}

func TestSubscribeDeliversChangeNotifications(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestLibrary(t, st)
	ctx := context.Background()

	ch, cancel := svc.Subscribe()
	defer cancel()

	_, err := svc.RegisterSource(ctx, t.TempDir())
	require.NoError(t, err)

	select {
	case change := <-ch:
		assert.Contains(t, change.Tables, store.TableSources)
	case <-time.After(time.Second):
		t.Fatal("no change notification received")
	}
}
