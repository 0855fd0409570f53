package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/normalize"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// deleteChunkSize is the default number of progress rows deleted per
// transaction in DeleteOrResetBooksProgress.
const deleteChunkSize = 25

// progressColumns is the ordered list of columns selected in progress queries.
// Must match the scan order in scanProgress.
const progressColumns = `id, book_id, chapter_id, total_chapters, current_chapter,
	chapter_progress_ms, book_progress_ms, book_remaining_ms,
	category, is_visible, last_updated_at`

// scanProgress scans a sql.Row (or sql.Rows via its Scan method) into a domain.BookProgress.
func scanProgress(scanner interface{ Scan(dest ...any) error }) (*domain.BookProgress, error) {
	var p domain.BookProgress

	var (
		category      string
		isVisible     int
		lastUpdatedAt string
	)

	err := scanner.Scan(
		&p.ID,
		&p.BookID,
		&p.ChapterID,
		&p.TotalChapters,
		&p.CurrentChapter,
		&p.ChapterProgressMs,
		&p.BookProgressMs,
		&p.BookRemainingMs,
		&category,
		&isVisible,
		&lastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Category = domain.Category(category)
	p.IsVisible = isVisible != 0
	p.LastUpdatedAt, err = parseTime(lastUpdatedAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GetProgress retrieves the live progress row for a book.
func (s *Store) GetProgress(ctx context.Context, bookID string) (*domain.BookProgress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM book_progress WHERE book_id = ?`, bookID)

	p, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProgress persists an updated progress record.
// The category and duration fields are stored exactly as derived by the
// caller; the store never recomputes them.
func (s *Store) SaveProgress(ctx context.Context, p *domain.BookProgress) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE book_progress SET
			chapter_id = ?, total_chapters = ?, current_chapter = ?,
			chapter_progress_ms = ?, book_progress_ms = ?, book_remaining_ms = ?,
			category = ?, is_visible = ?, last_updated_at = ?
		WHERE id = ?`,
		p.ChapterID, p.TotalChapters, p.CurrentChapter,
		p.ChapterProgressMs, p.BookProgressMs, p.BookRemainingMs,
		string(p.Category), boolToInt(p.IsVisible), formatTime(p.LastUpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update progress %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	s.notifier.Notify(store.TableProgress)
	return nil
}

// SetProgressVisible soft-hides or unhides a book's progress without
// touching any derived field.
func (s *Store) SetProgressVisible(ctx context.Context, bookID string, visible bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE book_progress SET is_visible = ? WHERE book_id = ?`,
		boolToInt(visible), bookID)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	s.notifier.Notify(store.TableProgress)
	return nil
}

// DeleteOrResetBooksProgress deletes the live progress rows for the given
// books in chunks, archiving any resumable snapshot first.
//
// A row with nonzero elapsed progress and nonzero remaining duration is
// copied into the progress archive (keyed by book hash) before deletion,
// preserving resumability if the book reappears. Finished or never-started
// rows are deleted without archival. Each deletion chunk commits in its
// own transaction; chunkSize <= 0 uses the default of 25.
func (s *Store) DeleteOrResetBooksProgress(ctx context.Context, bookIDs []string, chunkSize int) error {
	if len(bookIDs) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = deleteChunkSize
	}

	if err := s.archiveResumableProgress(ctx, bookIDs); err != nil {
		return err
	}

	for start := 0; start < len(bookIDs); start += chunkSize {
		end := min(start+chunkSize, len(bookIDs))
		if err := s.deleteProgressChunk(ctx, bookIDs[start:end]); err != nil {
			return err
		}
	}

	s.notifier.Notify(store.TableProgress)
	return nil
}

// archiveResumableProgress copies resumable snapshots for the given books
// into the archive table in one transaction.
func (s *Store) archiveResumableProgress(ctx context.Context, bookIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	for _, bookID := range bookIDs {
		row := tx.QueryRowContext(ctx, `
			SELECT `+prefixColumns(progressColumns, "p")+`, b.hash
			FROM book_progress p
			JOIN book b ON b.id = p.book_id
			WHERE p.book_id = ?`, bookID)

		p, hash, err := scanProgressWithHash(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("read progress for %s: %w", bookID, err)
		}

		if !p.Resumable() {
			continue
		}

		snap := p.Snapshot(hash, now)
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO progress (
				book_hash, book_id, chapter_id, total_chapters, current_chapter,
				chapter_progress_ms, book_progress_ms, book_remaining_ms, archived_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.BookHash, snap.BookID, snap.ChapterID, snap.TotalChapters,
			snap.CurrentChapter, snap.ChapterProgressMs, snap.BookProgressMs,
			snap.BookRemainingMs, formatTime(snap.ArchivedAt),
		)
		if err != nil {
			return fmt.Errorf("archive progress for %s: %w", bookID, err)
		}
	}

	return tx.Commit()
}

// deleteProgressChunk deletes one chunk of progress rows atomically.
func (s *Store) deleteProgressChunk(ctx context.Context, bookIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `DELETE FROM book_progress WHERE book_id IN (` + placeholders(len(bookIDs)) + `)`
	args := make([]any, len(bookIDs))
	for i, id := range bookIDs {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete progress chunk: %w", err)
	}

	return tx.Commit()
}

// GetArchivedProgress retrieves an archived snapshot by book hash.
func (s *Store) GetArchivedProgress(ctx context.Context, bookHash string) (*domain.ProgressSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT book_hash, book_id, chapter_id, total_chapters, current_chapter,
			chapter_progress_ms, book_progress_ms, book_remaining_ms, archived_at
		FROM progress WHERE book_hash = ?`, bookHash)

	var snap domain.ProgressSnapshot
	var archivedAt string
	err := row.Scan(&snap.BookHash, &snap.BookID, &snap.ChapterID,
		&snap.TotalChapters, &snap.CurrentChapter, &snap.ChapterProgressMs,
		&snap.BookProgressMs, &snap.BookRemainingMs, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap.ArchivedAt, err = parseTime(archivedAt)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteArchivedProgress drops an archived snapshot once it has been
// restored into a live row.
func (s *Store) DeleteArchivedProgress(ctx context.Context, bookHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE book_hash = ?`, bookHash)
	return err
}

// QueryLibrary returns active books with their progress, filtered and
// sorted for a library view. Categories narrow by playback state; the
// free-text filter matches title or author substrings case- and
// accent-insensitively; an empty author list imposes no restriction.
func (s *Store) QueryLibrary(ctx context.Context, q store.LibraryQuery) ([]store.BookWithProgress, error) {
	var (
		where []string
		args  []any
	)

	where = append(where, "b.is_active = 1")

	if len(q.Categories) > 0 {
		where = append(where, "p.category IN ("+placeholders(len(q.Categories))+")")
		for _, c := range q.Categories {
			args = append(args, string(c))
		}
	}

	if q.VisibleOnly {
		where = append(where, "p.is_visible = 1")
	}

	if q.Filter != "" {
		folded := normalize.Fold(q.Filter)
		where = append(where, "(instr(b.title_fold, ?) > 0 OR instr(b.author_fold, ?) > 0)")
		args = append(args, folded, folded)
	}

	if len(q.Authors) > 0 {
		where = append(where, "b.author IN ("+placeholders(len(q.Authors))+")")
		for _, a := range q.Authors {
			args = append(args, a)
		}
	}

	query := `SELECT ` + prefixColumns(bookColumns, "b") + `, ` +
		prefixColumns(progressColumns, "p") + `
		FROM book b
		JOIN book_progress p ON p.book_id = b.id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderClause(q.OrderBy, q.Descending)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.BookWithProgress
	for rows.Next() {
		item, err := scanBookWithProgress(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *item)
	}
	return results, rows.Err()
}

// scanBookWithProgress scans a joined book+progress row.
func scanBookWithProgress(scanner interface{ Scan(dest ...any) error }) (*store.BookWithProgress, error) {
	var (
		item           store.BookWithProgress
		coverURI       sql.NullString
		author         sql.NullString
		series         sql.NullString
		bookActive     int
		inactiveReason sql.NullString
		category       string
		isVisible      int
		lastUpdatedAt  string
	)

	err := scanner.Scan(
		&item.Book.ID, &item.Book.URI, &coverURI, &author, &series,
		&item.Book.Title, &item.Book.DurationMs, &item.Book.Hash,
		&bookActive, &inactiveReason,
		&item.Progress.ID, &item.Progress.BookID, &item.Progress.ChapterID,
		&item.Progress.TotalChapters, &item.Progress.CurrentChapter,
		&item.Progress.ChapterProgressMs, &item.Progress.BookProgressMs,
		&item.Progress.BookRemainingMs, &category, &isVisible, &lastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Book.CoverURI = stringOrEmpty(coverURI)
	item.Book.Author = stringOrEmpty(author)
	item.Book.Series = stringOrEmpty(series)
	item.Book.IsActive = bookActive != 0
	item.Book.InactiveReason = domain.InactiveReason(stringOrEmpty(inactiveReason))
	item.Progress.Category = domain.Category(category)
	item.Progress.IsVisible = isVisible != 0
	item.Progress.LastUpdatedAt, err = parseTime(lastUpdatedAt)
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// scanProgressWithHash scans a joined progress row plus the book's hash.
func scanProgressWithHash(scanner interface{ Scan(dest ...any) error }) (*domain.BookProgress, string, error) {
	var p domain.BookProgress
	var (
		category      string
		isVisible     int
		lastUpdatedAt string
		hash          string
	)

	err := scanner.Scan(
		&p.ID, &p.BookID, &p.ChapterID, &p.TotalChapters, &p.CurrentChapter,
		&p.ChapterProgressMs, &p.BookProgressMs, &p.BookRemainingMs,
		&category, &isVisible, &lastUpdatedAt, &hash,
	)
	if err != nil {
		return nil, "", err
	}

	p.Category = domain.Category(category)
	p.IsVisible = isVisible != 0
	p.LastUpdatedAt, err = parseTime(lastUpdatedAt)
	if err != nil {
		return nil, "", err
	}

	return &p, hash, nil
}

// orderClause maps a sortable column to its SQL expression.
// Unknown columns fall back to title order.
func orderClause(col store.OrderBy, descending bool) string {
	var expr string
	switch col {
	case store.OrderByAuthor:
		expr = "b.author_fold"
	case store.OrderByDuration:
		expr = "b.duration_ms"
	case store.OrderByRemaining:
		expr = "p.book_remaining_ms"
	case store.OrderByLastUpdated:
		expr = "p.last_updated_at"
	default:
		expr = "b.title_fold"
	}
	if descending {
		return expr + " DESC"
	}
	return expr + " ASC"
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// prefixColumns qualifies each column in a comma-separated list with a
// table alias.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
