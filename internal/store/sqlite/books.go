package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/id"
	"github.com/soundleaf/soundleaf-server/internal/normalize"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, uri, cover_uri, author, series, title,
	duration_ms, hash, is_active, inactive_reason`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		coverURI       sql.NullString
		author         sql.NullString
		series         sql.NullString
		isActive       int
		inactiveReason sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&b.URI,
		&coverURI,
		&author,
		&series,
		&b.Title,
		&b.DurationMs,
		&b.Hash,
		&isActive,
		&inactiveReason,
	)
	if err != nil {
		return nil, err
	}

	b.CoverURI = stringOrEmpty(coverURI)
	b.Author = stringOrEmpty(author)
	b.Series = stringOrEmpty(series)
	b.IsActive = isActive != 0
	b.InactiveReason = domain.InactiveReason(stringOrEmpty(inactiveReason))

	return &b, nil
}

// CreateBooksWithChapters persists a batch of aggregates for a source in a
// single transaction: books, then per book (in input order) chapters,
// cross-references, and a seeded NOT_STARTED progress row. A book with
// zero chapters is inserted without a progress row.
//
// Either the whole batch commits or none of it does. A duplicate book or
// chapter hash rolls the batch back and surfaces store.ErrAlreadyExists;
// callers are expected to pre-filter known hashes via the walker's
// include predicate.
func (s *Store) CreateBooksWithChapters(ctx context.Context, sourceID string, aggregates []domain.BookAggregate) ([]string, error) {
	if len(aggregates) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	createdIDs := make([]string, 0, len(aggregates))

	for i := range aggregates {
		agg := &aggregates[i]

		if err := insertBook(ctx, tx, sourceID, &agg.Book); err != nil {
			return nil, err
		}

		for j := range agg.Chapters {
			if err := insertChapter(ctx, tx, agg.Book.ID, &agg.Chapters[j]); err != nil {
				return nil, err
			}
		}

		if len(agg.Chapters) > 0 {
			progress := domain.NewBookProgress(
				id.MustGenerate(id.PrefixProgress), &agg.Book, agg.Chapters, now)
			if err := insertProgress(ctx, tx, progress); err != nil {
				return nil, err
			}
		}

		createdIDs = append(createdIDs, agg.Book.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	s.notifier.Notify(store.TableBooks, store.TableProgress)
	return createdIDs, nil
}

// insertBook inserts a single book row within a transaction.
func insertBook(ctx context.Context, tx *sql.Tx, sourceID string, b *domain.Book) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO book (
			id, source_id, uri, cover_uri, author, series, title,
			title_fold, author_fold, duration_ms, hash, is_active, inactive_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, sourceID, b.URI, nullString(b.CoverURI),
		nullString(b.Author), nullString(b.Series), b.Title,
		normalize.Fold(b.Title), normalize.Fold(b.Author),
		b.DurationMs, b.Hash, boolToInt(b.IsActive),
		nullString(string(b.InactiveReason)),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert book %s: %w", b.ID, err)
	}
	return nil
}

// insertChapter inserts a chapter row plus its book cross-reference.
func insertChapter(ctx context.Context, tx *sql.Tx, bookID string, c *domain.Chapter) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chapter (
			id, track_id, title, start_ms, end_ms, duration_ms, uri, cover_uri, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TrackID, c.Title, c.StartMs, c.EndMs, c.DurationMs,
		c.URI, nullString(c.CoverURI), c.Hash,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert chapter %s: %w", c.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO book_chapter_cross_ref (book_id, chapter_id) VALUES (?, ?)`,
		bookID, c.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert cross-ref %s/%s: %w", bookID, c.ID, err)
	}
	return nil
}

// insertProgress inserts a book progress row within a transaction.
func insertProgress(ctx context.Context, tx *sql.Tx, p *domain.BookProgress) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO book_progress (
			id, book_id, chapter_id, total_chapters, current_chapter,
			chapter_progress_ms, book_progress_ms, book_remaining_ms,
			category, is_visible, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BookID, p.ChapterID, p.TotalChapters, p.CurrentChapter,
		p.ChapterProgressMs, p.BookProgressMs, p.BookRemainingMs,
		string(p.Category), boolToInt(p.IsVisible), formatTime(p.LastUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert progress %s: %w", p.ID, err)
	}
	return nil
}

// GetBook retrieves a book by ID together with its ordered chapter list.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, []domain.Chapter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM book WHERE id = ?`, bookID)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil, store.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	chapters, err := s.GetChaptersForBook(ctx, bookID)
	if err != nil {
		return nil, nil, fmt.Errorf("load chapters: %w", err)
	}
	return b, chapters, nil
}

// GetBookByHash retrieves a book by its identity hash, active or not.
func (s *Store) GetBookByHash(ctx context.Context, hash string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM book WHERE hash = ?`, hash)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetChaptersForBook returns a book's chapters ordered by track ID ascending.
func (s *Store) GetChaptersForBook(ctx context.Context, bookID string) ([]domain.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.track_id, c.title, c.start_ms, c.end_ms, c.duration_ms,
			c.uri, c.cover_uri, c.hash
		FROM chapter c
		JOIN book_chapter_cross_ref x ON x.chapter_id = c.id
		WHERE x.book_id = ?
		ORDER BY c.track_id ASC`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []domain.Chapter
	for rows.Next() {
		var c domain.Chapter
		var coverURI sql.NullString
		err := rows.Scan(&c.ID, &c.TrackID, &c.Title, &c.StartMs, &c.EndMs,
			&c.DurationMs, &c.URI, &coverURI, &c.Hash)
		if err != nil {
			return nil, err
		}
		c.CoverURI = stringOrEmpty(coverURI)
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// ActiveHashes returns the identity hashes of all active books.
// The ingestion path uses this as the "not already known" include predicate.
func (s *Store) ActiveHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash FROM book WHERE is_active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}

// ListActiveBooks returns all active books ordered by title. Unlike the
// library query surface this does not join progress, so books without a
// progress row are included.
func (s *Store) ListActiveBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM book WHERE is_active = 1 ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// MarkBooksInactive deactivates the given books with a reason.
func (s *Store) MarkBooksInactive(ctx context.Context, bookIDs []string, reason domain.InactiveReason) error {
	if len(bookIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, bookID := range bookIDs {
		_, err := tx.ExecContext(ctx, `
			UPDATE book SET is_active = 0, inactive_reason = ? WHERE id = ?`,
			string(reason), bookID)
		if err != nil {
			return fmt.Errorf("deactivate book %s: %w", bookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.notifier.Notify(store.TableBooks)
	return nil
}

// ReactivateBookByHash reactivates an inactive book in place when a rescan
// rediscovers its hash. Hash uniqueness is authoritative: rediscovery never
// creates a second row. The stored URI is refreshed since the file may
// have moved. Returns the reactivated book, or store.ErrNotFound when the
// hash is unknown.
func (s *Store) ReactivateBookByHash(ctx context.Context, hash, uri string) (*domain.Book, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE book SET is_active = 1, inactive_reason = NULL, uri = ?
		WHERE hash = ?`, uri, hash)
	if err != nil {
		return nil, fmt.Errorf("reactivate book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}

	s.notifier.Notify(store.TableBooks)
	return s.GetBookByHash(ctx, hash)
}

// UpdateBookMetadata applies title/author/series enrichment from the
// metadata lookup flow. Empty fields are left unchanged.
func (s *Store) UpdateBookMetadata(ctx context.Context, bookID, title, author, series string) error {
	b, _, err := s.GetBook(ctx, bookID)
	if err != nil {
		return err
	}

	if title != "" {
		b.Title = title
	}
	if author != "" {
		b.Author = author
	}
	if series != "" {
		b.Series = series
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE book SET title = ?, author = ?, series = ?,
			title_fold = ?, author_fold = ?
		WHERE id = ?`,
		b.Title, nullString(b.Author), nullString(b.Series),
		normalize.Fold(b.Title), normalize.Fold(b.Author), bookID)
	if err != nil {
		return fmt.Errorf("update book metadata: %w", err)
	}

	s.notifier.Notify(store.TableBooks)
	return nil
}

// DeleteBooks removes the given books and, via cascade, their chapters,
// cross-references, live progress, bookmarks, shelf/tag memberships, and
// config rows. Archive any resumable progress with
// DeleteOrResetBooksProgress before calling this.
func (s *Store) DeleteBooks(ctx context.Context, bookIDs []string) error {
	if len(bookIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, bookID := range bookIDs {
		// Chapters are not cascade-deleted from the cross-ref side, so
		// remove them explicitly first.
		_, err := tx.ExecContext(ctx, `
			DELETE FROM chapter WHERE id IN (
				SELECT chapter_id FROM book_chapter_cross_ref WHERE book_id = ?
			)`, bookID)
		if err != nil {
			return fmt.Errorf("delete chapters for %s: %w", bookID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM book WHERE id = ?`, bookID); err != nil {
			return fmt.Errorf("delete book %s: %w", bookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.notifier.Notify(store.TableBooks, store.TableProgress)
	return nil
}
