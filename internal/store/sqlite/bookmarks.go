package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// CreateBookmark inserts a positional bookmark for a book.
func (s *Store) CreateBookmark(ctx context.Context, bm *domain.Bookmark) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmark (id, book_id, chapter_id, position_ms, title, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		bm.ID, bm.BookID, nullString(bm.ChapterID), bm.PositionMs,
		nullString(bm.Title), formatTime(bm.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

// ListBookmarks returns a book's bookmarks ordered by position.
func (s *Store) ListBookmarks(ctx context.Context, bookID string) ([]domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, chapter_id, position_ms, title, created_at
		FROM bookmark
		WHERE book_id = ?
		ORDER BY position_ms ASC`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookmarks []domain.Bookmark
	for rows.Next() {
		var bm domain.Bookmark
		var chapterID, title sql.NullString
		var createdAt string
		err := rows.Scan(&bm.ID, &bm.BookID, &chapterID, &bm.PositionMs,
			&title, &createdAt)
		if err != nil {
			return nil, err
		}
		bm.ChapterID = stringOrEmpty(chapterID)
		bm.Title = stringOrEmpty(title)
		bm.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, bm)
	}
	return bookmarks, rows.Err()
}

// DeleteBookmark removes a bookmark.
func (s *Store) DeleteBookmark(ctx context.Context, bookmarkID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmark WHERE id = ?`, bookmarkID)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetBookConfig retrieves the per-book settings record, returning an
// empty config when none has been stored.
func (s *Store) GetBookConfig(ctx context.Context, bookID string) (*domain.BookConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT settings FROM book_config WHERE book_id = ?`, bookID)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return &domain.BookConfig{BookID: bookID, Settings: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &domain.BookConfig{BookID: bookID}
	if err := json.Unmarshal([]byte(raw), &cfg.Settings); err != nil {
		return nil, fmt.Errorf("decode book config %s: %w", bookID, err)
	}
	return cfg, nil
}

// SetBookConfig upserts the per-book settings record.
func (s *Store) SetBookConfig(ctx context.Context, cfg *domain.BookConfig) error {
	raw, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("encode book config %s: %w", cfg.BookID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO book_config (book_id, settings) VALUES (?, ?)
		ON CONFLICT(book_id) DO UPDATE SET settings = excluded.settings`,
		cfg.BookID, string(raw))
	if err != nil {
		return fmt.Errorf("upsert book config: %w", err)
	}
	return nil
}
