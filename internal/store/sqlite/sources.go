package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// CreateSource inserts a new source.
// Returns store.ErrAlreadyExists when the URI is already registered.
func (s *Store) CreateSource(ctx context.Context, src *domain.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source (id, uri, is_active, created_at)
		VALUES (?, ?, ?, ?)`,
		src.ID, src.URI, boolToInt(src.IsActive), formatTime(src.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	s.notifier.Notify(store.TableSources)
	return nil
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uri, is_active, created_at FROM source WHERE id = ?`, id)

	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// ListSources returns all sources ordered by registration recency,
// newest first. That is the order the ingestion coordinator expects.
func (s *Store) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uri, is_active, created_at
		FROM source
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// SetSourceActive toggles scanning for a source without deleting it.
func (s *Store) SetSourceActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE source SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	s.notifier.Notify(store.TableSources)
	return nil
}

// DeleteSource removes a source together with its books and their
// dependent rows. Resumable progress for the source's books is archived
// first, so a re-registered source can pick up where it left off.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	bookIDs, err := s.bookIDsForSource(ctx, id)
	if err != nil {
		return err
	}

	if len(bookIDs) > 0 {
		if err := s.DeleteOrResetBooksProgress(ctx, bookIDs, 0); err != nil {
			return fmt.Errorf("archive progress for source %s: %w", id, err)
		}
		if err := s.DeleteBooks(ctx, bookIDs); err != nil {
			return fmt.Errorf("delete books for source %s: %w", id, err)
		}
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM source WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	s.notifier.Notify(store.TableSources, store.TableBooks, store.TableProgress)
	return nil
}

// bookIDsForSource returns the ids of all books registered under a source.
func (s *Store) bookIDsForSource(ctx context.Context, sourceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM book WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanSource scans a sql.Row (or sql.Rows via its Scan method) into a domain.Source.
func scanSource(scanner interface{ Scan(dest ...any) error }) (*domain.Source, error) {
	var src domain.Source
	var isActive int
	var createdAt string

	if err := scanner.Scan(&src.ID, &src.URI, &isActive, &createdAt); err != nil {
		return nil, err
	}

	src.IsActive = isActive != 0

	var err error
	src.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &src, nil
}
