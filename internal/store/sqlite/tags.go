package sqlite

import (
	"context"
	"fmt"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// CreateTag inserts a new tag.
// Returns store.ErrAlreadyExists when the name is taken.
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tag (id, name) VALUES (?, ?)`, tag.ID, tag.Name)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}

	s.notifier.Notify(store.TableTags)
	return nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM tag ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag and its book memberships.
func (s *Store) DeleteTag(ctx context.Context, tagID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tag WHERE id = ?`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	s.notifier.Notify(store.TableTags)
	return nil
}

// TagBook attaches a tag to a book. Tagging twice is a no-op.
func (s *Store) TagBook(ctx context.Context, bookID, tagID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO book_tag_cross_ref (book_id, tag_id)
		VALUES (?, ?)`, bookID, tagID)
	if err != nil {
		return fmt.Errorf("tag book: %w", err)
	}

	s.notifier.Notify(store.TableTags)
	return nil
}

// UntagBook detaches a tag from a book.
func (s *Store) UntagBook(ctx context.Context, bookID, tagID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM book_tag_cross_ref WHERE book_id = ? AND tag_id = ?`,
		bookID, tagID)
	if err != nil {
		return fmt.Errorf("untag book: %w", err)
	}

	s.notifier.Notify(store.TableTags)
	return nil
}

// ListBookTags returns the tags attached to a book, ordered by name.
func (s *Store) ListBookTags(ctx context.Context, bookID string) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name
		FROM tag t
		JOIN book_tag_cross_ref x ON x.tag_id = t.id
		WHERE x.book_id = ?
		ORDER BY t.name ASC`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
