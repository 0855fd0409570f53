package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soundleaf/soundleaf-server/internal/domain"
	"github.com/soundleaf/soundleaf-server/internal/store"
)

// CreateShelf inserts a new shelf.
// Returns store.ErrAlreadyExists when the name is taken.
func (s *Store) CreateShelf(ctx context.Context, shelf *domain.Shelf) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shelf (id, name, created_at) VALUES (?, ?, ?)`,
		shelf.ID, shelf.Name, formatTime(shelf.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert shelf: %w", err)
	}

	s.notifier.Notify(store.TableShelves)
	return nil
}

// ListShelves returns all shelves ordered by name.
func (s *Store) ListShelves(ctx context.Context) ([]domain.Shelf, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM shelf ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shelves []domain.Shelf
	for rows.Next() {
		var shelf domain.Shelf
		var createdAt string
		if err := rows.Scan(&shelf.ID, &shelf.Name, &createdAt); err != nil {
			return nil, err
		}
		shelf.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		shelves = append(shelves, shelf)
	}
	return shelves, rows.Err()
}

// DeleteShelf removes a shelf and its book memberships.
func (s *Store) DeleteShelf(ctx context.Context, shelfID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shelf WHERE id = ?`, shelfID)
	if err != nil {
		return fmt.Errorf("delete shelf: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	s.notifier.Notify(store.TableShelves)
	return nil
}

// AddBookToShelf creates a book↔shelf membership. Adding the same book
// twice is a no-op.
func (s *Store) AddBookToShelf(ctx context.Context, bookID, shelfID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO book_shelf_cross_ref (book_id, shelf_id)
		VALUES (?, ?)`, bookID, shelfID)
	if err != nil {
		return fmt.Errorf("add book to shelf: %w", err)
	}

	s.notifier.Notify(store.TableShelves)
	return nil
}

// RemoveBookFromShelf drops a book↔shelf membership.
func (s *Store) RemoveBookFromShelf(ctx context.Context, bookID, shelfID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM book_shelf_cross_ref WHERE book_id = ? AND shelf_id = ?`,
		bookID, shelfID)
	if err != nil {
		return fmt.Errorf("remove book from shelf: %w", err)
	}

	s.notifier.Notify(store.TableShelves)
	return nil
}

// ListShelfBooks returns the books on a shelf ordered by title.
func (s *Store) ListShelfBooks(ctx context.Context, shelfID string) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns(bookColumns, "b")+`
		FROM book b
		JOIN book_shelf_cross_ref x ON x.book_id = b.id
		WHERE x.shelf_id = ?
		ORDER BY b.title_fold ASC`, shelfID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBooks(rows)
}

// collectBooks drains a book result set.
func collectBooks(rows *sql.Rows) ([]domain.Book, error) {
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
