package store

import "github.com/soundleaf/soundleaf-server/internal/domain"

// OrderBy names a sortable column of the library query surface.
type OrderBy string

// Sortable columns.
const (
	OrderByTitle       OrderBy = "title"
	OrderByAuthor      OrderBy = "author"
	OrderByDuration    OrderBy = "duration"
	OrderByRemaining   OrderBy = "remaining"
	OrderByLastUpdated OrderBy = "last_updated"
)

// LibraryQuery describes a category-filtered, sorted library view.
// An empty Authors list means no author restriction; an empty Filter
// matches everything.
type LibraryQuery struct {
	Categories  []domain.Category
	Filter      string
	Authors     []string
	OrderBy     OrderBy
	Descending  bool
	VisibleOnly bool
}

// BookWithProgress pairs a book with its live progress record for
// library views.
type BookWithProgress struct {
	Book     domain.Book
	Progress domain.BookProgress
}
