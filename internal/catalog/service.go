// internal/catalog/service.go
package catalog

import (
	"context"
	"iter"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, id, title, author string) error
	SearchByTitle(substring string) iter.Seq[Book]
	SearchByAuthor(substring string) iter.Seq[Book]
	IssueBook(ctx context.Context, id string) error
	ReturnBook(ctx context.Context, id string) error
	TotalCount() int
	IssuedCount() int
	Flush(ctx context.Context) error
}

// Store persists the whole collection. Save replaces everything previously
// stored; Load returns an empty map when nothing has been stored yet.
type Store interface {
	Save(ctx context.Context, books map[string]Book) error
	Load(ctx context.Context) (map[string]Book, error)
}
