// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID     = errors.New("book ID already exists")
	ErrNotAvailable    = errors.New("book not available")
	ErrInvalidReturn   = errors.New("invalid book ID or book not issued")
	ErrMalformedRecord = errors.New("malformed book record")
	ErrInvalidText     = errors.New("book fields must be valid UTF-8")
)

// Book represents a single catalog entry.
type Book struct {
	ID     string
	Title  string
	Author string
	Issued bool
}

// Record is the serialized form of a Book. Every field is required; a nil
// field means the key was absent (or null) in the source document.
type Record struct {
	ID     *string `json:"id"`
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Issued *bool   `json:"issued"`
}

// Record converts the book into its serialized form.
func (b Book) Record() Record {
	id, title, author, issued := b.ID, b.Title, b.Author, b.Issued
	return Record{
		ID:     &id,
		Title:  &title,
		Author: &author,
		Issued: &issued,
	}
}

// FromRecord rebuilds a Book from its serialized form.
func FromRecord(r Record) (Book, error) {
	switch {
	case r.ID == nil:
		return Book{}, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, "id")
	case r.Title == nil:
		return Book{}, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, "title")
	case r.Author == nil:
		return Book{}, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, "author")
	case r.Issued == nil:
		return Book{}, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, "issued")
	}

	return Book{
		ID:     *r.ID,
		Title:  *r.Title,
		Author: *r.Author,
		Issued: *r.Issued,
	}, nil
}
