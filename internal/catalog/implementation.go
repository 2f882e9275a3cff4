// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "bookinventory/catalog"

// service implements the Service interface.
type service struct {
	store  Store
	books  map[string]Book
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
	ops    metric.Int64Counter
}

// Option configures the catalog service.
type Option func(*service)

// WithLogger sets the structured logger used by the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMeter sets the meter the operation counter is registered on.
func WithMeter(meter metric.Meter) Option {
	return func(s *service) {
		s.meter = meter
	}
}

// NewService creates a catalog service and hydrates it from the store.
// A store that cannot be read aborts construction.
func NewService(ctx context.Context, store Store, opts ...Option) (Service, error) {
	s := &service{
		store:  store,
		books:  make(map[string]Book),
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	ops, err := s.meter.Int64Counter("catalog.operations",
		metric.WithDescription("Catalog mutations by operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	s.ops = ops

	books, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	maps.Copy(s.books, books)

	s.logger.InfoContext(ctx, "catalog loaded", "books", len(s.books), "issued", s.IssuedCount())
	return s, nil
}

// AddBook inserts a new, not issued book.
func (s *service) AddBook(ctx context.Context, id, title, author string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book",
		trace.WithAttributes(attribute.String("book.id", id)),
	)
	defer span.End()

	if !utf8.ValidString(id) || !utf8.ValidString(title) || !utf8.ValidString(author) {
		return s.finish(ctx, span, "add", ErrInvalidText)
	}
	if _, exists := s.books[id]; exists {
		return s.finish(ctx, span, "add", ErrDuplicateID)
	}

	s.books[id] = Book{
		ID:     id,
		Title:  title,
		Author: author,
	}
	return s.finish(ctx, span, "add", s.persist(ctx))
}

// SearchByTitle yields books whose title contains substring, ignoring case.
func (s *service) SearchByTitle(substring string) iter.Seq[Book] {
	return s.search(substring, func(b Book) string { return b.Title })
}

// SearchByAuthor yields books whose author contains substring, ignoring case.
func (s *service) SearchByAuthor(substring string) iter.Seq[Book] {
	return s.search(substring, func(b Book) string { return b.Author })
}

// search walks the collection in ascending ID order on every iteration, so
// the sequence reflects the collection at the time it is ranged over.
func (s *service) search(substring string, field func(Book) string) iter.Seq[Book] {
	needle := strings.ToLower(substring)
	return func(yield func(Book) bool) {
		for _, id := range slices.Sorted(maps.Keys(s.books)) {
			book := s.books[id]
			if !strings.Contains(strings.ToLower(field(book)), needle) {
				continue
			}
			if !yield(book) {
				return
			}
		}
	}
}

// IssueBook lends out a book that exists and is not already issued.
func (s *service) IssueBook(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.issue_book",
		trace.WithAttributes(attribute.String("book.id", id)),
	)
	defer span.End()

	book, ok := s.books[id]
	if !ok || book.Issued {
		return s.finish(ctx, span, "issue", ErrNotAvailable)
	}

	book.Issued = true
	s.books[id] = book
	return s.finish(ctx, span, "issue", s.persist(ctx))
}

// ReturnBook marks an issued book as available again.
func (s *service) ReturnBook(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.return_book",
		trace.WithAttributes(attribute.String("book.id", id)),
	)
	defer span.End()

	book, ok := s.books[id]
	if !ok || !book.Issued {
		return s.finish(ctx, span, "return", ErrInvalidReturn)
	}

	book.Issued = false
	s.books[id] = book
	return s.finish(ctx, span, "return", s.persist(ctx))
}

// TotalCount returns the number of books in the catalog.
func (s *service) TotalCount() int {
	return len(s.books)
}

// IssuedCount returns the number of books currently lent out.
func (s *service) IssuedCount() int {
	n := 0
	for _, book := range s.books {
		if book.Issued {
			n++
		}
	}
	return n
}

// Flush writes the current collection to the store again. It is the retry
// path after a mutation whose write failed.
func (s *service) Flush(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "catalog.flush")
	defer span.End()

	return s.finish(ctx, span, "flush", s.persist(ctx))
}

func (s *service) persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.books); err != nil {
		// The in-memory change is kept; memory and store now differ.
		s.logger.WarnContext(ctx, "catalog diverged from store", "books", len(s.books), "error", err)
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	s.logger.DebugContext(ctx, "catalog persisted", "books", len(s.books))
	return nil
}

// finish records the outcome of a mutation on the span and the operation
// counter, and returns err unchanged.
func (s *service) finish(ctx context.Context, span trace.Span, op string, err error) error {
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("catalog.outcome", outcome))
	if outcome == "write_error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}

	s.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, ErrNotAvailable):
		return "not_available"
	case errors.Is(err, ErrInvalidReturn):
		return "invalid_return"
	case errors.Is(err, ErrInvalidText):
		return "invalid_text"
	default:
		return "write_error"
	}
}
