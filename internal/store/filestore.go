package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bookinventory/internal/catalog"
)

// DefaultPath is the document used when no path is configured.
const DefaultPath = "library_data.json"

const defaultPerm os.FileMode = 0o644

var (
	ErrWrite = errors.New("store write failed")
	ErrRead  = errors.New("store read failed")
)

// codec encodes with sorted keys and four-space indentation, and rejects
// unknown keys and mistyped values on decode.
var codec = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
	IndentionStep:          4,
}.Froze()

var _ catalog.Store = (*FileStore)(nil)

// FileStore keeps the whole catalog in a single JSON document keyed by book ID.
type FileStore struct {
	path   string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewFileStore creates a store backed by the document at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		logger: logger,
		tracer: otel.Tracer("bookinventory/store"),
	}
}

// Path returns the location of the backing document.
func (s *FileStore) Path() string {
	return s.path
}

// Save replaces the document with the given collection. The previous document
// stays intact until the new one is fully written.
func (s *FileStore) Save(ctx context.Context, books map[string]catalog.Book) error {
	ctx, span := s.tracer.Start(ctx, "store.save",
		trace.WithAttributes(
			attribute.String("store.path", s.path),
			attribute.Int("book.count", len(books)),
		),
	)
	defer span.End()

	records := make(map[string]catalog.Record, len(books))
	for id, book := range books {
		// The encoder would replace invalid bytes with U+FFFD, which can
		// merge distinct IDs into one key.
		if !validText(id, book) {
			return fail(span, fmt.Errorf("%w: book %q is not valid UTF-8", ErrWrite, id))
		}
		records[id] = book.Record()
	}

	data, err := codec.Marshal(records)
	if err != nil {
		return fail(span, fmt.Errorf("%w: encode: %w", ErrWrite, err))
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data, defaultPerm); err != nil {
		return fail(span, fmt.Errorf("%w: %w", ErrWrite, err))
	}

	s.logger.DebugContext(ctx, "store saved", "path", s.path, "books", len(books), "bytes", len(data))
	span.SetAttributes(attribute.Bool("save.success", true))
	return nil
}

// Load reads the collection back. A missing document yields an empty
// collection; anything that cannot be decoded into books is ErrRead.
func (s *FileStore) Load(ctx context.Context) (map[string]catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "store.load",
		trace.WithAttributes(attribute.String("store.path", s.path)),
	)
	defer span.End()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.InfoContext(ctx, "store not found, starting empty", "path", s.path)
		span.SetAttributes(attribute.Bool("store.exists", false))
		return make(map[string]catalog.Book), nil
	}
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %w", ErrRead, err))
	}

	var records map[string]catalog.Record
	if err := codec.Unmarshal(data, &records); err != nil {
		return nil, fail(span, fmt.Errorf("%w: decode %s: %w", ErrRead, s.path, err))
	}
	if records == nil {
		return nil, fail(span, fmt.Errorf("%w: %s does not hold a book mapping", ErrRead, s.path))
	}

	books := make(map[string]catalog.Book, len(records))
	for id, record := range records {
		book, err := catalog.FromRecord(record)
		if err != nil {
			return nil, fail(span, fmt.Errorf("%w: book %q: %w", ErrRead, id, err))
		}
		if book.ID != id {
			return nil, fail(span, fmt.Errorf("%w: book %q stored under key %q", ErrRead, book.ID, id))
		}
		books[id] = book
	}

	s.logger.DebugContext(ctx, "store loaded", "path", s.path, "books", len(books))
	span.SetAttributes(attribute.Int("books.loaded", len(books)))
	return books, nil
}

func validText(id string, book catalog.Book) bool {
	return utf8.ValidString(id) &&
		utf8.ValidString(book.ID) &&
		utf8.ValidString(book.Title) &&
		utf8.ValidString(book.Author)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place. An existing file keeps its permission bits; perm applies to a
// new one.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	if info, statErr := os.Stat(path); statErr == nil && info.Mode().IsRegular() {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
