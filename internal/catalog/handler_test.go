package catalog_test

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookinventory/internal/catalog"
)

func runMenu(t *testing.T, svc catalog.Service, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := catalog.NewHandler(svc, strings.NewReader(input), &out).Run(context.Background())
	return out.String(), err
}

func TestHandler_Session(t *testing.T) {
	store := &memStore{}
	svc := newService(t, store)

	input := strings.Join([]string{
		"1", "1", "Dune", "Frank Herbert",
		"1", "1", "Other", "Someone",
		"1", "2", "The Go Programming Language", "Donovan",
		"2", "go",
		"3", "herbert",
		"2", "xyz",
		"4", "1",
		"4", "1",
		"5", "2",
		"6",
		"9",
		"7",
	}, "\n") + "\n"

	out, err := runMenu(t, svc, input)

	require.NoError(t, err)
	assert.Contains(t, out, "===== Library Book Inventory Manager =====")
	assert.Equal(t, 2, strings.Count(out, "Book added successfully."))
	assert.Contains(t, out, "Book ID already exists!")
	assert.Contains(t, out, "2 The Go Programming Language Donovan false")
	assert.Contains(t, out, "1 Dune Frank Herbert false")
	assert.Contains(t, out, "No books found.")
	assert.Contains(t, out, "Book issued successfully.")
	assert.Contains(t, out, "Book not available.")
	assert.Contains(t, out, "Invalid book ID or book not issued.")
	assert.Contains(t, out, "Total Books: 2")
	assert.Contains(t, out, "Issued Books: 1")
	assert.Contains(t, out, "Invalid choice!")
	assert.True(t, strings.HasSuffix(out, "Exiting...\n"))
	assert.True(t, store.books["1"].Issued)
}

func TestHandler_EndOfInputExits(t *testing.T) {
	svc := newService(t, &memStore{})

	out, err := runMenu(t, svc, "1\n1\nDune\n")

	require.NoError(t, err)
	assert.NotContains(t, out, "Book added successfully.")
	assert.Equal(t, 0, svc.TotalCount())
}

func TestHandler_TrimsChoiceButKeepsValues(t *testing.T) {
	store := &memStore{}
	svc := newService(t, store)

	_, err := runMenu(t, svc, " 1 \r\n id \r\n Title \r\nAuthor\r\n7\r\n")

	require.NoError(t, err)
	book, ok := store.books[" id "]
	require.True(t, ok, "book ID is taken verbatim")
	assert.Equal(t, " Title ", book.Title)
}

func TestHandler_WriteErrorFlushedOnExit(t *testing.T) {
	store := &mockStore{}
	store.On("Load", mock.Anything).Return(map[string]catalog.Book{}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errDiskFull).Once()
	store.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	svc := newService(t, store)

	out, err := runMenu(t, svc, "1\n1\nDune\nFrank Herbert\n7\n")

	require.NoError(t, err)
	assert.Contains(t, out, "But saving failed: failed to persist catalog: disk full")
	assert.Contains(t, out, "Pending changes saved.")
	store.AssertNumberOfCalls(t, "Save", 2)
}

func TestHandler_WriteErrorStillFailingOnExit(t *testing.T) {
	store := &mockStore{}
	store.On("Load", mock.Anything).Return(map[string]catalog.Book{}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errDiskFull)
	svc := newService(t, store)

	_, err := runMenu(t, svc, "1\n1\nDune\nFrank Herbert\n7\n")

	require.ErrorIs(t, err, errDiskFull)
	assert.ErrorContains(t, err, "unsaved changes")
}

func TestHandler_LongLinesAccepted(t *testing.T) {
	store := &memStore{}
	svc := newService(t, store)
	title := strings.Repeat("a", 70000)

	out, err := runMenu(t, svc, "1\n1\n"+title+"\nanon\n7\n")

	require.NoError(t, err)
	assert.Contains(t, out, "Book added successfully.")
	assert.Equal(t, title, store.books["1"].Title)
}

func TestHandler_OversizedLineIsReadError(t *testing.T) {
	svc := newService(t, &memStore{})
	title := strings.Repeat("a", 2<<20)

	out, err := runMenu(t, svc, "1\n1\n"+title+"\nanon\n7\n")

	require.ErrorIs(t, err, bufio.ErrTooLong)
	assert.ErrorContains(t, err, "read input")
	assert.NotContains(t, out, "Exiting...")
	assert.Zero(t, svc.TotalCount())
}

func TestHandler_OversizedLineStillFlushes(t *testing.T) {
	store := &mockStore{}
	store.On("Load", mock.Anything).Return(map[string]catalog.Book{}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errDiskFull).Once()
	store.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	svc := newService(t, store)

	out, err := runMenu(t, svc, "1\n1\nDune\nFrank Herbert\n"+strings.Repeat("7", 2<<20)+"\n")

	require.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Contains(t, out, "Pending changes saved.")
	store.AssertNumberOfCalls(t, "Save", 2)
}

func TestHandler_InvalidUTF8Rejected(t *testing.T) {
	store := &memStore{}
	svc := newService(t, store)

	out, err := runMenu(t, svc, "1\n\xff\nDune\nFrank Herbert\n7\n")

	require.NoError(t, err)
	assert.Contains(t, out, "Book fields must be valid UTF-8 text.")
	assert.NotContains(t, out, "Book added successfully.")
	assert.Zero(t, store.saves)
}
