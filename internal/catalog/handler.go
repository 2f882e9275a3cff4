// internal/catalog/handler.go
package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds a single line of input. Longer lines end the session
// with bufio.ErrTooLong.
const maxLineSize = 1 << 20

const menu = `
===== Library Book Inventory Manager =====
1. Add Book
2. Search by Title
3. Search by Author
4. Issue Book
5. Return Book
6. Reports
7. Exit
`

// Handler drives the interactive text menu on top of a Service.
type Handler struct {
	service Service
	in      *bufio.Scanner
	out     io.Writer

	// unsaved is set when a mutation succeeded in memory but its write failed.
	unsaved bool
}

func NewHandler(service Service, in io.Reader, out io.Writer) *Handler {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)
	return &Handler{
		service: service,
		in:      scanner,
		out:     out,
	}
}

// Run shows the menu until the user exits or input ends.
func (h *Handler) Run(ctx context.Context) error {
	for {
		fmt.Fprint(h.out, menu)

		choice, ok := h.prompt("Enter choice: ")
		if !ok {
			return h.stop(ctx)
		}

		var more bool
		switch strings.TrimSpace(choice) {
		case "1":
			more = h.handleAddBook(ctx)
		case "2":
			more = h.handleSearch("Enter title: ", h.service.SearchByTitle)
		case "3":
			more = h.handleSearch("Enter author: ", h.service.SearchByAuthor)
		case "4":
			more = h.handleIssueBook(ctx)
		case "5":
			more = h.handleReturnBook(ctx)
		case "6":
			more = h.handleReports()
		case "7":
			fmt.Fprintln(h.out, "Exiting...")
			return h.exit(ctx)
		default:
			fmt.Fprintln(h.out, "Invalid choice!")
			more = true
		}

		if !more {
			return h.stop(ctx)
		}
	}
}

func (h *Handler) handleAddBook(ctx context.Context) bool {
	id, ok := h.prompt("Book ID: ")
	if !ok {
		return false
	}
	title, ok := h.prompt("Title: ")
	if !ok {
		return false
	}
	author, ok := h.prompt("Author: ")
	if !ok {
		return false
	}

	err := h.service.AddBook(ctx, id, title, author)
	switch {
	case errors.Is(err, ErrDuplicateID):
		fmt.Fprintln(h.out, "Book ID already exists!")
	case errors.Is(err, ErrInvalidText):
		fmt.Fprintln(h.out, "Book fields must be valid UTF-8 text.")
	default:
		h.report(err, "Book added successfully.")
	}
	return true
}

func (h *Handler) handleSearch(label string, search func(string) iter.Seq[Book]) bool {
	query, ok := h.prompt(label)
	if !ok {
		return false
	}

	found := 0
	for book := range search(query) {
		fmt.Fprintln(h.out, book.ID, book.Title, book.Author, book.Issued)
		found++
	}
	if found == 0 {
		fmt.Fprintln(h.out, "No books found.")
	}
	return true
}

func (h *Handler) handleIssueBook(ctx context.Context) bool {
	id, ok := h.prompt("Book ID to issue: ")
	if !ok {
		return false
	}

	err := h.service.IssueBook(ctx, id)
	switch {
	case errors.Is(err, ErrNotAvailable):
		fmt.Fprintln(h.out, "Book not available.")
	default:
		h.report(err, "Book issued successfully.")
	}
	return true
}

func (h *Handler) handleReturnBook(ctx context.Context) bool {
	id, ok := h.prompt("Book ID to return: ")
	if !ok {
		return false
	}

	err := h.service.ReturnBook(ctx, id)
	switch {
	case errors.Is(err, ErrInvalidReturn):
		fmt.Fprintln(h.out, "Invalid book ID or book not issued.")
	default:
		h.report(err, "Book returned successfully.")
	}
	return true
}

func (h *Handler) handleReports() bool {
	fmt.Fprintln(h.out, "Total Books:", h.service.TotalCount())
	fmt.Fprintln(h.out, "Issued Books:", h.service.IssuedCount())
	return true
}

// report prints the outcome of a mutation whose domain checks passed. Any
// remaining error means the change is held in memory but was not saved.
func (h *Handler) report(err error, success string) {
	if err == nil {
		h.unsaved = false
		fmt.Fprintln(h.out, success)
		return
	}
	h.unsaved = true
	fmt.Fprintf(h.out, "%s But saving failed: %v\n", success, err)
}

// stop ends the session when input runs out. A read failure is returned
// alongside any error from exit.
func (h *Handler) stop(ctx context.Context) error {
	fmt.Fprintln(h.out)
	var readErr error
	if err := h.in.Err(); err != nil {
		readErr = fmt.Errorf("read input: %w", err)
	}
	return errors.Join(readErr, h.exit(ctx))
}

// exit retries the last failed write once before leaving the menu.
func (h *Handler) exit(ctx context.Context) error {
	if !h.unsaved {
		return nil
	}
	if err := h.service.Flush(ctx); err != nil {
		return fmt.Errorf("unsaved changes: %w", err)
	}
	h.unsaved = false
	fmt.Fprintln(h.out, "Pending changes saved.")
	return nil
}

func (h *Handler) prompt(label string) (string, bool) {
	fmt.Fprint(h.out, label)
	if !h.in.Scan() {
		return "", false
	}
	return strings.TrimSuffix(h.in.Text(), "\r"), true
}
