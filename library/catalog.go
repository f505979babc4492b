package library

import (
	"fmt"
	"iter"
	"slices"
)

// Catalog owns the library's Book records.
type Catalog struct {
	books map[string]*Book
	order []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{books: make(map[string]*Book)}
}

// Add creates a book with every copy on the shelf. A book needs at least one
// copy; copies < 1 fails with ErrInvalidCopies.
func (c *Catalog) Add(id, title, author string, copies int) (Book, error) {
	if _, ok := c.books[id]; ok {
		return Book{}, fmt.Errorf("book %q: %w", id, ErrDuplicateID)
	}
	if copies < 1 {
		return Book{}, fmt.Errorf("book %q: %w", id, ErrInvalidCopies)
	}
	b := &Book{
		ID:              id,
		Title:           title,
		Author:          author,
		TotalCopies:     copies,
		CopiesAvailable: copies,
	}
	c.books[id] = b
	c.order = append(c.order, id)
	return *b, nil
}

// Update applies the supplied fields of u. Changing the copy count keeps the
// number on loan fixed, so the total cannot drop below it.
func (c *Catalog) Update(id string, u BookUpdate) (Book, error) {
	b, ok := c.books[id]
	if !ok {
		return Book{}, fmt.Errorf("book %q: %w", id, ErrNotFound)
	}

	available := b.CopiesAvailable
	total := b.TotalCopies
	if u.Copies != nil {
		if *u.Copies < 1 {
			return Book{}, fmt.Errorf("book %q: %w", id, ErrInvalidCopies)
		}
		if *u.Copies < b.OnLoan() {
			return Book{}, fmt.Errorf("book %q has %d copies on loan: %w", id, b.OnLoan(), ErrHasActiveLoans)
		}
		available = *u.Copies - b.OnLoan()
		total = *u.Copies
	}

	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	b.TotalCopies = total
	b.CopiesAvailable = available
	return *b, nil
}

// Delete removes a book. Books with copies on loan cannot be removed.
func (c *Catalog) Delete(id string) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("book %q: %w", id, ErrNotFound)
	}
	if b.OnLoan() > 0 {
		return fmt.Errorf("book %q: %w", id, ErrHasActiveLoans)
	}
	delete(c.books, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return nil
}

// Get fetches a single book.
func (c *Catalog) Get(id string) (Book, error) {
	b, ok := c.books[id]
	if !ok {
		return Book{}, fmt.Errorf("book %q: %w", id, ErrNotFound)
	}
	return *b, nil
}

// List returns all books in insertion order.
func (c *Catalog) List() []Book {
	books := make([]Book, 0, len(c.order))
	for b := range c.All() {
		books = append(books, b)
	}
	return books
}

// All yields books in insertion order without copying the whole catalog.
func (c *Catalog) All() iter.Seq[Book] {
	return func(yield func(Book) bool) {
		for _, id := range c.order {
			if !yield(*c.books[id]) {
				return
			}
		}
	}
}

// Len returns the number of books.
func (c *Catalog) Len() int { return len(c.order) }

// adjustAvailability moves delta copies between the shelf and loans.
// Negative delta lends copies out, positive delta brings them back.
func (c *Catalog) adjustAvailability(id string, delta int) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("book %q: %w", id, ErrNotFound)
	}
	next := b.CopiesAvailable + delta
	if next < 0 {
		return fmt.Errorf("book %q: %w", id, ErrExhausted)
	}
	if next > b.TotalCopies {
		return fmt.Errorf("book %q: %w", id, ErrAlreadyFull)
	}
	b.CopiesAvailable = next
	return nil
}

// restore replaces the catalog contents with books, keeping their order.
func (c *Catalog) restore(books []Book) {
	c.books = make(map[string]*Book, len(books))
	c.order = make([]string, 0, len(books))
	for _, b := range books {
		c.books[b.ID] = &b
		c.order = append(c.order, b.ID)
	}
}
