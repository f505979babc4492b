package library

import (
	"iter"
	"strings"
	"time"
)

// QueryFacade answers read-only questions about a catalog, directory and ledger.
type QueryFacade struct {
	catalog   *Catalog
	directory *Directory
	ledger    *Ledger
}

// NewQueryFacade returns a read view over the given components.
func NewQueryFacade(c *Catalog, d *Directory, l *Ledger) *QueryFacade {
	return &QueryFacade{catalog: c, directory: d, ledger: l}
}

// SearchBooks lazily yields books whose title or author contains query,
// ignoring case. An empty query matches every book.
func (q *QueryFacade) SearchBooks(query string) iter.Seq[BookStatus] {
	needle := strings.ToLower(query)
	return func(yield func(BookStatus) bool) {
		for b := range q.catalog.All() {
			if !strings.Contains(strings.ToLower(b.Title), needle) &&
				!strings.Contains(strings.ToLower(b.Author), needle) {
				continue
			}
			if !yield(q.status(b)) {
				return
			}
		}
	}
}

// ListAllBooks returns every book with its lending status.
func (q *QueryFacade) ListAllBooks() []BookStatus {
	out := make([]BookStatus, 0, q.catalog.Len())
	for b := range q.catalog.All() {
		out = append(out, q.status(b))
	}
	return out
}

// ListAllMembers returns every member in registration order.
func (q *QueryFacade) ListAllMembers() []Member {
	return q.directory.List()
}

// ListActiveLoans returns every active loan joined with display names. The
// only possible error is ErrIntegrityViolation.
func (q *QueryFacade) ListActiveLoans() ([]LoanView, error) {
	return q.ledger.ListActive()
}

// LoansFor returns memberID's active loans joined with display names.
func (q *QueryFacade) LoansFor(memberID string) ([]LoanView, error) {
	loans := q.ledger.LoansFor(memberID)
	out := make([]LoanView, 0, len(loans))
	for _, ln := range loans {
		v, err := q.ledger.view(ln)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Overdue returns the active loans whose due date lies before at.
func (q *QueryFacade) Overdue(at time.Time) ([]LoanView, error) {
	all, err := q.ledger.ListActive()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, v := range all {
		if v.Overdue(at) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (q *QueryFacade) status(b Book) BookStatus {
	s := BookStatus{Book: b}
	if due, ok := q.ledger.NextDue(b.ID); ok {
		s.NextDue = due
	}
	return s
}
