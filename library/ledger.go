package library

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Ledger records active loans and keeps the catalog's copy counts and the
// directory's borrowing state consistent with them.
type Ledger struct {
	catalog   *Catalog
	directory *Directory
	policy    LoanPolicy
	now       func() time.Time

	loans []Loan
}

// NewLedger coordinates lending between c and d under policy. A nil now
// defaults to time.Now.
func NewLedger(c *Catalog, d *Directory, policy LoanPolicy, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{catalog: c, directory: d, policy: policy, now: now}
}

// Policy returns the lending policy the ledger enforces.
func (l *Ledger) Policy() LoanPolicy { return l.policy }

// Borrow lends one copy of bookID to memberID, due LendingPeriod from now.
func (l *Ledger) Borrow(memberID, bookID string) (Loan, error) {
	member, err := l.directory.Get(memberID)
	if err != nil {
		return Loan{}, fmt.Errorf("member %q: %w", memberID, ErrMemberNotFound)
	}
	book, err := l.catalog.Get(bookID)
	if err != nil {
		return Loan{}, fmt.Errorf("book %q: %w", bookID, ErrBookNotFound)
	}
	if l.policy == SingleLoan && member.HasActiveLoan() {
		return Loan{}, fmt.Errorf("member %q holds %q: %w", memberID, member.ActiveLoanBookID, ErrMemberAtLoanLimit)
	}
	if !book.Available() {
		return Loan{}, fmt.Errorf("book %q: %w", bookID, ErrBookUnavailable)
	}

	if err := l.catalog.adjustAvailability(bookID, -1); err != nil {
		return Loan{}, fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	}
	if l.policy == SingleLoan {
		if err := l.directory.setActiveLoan(memberID, bookID); err != nil {
			// undo the copy we just took
			_ = l.catalog.adjustAvailability(bookID, 1)
			return Loan{}, fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
		}
	}

	at := l.now()
	loan := Loan{
		ID:         uuid.New(),
		MemberID:   memberID,
		BookID:     bookID,
		BorrowedAt: at,
		DueDate:    at.Add(LendingPeriod),
	}
	l.loans = append(l.loans, loan)
	return loan, nil
}

// Return closes the oldest active loan of bookID held by memberID.
func (l *Ledger) Return(memberID, bookID string) (Loan, error) {
	i := slices.IndexFunc(l.loans, func(ln Loan) bool {
		return ln.MemberID == memberID && ln.BookID == bookID
	})
	if i < 0 {
		return Loan{}, fmt.Errorf("member %q, book %q: %w", memberID, bookID, ErrNoActiveLoan)
	}
	loan := l.loans[i]

	if l.policy == SingleLoan {
		member, err := l.directory.Get(memberID)
		if err != nil || member.ActiveLoanBookID != bookID {
			return Loan{}, fmt.Errorf("%w: loan %s does not match member %q", ErrIntegrityViolation, loan.ID, memberID)
		}
	}
	if err := l.catalog.adjustAvailability(bookID, 1); err != nil {
		return Loan{}, fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	}
	if l.policy == SingleLoan {
		// checked above, cannot fail
		_ = l.directory.setActiveLoan(memberID, "")
	}

	l.loans = slices.Delete(l.loans, i, i+1)
	return loan, nil
}

// Active yields every active loan in the order it was created.
func (l *Ledger) Active() iter.Seq[Loan] {
	return slices.Values(l.loans)
}

// ListActive joins every active loan with its member name and book title.
func (l *Ledger) ListActive() ([]LoanView, error) {
	views := make([]LoanView, 0, len(l.loans))
	for _, ln := range l.loans {
		v, err := l.view(ln)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// LoansFor returns memberID's active loans.
func (l *Ledger) LoansFor(memberID string) []Loan {
	var out []Loan
	for _, ln := range l.loans {
		if ln.MemberID == memberID {
			out = append(out, ln)
		}
	}
	return out
}

// NextDue returns the earliest due date among bookID's loans.
func (l *Ledger) NextDue(bookID string) (time.Time, bool) {
	var due time.Time
	found := false
	for _, ln := range l.loans {
		if ln.BookID != bookID {
			continue
		}
		if !found || ln.DueDate.Before(due) {
			due = ln.DueDate
			found = true
		}
	}
	return due, found
}

// HasLoansFor reports whether any active loan references bookID.
func (l *Ledger) HasLoansFor(bookID string) bool {
	return slices.ContainsFunc(l.loans, func(ln Loan) bool { return ln.BookID == bookID })
}

func (l *Ledger) view(ln Loan) (LoanView, error) {
	m, err := l.directory.Get(ln.MemberID)
	if err != nil {
		return LoanView{}, fmt.Errorf("%w: loan %s: %w", ErrIntegrityViolation, ln.ID, err)
	}
	b, err := l.catalog.Get(ln.BookID)
	if err != nil {
		return LoanView{}, fmt.Errorf("%w: loan %s: %w", ErrIntegrityViolation, ln.ID, err)
	}
	return LoanView{Loan: ln, MemberName: m.Name, BookTitle: b.Title}, nil
}

// checkIntegrity verifies that books, members and loans agree with each other.
// Under SingleLoan an empty ActiveLoanBookID is filled in from the loans, so
// snapshots taken under MultiLoan can be restored as long as nobody holds two
// books. Under MultiLoan the field is cleared.
func (l *Ledger) checkIntegrity() error {
	onLoan := make(map[string]int)
	perMember := make(map[string][]string)
	seen := make(map[uuid.UUID]bool, len(l.loans))

	for _, ln := range l.loans {
		if seen[ln.ID] {
			return fmt.Errorf("%w: duplicate loan %s", ErrIntegrityViolation, ln.ID)
		}
		seen[ln.ID] = true
		if _, err := l.view(ln); err != nil {
			return err
		}
		onLoan[ln.BookID]++
		perMember[ln.MemberID] = append(perMember[ln.MemberID], ln.BookID)
	}

	for b := range l.catalog.All() {
		if b.TotalCopies < 1 || b.CopiesAvailable < 0 || b.CopiesAvailable > b.TotalCopies {
			return fmt.Errorf("%w: book %q has %d of %d copies available", ErrIntegrityViolation, b.ID, b.CopiesAvailable, b.TotalCopies)
		}
		if b.OnLoan() != onLoan[b.ID] {
			return fmt.Errorf("%w: book %q has %d copies out but %d loans", ErrIntegrityViolation, b.ID, b.OnLoan(), onLoan[b.ID])
		}
	}

	for m := range l.directory.All() {
		held := perMember[m.ID]
		if l.policy == MultiLoan {
			l.directory.members[m.ID].ActiveLoanBookID = ""
			continue
		}
		switch {
		case len(held) > 1:
			return fmt.Errorf("%w: member %q holds %d loans", ErrIntegrityViolation, m.ID, len(held))
		case len(held) == 0 && m.HasActiveLoan():
			return fmt.Errorf("%w: member %q marked as borrowing %q without a loan", ErrIntegrityViolation, m.ID, m.ActiveLoanBookID)
		case len(held) == 1 && m.HasActiveLoan() && m.ActiveLoanBookID != held[0]:
			return fmt.Errorf("%w: member %q marked as borrowing %q but holds %q", ErrIntegrityViolation, m.ID, m.ActiveLoanBookID, held[0])
		case len(held) == 1:
			l.directory.members[m.ID].ActiveLoanBookID = held[0]
		}
	}
	return nil
}
