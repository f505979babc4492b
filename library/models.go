package library

import (
	"time"

	"github.com/google/uuid"
)

// LendingPeriod is how long a member may keep a borrowed book.
const LendingPeriod = 14 * 24 * time.Hour

// LoanPolicy selects how many active loans a member may hold.
type LoanPolicy int

const (
	// SingleLoan limits every member to one active loan.
	SingleLoan LoanPolicy = iota
	// MultiLoan places no per-member limit; only copy counts constrain borrowing.
	MultiLoan
)

func (p LoanPolicy) String() string {
	switch p {
	case SingleLoan:
		return "single"
	case MultiLoan:
		return "multi"
	default:
		return "unknown"
	}
}

// Book represents catalog metadata and current availability of a title.
// A single-copy book has TotalCopies == 1, so CopiesAvailable doubles as the
// available/borrowed flag.
type Book struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"total_copies"`
	CopiesAvailable int    `json:"copies_available"`
}

// Available reports whether at least one copy can be borrowed.
func (b Book) Available() bool { return b.CopiesAvailable > 0 }

// OnLoan is the number of copies currently lent out.
func (b Book) OnLoan() int { return b.TotalCopies - b.CopiesAvailable }

// Member represents a registered library member.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// ActiveLoanBookID is only maintained under SingleLoan.
	ActiveLoanBookID string `json:"active_loan_book_id,omitempty"`
}

// HasActiveLoan reports whether the member is marked as borrowing a book.
func (m Member) HasActiveLoan() bool { return m.ActiveLoanBookID != "" }

// Loan is an active lending of one copy of a book to a member.
type Loan struct {
	ID         uuid.UUID `json:"id"`
	MemberID   string    `json:"member_id"`
	BookID     string    `json:"book_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
	DueDate    time.Time `json:"due_date"`
}

// Overdue reports whether the loan is past its due date at t.
func (l Loan) Overdue(t time.Time) bool { return t.After(l.DueDate) }

// LoanView is a Loan joined with the names a caller needs to display it.
type LoanView struct {
	Loan
	MemberName string `json:"member_name"`
	BookTitle  string `json:"book_title"`
}

// BookStatus is a Book with its lending status resolved.
// NextDue is the earliest due date among the book's active loans and is zero
// when nothing is on loan.
type BookStatus struct {
	Book
	NextDue time.Time `json:"next_due,omitempty"`
}

// Borrowed reports whether no copy is left on the shelf.
func (s BookStatus) Borrowed() bool { return !s.Available() }

// BookUpdate carries the optional fields of a catalog update. Nil fields keep
// their prior value.
type BookUpdate struct {
	Title  *string
	Author *string
	Copies *int
}

// Snapshot is the serialisable state of a library: the three entity sets in
// insertion order.
type Snapshot struct {
	Books   []Book   `json:"books"`
	Members []Member `json:"members"`
	Loans   []Loan   `json:"loans"`
}
