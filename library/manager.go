package library

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ErrNoStore is returned by Save when the manager was built without a database.
var ErrNoStore = errors.New("no snapshot store configured")

// LibraryManager is the stateful core the CLI talks to. It owns one catalog,
// directory and ledger and serialises access to all three with a single lock.
type LibraryManager struct {
	mu sync.RWMutex

	catalog   *Catalog
	directory *Directory
	ledger    *Ledger
	query     *QueryFacade

	policy LoanPolicy
	now    func() time.Time
	log    *slog.Logger
	db     *Database
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithPolicy selects the lending policy. The default is SingleLoan.
func WithPolicy(p LoanPolicy) Option {
	return func(lm *LibraryManager) { lm.policy = p }
}

// WithClock replaces time.Now for due date calculation.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(lm *LibraryManager) { lm.log = l }
}

// NewLibraryManager returns an empty, purely in-memory library.
func NewLibraryManager(opts ...Option) *LibraryManager {
	lm := &LibraryManager{
		policy: SingleLoan,
		now:    time.Now,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(lm)
	}
	_ = lm.reset(NewCatalog(), NewDirectory(), nil) // empty state cannot fail
	return lm
}

// OpenLibraryManager opens (or creates) the SQLite snapshot at dbPath and
// restores the library saved there.
func OpenLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	lm := NewLibraryManager(opts...)
	lm.db = db

	snap, err := db.Load()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if err := lm.Restore(snap); err != nil {
		db.Close()
		return nil, err
	}
	return lm, nil
}

// Close closes the underlying database, if any. It does not save.
func (lm *LibraryManager) Close() error {
	if lm.db == nil {
		return nil
	}
	return lm.db.Close()
}

// Save writes the current state to the snapshot database.
func (lm *LibraryManager) Save() error {
	if lm.db == nil {
		return ErrNoStore
	}
	snap := lm.Snapshot()
	if err := lm.db.Save(snap); err != nil {
		return err
	}
	lm.log.Info("snapshot saved", "books", len(snap.Books), "members", len(snap.Members), "loans", len(snap.Loans))
	return nil
}

// Policy returns the lending policy in force.
func (lm *LibraryManager) Policy() LoanPolicy { return lm.policy }

func (lm *LibraryManager) reset(c *Catalog, d *Directory, loans []Loan) error {
	l := NewLedger(c, d, lm.policy, lm.now)
	l.loans = loans
	if err := l.checkIntegrity(); err != nil {
		return err
	}
	lm.catalog, lm.directory, lm.ledger = c, d, l
	lm.query = NewQueryFacade(c, d, l)
	return nil
}

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddBook(id, title, author string, copies int) (Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	b, err := lm.catalog.Add(id, title, author, copies)
	if err != nil {
		lm.log.Debug("add book rejected", "book_id", id, "error", err)
		return Book{}, err
	}
	lm.log.Info("book added", "book_id", id, "copies", copies)
	return b, nil
}

// UpdateBook applies the non-nil fields of u.
func (lm *LibraryManager) UpdateBook(id string, u BookUpdate) (Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	b, err := lm.catalog.Update(id, u)
	if err != nil {
		lm.log.Debug("update book rejected", "book_id", id, "error", err)
		return Book{}, err
	}
	lm.log.Info("book updated", "book_id", id)
	return b, nil
}

// DeleteBook removes a book that has no copies on loan.
func (lm *LibraryManager) DeleteBook(id string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.ledger.HasLoansFor(id) {
		lm.log.Debug("delete book rejected", "book_id", id, "error", ErrHasActiveLoans)
		return fmt.Errorf("book %q: %w", id, ErrHasActiveLoans)
	}
	if err := lm.catalog.Delete(id); err != nil {
		lm.log.Debug("delete book rejected", "book_id", id, "error", err)
		return err
	}
	lm.log.Info("book deleted", "book_id", id)
	return nil
}

func (lm *LibraryManager) GetBook(id string) (Book, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.catalog.Get(id)
}

func (lm *LibraryManager) GetAllBooks() []BookStatus {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.query.ListAllBooks()
}

// SearchBooks matches title or author case-insensitively. Matches are
// collected under the read lock so callers may mutate while iterating.
func (lm *LibraryManager) SearchBooks(q string) iter.Seq[BookStatus] {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return slices.Values(slices.Collect(lm.query.SearchBooks(q)))
}

// ------------------ Member helpers ------------------

func (lm *LibraryManager) AddMember(id, name string) (Member, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, err := lm.directory.Register(id, name)
	if err != nil {
		lm.log.Debug("register member rejected", "member_id", id, "error", err)
		return Member{}, err
	}
	lm.log.Info("member registered", "member_id", id)
	return m, nil
}

func (lm *LibraryManager) RenameMember(id, name string) (Member, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, err := lm.directory.Rename(id, name)
	if err != nil {
		lm.log.Debug("rename member rejected", "member_id", id, "error", err)
		return Member{}, err
	}
	lm.log.Info("member renamed", "member_id", id)
	return m, nil
}

func (lm *LibraryManager) GetMember(id string) (Member, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.directory.Get(id)
}

func (lm *LibraryManager) GetAllMembers() []Member {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.query.ListAllMembers()
}

// ------------------ Circulation ------------------

// Borrow lends bookID to memberID and returns the new loan.
func (lm *LibraryManager) Borrow(memberID, bookID string) (Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	loan, err := lm.ledger.Borrow(memberID, bookID)
	if err != nil {
		lm.logFailure("borrow", memberID, bookID, err)
		return Loan{}, err
	}
	lm.log.Info("book borrowed", "member_id", memberID, "book_id", bookID, "due_date", loan.DueDate)
	return loan, nil
}

// Return closes memberID's loan of bookID and returns it.
func (lm *LibraryManager) Return(memberID, bookID string) (Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	loan, err := lm.ledger.Return(memberID, bookID)
	if err != nil {
		lm.logFailure("return", memberID, bookID, err)
		return Loan{}, err
	}
	lm.log.Info("book returned", "member_id", memberID, "book_id", bookID, "overdue", loan.Overdue(lm.now()))
	return loan, nil
}

func (lm *LibraryManager) ActiveLoans() ([]LoanView, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.query.ListActiveLoans()
}

func (lm *LibraryManager) LoansFor(memberID string) ([]LoanView, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	if _, err := lm.directory.Get(memberID); err != nil {
		return nil, err
	}
	return lm.query.LoansFor(memberID)
}

// Overdue lists loans that were due before at.
func (lm *LibraryManager) Overdue(at time.Time) ([]LoanView, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.query.Overdue(at)
}

func (lm *LibraryManager) logFailure(op, memberID, bookID string, err error) {
	if IsIntegrityViolation(err) {
		lm.log.Error(op+" failed", "member_id", memberID, "book_id", bookID, "error", err)
		return
	}
	lm.log.Debug(op+" rejected", "member_id", memberID, "book_id", bookID, "error", err)
}

// ------------------ Snapshots ------------------

// Snapshot copies out the three entity sets.
func (lm *LibraryManager) Snapshot() Snapshot {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return Snapshot{
		Books:   lm.catalog.List(),
		Members: lm.directory.List(),
		Loans:   slices.Collect(lm.ledger.Active()),
	}
}

// Restore replaces the library with snap. The current state is kept when snap
// breaks any invariant.
func (lm *LibraryManager) Restore(snap Snapshot) error {
	c := NewCatalog()
	d := NewDirectory()
	if err := checkUnique(snap); err != nil {
		return err
	}
	c.restore(snap.Books)
	d.restore(snap.Members)

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.reset(c, d, slices.Clone(snap.Loans)); err != nil {
		lm.log.Error("restore rejected", "error", err)
		return err
	}
	lm.log.Info("library restored", "books", len(snap.Books), "members", len(snap.Members), "loans", len(snap.Loans))
	return nil
}

func checkUnique(snap Snapshot) error {
	books := make(map[string]bool, len(snap.Books))
	for _, b := range snap.Books {
		if books[b.ID] {
			return fmt.Errorf("%w: book %q appears twice", ErrIntegrityViolation, b.ID)
		}
		books[b.ID] = true
	}
	members := make(map[string]bool, len(snap.Members))
	for _, m := range snap.Members {
		if members[m.ID] {
			return fmt.Errorf("%w: member %q appears twice", ErrIntegrityViolation, m.ID)
		}
		members[m.ID] = true
	}
	return nil
}
