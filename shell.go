package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"library-ledger/library"
)

const dateLayout = "2006-01-02"

// shell is the interactive menu. It trims and validates raw input, calls the
// library manager and renders the results.
type shell struct {
	sc          *bufio.Scanner
	out         io.Writer
	mgr         *library.LibraryManager
	interactive bool
	now         func() time.Time
}

func newShell(sc *bufio.Scanner, out io.Writer, mgr *library.LibraryManager, interactive bool) *shell {
	return &shell{sc: sc, out: out, mgr: mgr, interactive: interactive, now: time.Now}
}

// errQuit ends the session without an error.
var errQuit = errors.New("quit")

func (s *shell) run() error {
	if s.interactive {
		s.printf("Welcome to the Library Management System!\n")
		s.printf("Available commands:\n")
		s.printf("  Books: add book, update book, delete book, search book, list books\n")
		s.printf("  Members: add member, rename member, list members\n")
		s.printf("  Circulation: borrow, return, list loans, member loans, overdue\n")
		s.printf("  System: save, exit\n")
		s.printf("\nTips:\n")
		s.printf("  • For 'update book': leave a field blank to keep its current value\n")
	}

	handlers := map[string]func() error{
		"add book":      s.handleAddBook,
		"update book":   s.handleUpdateBook,
		"delete book":   s.handleDeleteBook,
		"search book":   s.handleSearchBooks,
		"list books":    s.handleListBooks,
		"add member":    s.handleAddMember,
		"rename member": s.handleRenameMember,
		"list members":  s.handleListMembers,
		"borrow":        s.handleBorrow,
		"return":        s.handleReturn,
		"list loans":    s.handleListLoans,
		"member loans":  s.handleMemberLoans,
		"overdue":       s.handleOverdue,
		"save":          s.handleSave,
		"exit":          func() error { return errQuit },
	}

	for {
		if s.interactive {
			s.printf("\n> ")
		}
		if !s.sc.Scan() {
			return s.sc.Err()
		}
		cmd := strings.ToLower(strings.TrimSpace(s.sc.Text()))
		if cmd == "" {
			continue
		}
		h, ok := handlers[cmd]
		if !ok {
			s.printf("Unknown command. Type one of the available commands listed above.\n")
			continue
		}
		err := h()
		switch {
		case errors.Is(err, errQuit):
			s.printf("Goodbye!\n")
			return nil
		case library.IsIntegrityViolation(err):
			s.printf("INTERNAL ERROR: %v\n", err)
			return err
		case err != nil:
			s.printf("Error: %v\n", err)
		}
	}
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// ask prints prompt on a terminal and reads one trimmed line.
func (s *shell) ask(prompt string) (string, bool) {
	if s.interactive {
		s.printf("%s", prompt)
	}
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

// askRequired rejects blank answers.
func (s *shell) askRequired(prompt, field string) (string, error) {
	v, ok := s.ask(prompt)
	if !ok {
		return "", errQuit
	}
	if v == "" {
		return "", fmt.Errorf("%s cannot be empty", field)
	}
	return v, nil
}

func parseCopies(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number of copies: %s", v)
	}
	return n, nil
}

// ------------------ Books ------------------

func (s *shell) handleAddBook() error {
	id, err := s.askRequired("Book ID: ", "book ID")
	if err != nil {
		return err
	}
	title, err := s.askRequired("Title: ", "title")
	if err != nil {
		return err
	}
	author, err := s.askRequired("Author: ", "author")
	if err != nil {
		return err
	}
	copiesStr, ok := s.ask("Copies (blank for 1): ")
	if !ok {
		return errQuit
	}
	copies := 1
	if copiesStr != "" {
		if copies, err = parseCopies(copiesStr); err != nil {
			return err
		}
	}

	b, err := s.mgr.AddBook(id, title, author, copies)
	if err != nil {
		return err
	}
	s.printf("Book '%s' added with ID %s (%d copies).\n", b.Title, b.ID, b.TotalCopies)
	return nil
}

func (s *shell) handleUpdateBook() error {
	id, err := s.askRequired("Book ID to update: ", "book ID")
	if err != nil {
		return err
	}
	if _, err := s.mgr.GetBook(id); err != nil {
		return err
	}

	var u library.BookUpdate
	title, ok := s.ask("New title (blank keeps current): ")
	if !ok {
		return errQuit
	}
	if title != "" {
		u.Title = &title
	}
	author, ok := s.ask("New author (blank keeps current): ")
	if !ok {
		return errQuit
	}
	if author != "" {
		u.Author = &author
	}
	copiesStr, ok := s.ask("New total copies (blank keeps current): ")
	if !ok {
		return errQuit
	}
	if copiesStr != "" {
		copies, err := parseCopies(copiesStr)
		if err != nil {
			return err
		}
		u.Copies = &copies
	}

	b, err := s.mgr.UpdateBook(id, u)
	if err != nil {
		return err
	}
	s.printf("Book %s updated: '%s' by %s.\n", b.ID, b.Title, b.Author)
	return nil
}

func (s *shell) handleDeleteBook() error {
	id, err := s.askRequired("Book ID to delete: ", "book ID")
	if err != nil {
		return err
	}
	if err := s.mgr.DeleteBook(id); err != nil {
		if errors.Is(err, library.ErrHasActiveLoans) {
			return fmt.Errorf("cannot delete a borrowed book (%w)", err)
		}
		return err
	}
	s.printf("Book %s deleted.\n", id)
	return nil
}

func (s *shell) handleSearchBooks() error {
	query, ok := s.ask("Title or author to search: ")
	if !ok {
		return errQuit
	}
	found := 0
	for b := range s.mgr.SearchBooks(query) {
		s.printBook(b)
		found++
	}
	if found == 0 {
		s.printf("No matching books found.\n")
	}
	return nil
}

func (s *shell) handleListBooks() error {
	books := s.mgr.GetAllBooks()
	if len(books) == 0 {
		s.printf("No books in library.\n")
		return nil
	}
	for _, b := range books {
		s.printBook(b)
	}
	return nil
}

func (s *shell) printBook(b library.BookStatus) {
	s.printf("ID: %s, Title: %s, Author: %s, Status: %s\n", b.ID, b.Title, b.Author, bookStatus(b))
}

func bookStatus(b library.BookStatus) string {
	switch {
	case b.OnLoan() == 0:
		if b.TotalCopies == 1 {
			return "Available"
		}
		return fmt.Sprintf("Available (%d copies)", b.TotalCopies)
	case b.Available():
		return fmt.Sprintf("Available (%d of %d, next due: %s)", b.CopiesAvailable, b.TotalCopies, b.NextDue.Format(dateLayout))
	default:
		return fmt.Sprintf("Borrowed (Due: %s)", b.NextDue.Format(dateLayout))
	}
}

// ------------------ Members ------------------

func (s *shell) handleAddMember() error {
	id, err := s.askRequired("Member ID: ", "member ID")
	if err != nil {
		return err
	}
	name, err := s.askRequired("Name: ", "name")
	if err != nil {
		return err
	}
	m, err := s.mgr.AddMember(id, name)
	if err != nil {
		return err
	}
	s.printf("Member '%s' registered with ID %s.\n", m.Name, m.ID)
	return nil
}

func (s *shell) handleRenameMember() error {
	id, err := s.askRequired("Member ID: ", "member ID")
	if err != nil {
		return err
	}
	name, err := s.askRequired("New name: ", "name")
	if err != nil {
		return err
	}
	m, err := s.mgr.RenameMember(id, name)
	if err != nil {
		return err
	}
	s.printf("Member %s is now '%s'.\n", m.ID, m.Name)
	return nil
}

func (s *shell) handleListMembers() error {
	members := s.mgr.GetAllMembers()
	if len(members) == 0 {
		s.printf("No members registered.\n")
		return nil
	}
	for _, m := range members {
		if s.mgr.Policy() == library.MultiLoan {
			loans, err := s.mgr.LoansFor(m.ID)
			if err != nil {
				return err
			}
			s.printf("ID: %s, Name: %s, Books on loan: %d\n", m.ID, m.Name, len(loans))
			continue
		}
		borrowed := "None"
		if m.HasActiveLoan() {
			borrowed = m.ActiveLoanBookID
		}
		s.printf("ID: %s, Name: %s, Borrowed Book ID: %s\n", m.ID, m.Name, borrowed)
	}
	return nil
}

// ------------------ Circulation ------------------

func (s *shell) askLoanPair(bookPrompt string) (memberID, bookID string, err error) {
	if memberID, err = s.askRequired("Member ID: ", "member ID"); err != nil {
		return "", "", err
	}
	if bookID, err = s.askRequired(bookPrompt, "book ID"); err != nil {
		return "", "", err
	}
	return memberID, bookID, nil
}

func (s *shell) handleBorrow() error {
	memberID, bookID, err := s.askLoanPair("Book ID to borrow: ")
	if err != nil {
		return err
	}
	loan, err := s.mgr.Borrow(memberID, bookID)
	if err != nil {
		return err
	}
	book, _ := s.mgr.GetBook(bookID)
	member, _ := s.mgr.GetMember(memberID)
	s.printf("Book '%s' borrowed by %s. Due date is %s.\n", book.Title, member.Name, loan.DueDate.Format(dateLayout))
	return nil
}

func (s *shell) handleReturn() error {
	memberID, bookID, err := s.askLoanPair("Book ID to return: ")
	if err != nil {
		return err
	}
	loan, err := s.mgr.Return(memberID, bookID)
	if err != nil {
		return err
	}
	book, _ := s.mgr.GetBook(bookID)
	member, _ := s.mgr.GetMember(memberID)
	s.printf("Book '%s' returned by %s.\n", book.Title, member.Name)
	if loan.Overdue(s.now()) {
		s.printf("It was due on %s.\n", loan.DueDate.Format(dateLayout))
	}
	return nil
}

func (s *shell) handleListLoans() error {
	loans, err := s.mgr.ActiveLoans()
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		s.printf("No active loans.\n")
		return nil
	}
	s.printLoans(loans)
	return nil
}

func (s *shell) handleMemberLoans() error {
	id, err := s.askRequired("Member ID: ", "member ID")
	if err != nil {
		return err
	}
	loans, err := s.mgr.LoansFor(id)
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		s.printf("Member has no borrowed book.\n")
		return nil
	}
	s.printLoans(loans)
	return nil
}

func (s *shell) handleOverdue() error {
	loans, err := s.mgr.Overdue(s.now())
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		s.printf("No overdue loans.\n")
		return nil
	}
	s.printLoans(loans)
	return nil
}

func (s *shell) printLoans(loans []library.LoanView) {
	s.printf("%-12s %-30s %-20s %s\n", "Book ID", "Title", "Member", "Due")
	s.printf("%s\n", strings.Repeat("-", 75))
	for _, l := range loans {
		s.printf("%-12s %-30s %-20s %s\n",
			truncateString(l.BookID, 12),
			truncateString(l.BookTitle, 30),
			truncateString(l.MemberName, 20),
			l.DueDate.Format(dateLayout))
	}
}

func (s *shell) handleSave() error {
	if err := s.mgr.Save(); err != nil {
		if errors.Is(err, library.ErrNoStore) {
			return errors.New("no database configured; start with --db to enable saving")
		}
		return err
	}
	s.printf("Library saved.\n")
	return nil
}

// truncateString shortens s to maxLength runes, marking the cut with "...".
func truncateString(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	r := []rune(s)
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
