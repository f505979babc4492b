package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
)

var today = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func runScript(t *testing.T, mgr *library.LibraryManager, lines ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	in := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	sh := newShell(in, &out, mgr, false)
	sh.now = func() time.Time { return today }
	err := sh.run()
	return out.String(), err
}

func newTestManager(opts ...library.Option) *library.LibraryManager {
	return library.NewLibraryManager(append([]library.Option{library.WithClock(func() time.Time { return today })}, opts...)...)
}

func TestShellLendingSession(t *testing.T) {
	mgr := newTestManager()
	out, err := runScript(t, mgr,
		"add book", "B1", "Dune", "Herbert", "",
		"add member", "M1", "Ada",
		"search book", "dune",
		"borrow", "M1", "B1",
		"borrow", "M1", "B1",
		"list books",
		"delete book", "B1",
		"return", "M1", "B1",
		"return", "M1", "B1",
		"exit",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Book 'Dune' added with ID B1 (1 copies).")
	assert.Contains(t, out, "Member 'Ada' registered with ID M1.")
	assert.Contains(t, out, "ID: B1, Title: Dune, Author: Herbert, Status: Available")
	assert.Contains(t, out, "Book 'Dune' borrowed by Ada. Due date is 2026-11-01.")
	assert.Contains(t, out, "Error: member \"M1\" holds \"B1\": member already has a borrowed book")
	assert.Contains(t, out, "Status: Borrowed (Due: 2026-11-01)")
	assert.Contains(t, out, "cannot delete a borrowed book")
	assert.Contains(t, out, "Book 'Dune' returned by Ada.")
	assert.Contains(t, out, "no active loan for this member and book")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}

func TestShellUpdateBookBlankKeepsValues(t *testing.T) {
	mgr := newTestManager()
	_, err := mgr.AddBook("B1", "Dune", "Herbert", 1)
	require.NoError(t, err)

	_, err = runScript(t, mgr, "update book", "B1", "", "Frank Herbert", "3")
	require.NoError(t, err)

	b, err := mgr.GetBook("B1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, "Frank Herbert", b.Author)
	assert.Equal(t, 3, b.TotalCopies)
}

func TestShellRejectsBadInput(t *testing.T) {
	mgr := newTestManager()
	out, err := runScript(t, mgr,
		"add book", "B1", "Dune", "Herbert", "many",
		"add member", "",
		"fly",
		"save",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Error: invalid number of copies: many")
	assert.Contains(t, out, "Error: member ID cannot be empty")
	assert.Contains(t, out, "Unknown command.")
	assert.Contains(t, out, "no database configured")
	assert.Empty(t, mgr.GetAllBooks())
}

func TestShellListsOnEmptyLibrary(t *testing.T) {
	out, err := runScript(t, newTestManager(), "list books", "list members", "list loans", "overdue")
	require.NoError(t, err)
	assert.Contains(t, out, "No books in library.")
	assert.Contains(t, out, "No members registered.")
	assert.Contains(t, out, "No active loans.")
	assert.Contains(t, out, "No overdue loans.")
}

func TestShellMultiLoanMembers(t *testing.T) {
	mgr := newTestManager(library.WithPolicy(library.MultiLoan))
	out, err := runScript(t, mgr,
		"add book", "B1", "Dune", "Herbert", "2",
		"add member", "M1", "Ada",
		"borrow", "M1", "B1",
		"borrow", "M1", "B1",
		"list members",
		"member loans", "M1",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "ID: M1, Name: Ada, Books on loan: 2")
	assert.Equal(t, 2, strings.Count(out, "2026-11-01\n"), "both loans listed")
}

func TestShellSavesToDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	mgr, err := library.OpenLibraryManager(path)
	require.NoError(t, err)
	defer mgr.Close()

	out, err := runScript(t, mgr, "add member", "M1", "Ada", "save")
	require.NoError(t, err)
	assert.Contains(t, out, "Library saved.")

	reopened, err := library.OpenLibraryManager(path)
	require.NoError(t, err)
	defer reopened.Close()
	m, err := reopened.GetMember("M1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", m.Name)
}

func TestTruncateStringKeepsRunesWhole(t *testing.T) {
	got := truncateString(strings.Repeat("É", 17), 12)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("É", 9)+"...", got)

	assert.Equal(t, "Dune", truncateString("Dune", 12))
	assert.Equal(t, "Dun", truncateString("Dune", 3))
}
