package library

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// Database stores library snapshots in a SQLite file. It is the save/load
// boundary of the core: nothing in the catalog, directory or ledger touches it
// directly.
type Database struct {
	db *sql.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

// SchemaVersion is the snapshot schema this build reads and writes.
const SchemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            total_copies INTEGER NOT NULL CHECK (total_copies >= 1),
            copies_available INTEGER NOT NULL CHECK (copies_available BETWEEN 0 AND total_copies)
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            active_loan_book_id TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            member_id TEXT NOT NULL REFERENCES members(id),
            book_id TEXT NOT NULL REFERENCES books(id),
            borrowed_at INTEGER NOT NULL,
            due_date INTEGER NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, SchemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Save / Load
// ---------------------------------------------------------------------------

// Save replaces the stored snapshot with snap in one transaction.
func (d *Database) Save(snap Snapshot) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"loans", "members", "books"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	bookStmt, err := tx.Prepare(`INSERT INTO books(id,title,author,total_copies,copies_available) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer bookStmt.Close()
	for _, b := range snap.Books {
		if _, err := bookStmt.Exec(b.ID, b.Title, b.Author, b.TotalCopies, b.CopiesAvailable); err != nil {
			return fmt.Errorf("save book %q: %w", b.ID, err)
		}
	}

	memberStmt, err := tx.Prepare(`INSERT INTO members(id,name,active_loan_book_id) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer memberStmt.Close()
	for _, m := range snap.Members {
		if _, err := memberStmt.Exec(m.ID, m.Name, m.ActiveLoanBookID); err != nil {
			return fmt.Errorf("save member %q: %w", m.ID, err)
		}
	}

	loanStmt, err := tx.Prepare(`INSERT INTO loans(id,member_id,book_id,borrowed_at,due_date) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer loanStmt.Close()
	for _, l := range snap.Loans {
		if _, err := loanStmt.Exec(l.ID.String(), l.MemberID, l.BookID, l.BorrowedAt.UnixNano(), l.DueDate.UnixNano()); err != nil {
			return fmt.Errorf("save loan %s: %w", l.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('digest',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, digest(snap)); err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	return tx.Commit()
}

// Load reads the stored snapshot. Entities come back in the order they were
// saved. A digest mismatch means the file was edited outside the library and
// is reported as ErrIntegrityViolation.
func (d *Database) Load() (Snapshot, error) {
	var snap Snapshot

	rows, err := d.db.Query(`SELECT id,title,author,total_copies,copies_available FROM books ORDER BY seq`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.CopiesAvailable); err != nil {
			return Snapshot{}, err
		}
		snap.Books = append(snap.Books, b)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	mrows, err := d.db.Query(`SELECT id,name,active_loan_book_id FROM members ORDER BY seq`)
	if err != nil {
		return Snapshot{}, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var m Member
		if err := mrows.Scan(&m.ID, &m.Name, &m.ActiveLoanBookID); err != nil {
			return Snapshot{}, err
		}
		snap.Members = append(snap.Members, m)
	}
	if err := mrows.Err(); err != nil {
		return Snapshot{}, err
	}

	lrows, err := d.db.Query(`SELECT id,member_id,book_id,borrowed_at,due_date FROM loans ORDER BY seq`)
	if err != nil {
		return Snapshot{}, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var (
			l             Loan
			id            string
			borrowed, due int64
		)
		if err := lrows.Scan(&id, &l.MemberID, &l.BookID, &borrowed, &due); err != nil {
			return Snapshot{}, err
		}
		if l.ID, err = uuid.Parse(id); err != nil {
			return Snapshot{}, fmt.Errorf("%w: loan id %q: %w", ErrIntegrityViolation, id, err)
		}
		l.BorrowedAt = time.Unix(0, borrowed).UTC()
		l.DueDate = time.Unix(0, due).UTC()
		snap.Loans = append(snap.Loans, l)
	}
	if err := lrows.Err(); err != nil {
		return Snapshot{}, err
	}

	var stored string
	err = d.db.QueryRow(`SELECT value FROM meta WHERE key='digest'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if len(snap.Books)+len(snap.Members)+len(snap.Loans) > 0 {
			return Snapshot{}, fmt.Errorf("%w: snapshot rows present without a digest", ErrIntegrityViolation)
		}
	case err != nil:
		return Snapshot{}, err
	case stored != digest(snap):
		return Snapshot{}, fmt.Errorf("%w: snapshot digest mismatch", ErrIntegrityViolation)
	}
	return snap, nil
}

// digest is a BLAKE2b-256 over every stored field in save order.
func digest(snap Snapshot) string {
	h, _ := blake2b.New256(nil)
	for _, b := range snap.Books {
		writeStrings(h, "book", b.ID, b.Title, b.Author)
		writeInts(h, int64(b.TotalCopies), int64(b.CopiesAvailable))
	}
	for _, m := range snap.Members {
		writeStrings(h, "member", m.ID, m.Name, m.ActiveLoanBookID)
	}
	for _, l := range snap.Loans {
		writeStrings(h, "loan", l.ID.String(), l.MemberID, l.BookID)
		writeInts(h, l.BorrowedAt.UnixNano(), l.DueDate.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeStrings(h hash.Hash, ss ...string) {
	for _, s := range ss {
		writeInts(h, int64(len(s)))
		h.Write([]byte(s))
	}
}

func writeInts(h hash.Hash, ns ...int64) {
	var buf [8]byte
	for _, n := range ns {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
}
