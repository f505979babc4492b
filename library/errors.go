package library

import "errors"

// Catalog and directory errors
var (
	ErrDuplicateID      = errors.New("id already exists")
	ErrNotFound         = errors.New("not found")
	ErrHasActiveLoans   = errors.New("has active loans")
	ErrExhausted        = errors.New("no copies left")
	ErrAlreadyFull      = errors.New("all copies already on the shelf")
	ErrInvalidCopies    = errors.New("copy count must be at least 1")
	ErrAlreadyBorrowing = errors.New("member already has an active loan")
)

// Lending errors
var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrMemberAtLoanLimit = errors.New("member already has a borrowed book")
	ErrBookUnavailable   = errors.New("book is currently borrowed")
	ErrNoActiveLoan      = errors.New("no active loan for this member and book")
)

// ErrIntegrityViolation signals broken internal state, never a user mistake.
var ErrIntegrityViolation = errors.New("integrity violation")

// IsIntegrityViolation reports whether err stems from broken internal state.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}
