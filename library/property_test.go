package library

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

var (
	propBookIDs   = []string{"B0", "B1", "B2", "B3"}
	propMemberIDs = []string{"M0", "M1", "M2"}
)

func TestLedgerInvariantsHold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := rapid.SampledFrom([]LoanPolicy{SingleLoan, MultiLoan}).Draw(t, "policy")
		clock := &fakeClock{t: epoch}
		mgr := NewLibraryManager(WithPolicy(policy), WithClock(clock.now))

		for _, id := range propMemberIDs {
			if _, err := mgr.AddMember(id, "member "+id); err != nil {
				t.Fatalf("register %s: %v", id, err)
			}
		}

		t.Repeat(map[string]func(*rapid.T){
			"add": func(t *rapid.T) {
				id := rapid.SampledFrom(propBookIDs).Draw(t, "book")
				copies := rapid.IntRange(1, 3).Draw(t, "copies")
				_, err := mgr.AddBook(id, "title "+id, "author", copies)
				if err != nil && !errors.Is(err, ErrDuplicateID) {
					t.Fatalf("add: %v", err)
				}
			},
			"borrow": func(t *rapid.T) {
				m := rapid.SampledFrom(propMemberIDs).Draw(t, "member")
				b := rapid.SampledFrom(propBookIDs).Draw(t, "book")
				_, err := mgr.Borrow(m, b)
				if IsIntegrityViolation(err) {
					t.Fatalf("borrow: %v", err)
				}
			},
			"return": func(t *rapid.T) {
				m := rapid.SampledFrom(propMemberIDs).Draw(t, "member")
				b := rapid.SampledFrom(propBookIDs).Draw(t, "book")
				_, err := mgr.Return(m, b)
				if err != nil && !errors.Is(err, ErrNoActiveLoan) {
					t.Fatalf("return: %v", err)
				}
			},
			"borrow then return": func(t *rapid.T) {
				m := rapid.SampledFrom(propMemberIDs).Draw(t, "member")
				b := rapid.SampledFrom(propBookIDs).Draw(t, "book")
				before := mgr.Snapshot()
				if _, err := mgr.Borrow(m, b); err != nil {
					return
				}
				if _, err := mgr.Return(m, b); err != nil {
					t.Fatalf("return right after borrow: %v", err)
				}
				after := mgr.Snapshot()
				if fmt.Sprint(before.Books, before.Members) != fmt.Sprint(after.Books, after.Members) {
					t.Fatalf("round trip changed state:\n%v\n%v", before, after)
				}
				if len(before.Loans) != len(after.Loans) {
					t.Fatalf("round trip left %d loans, want %d", len(after.Loans), len(before.Loans))
				}
			},
			"delete": func(t *rapid.T) {
				b := rapid.SampledFrom(propBookIDs).Draw(t, "book")
				book, getErr := mgr.GetBook(b)
				err := mgr.DeleteBook(b)
				switch {
				case getErr != nil:
					if !errors.Is(err, ErrNotFound) {
						t.Fatalf("delete missing book: %v", err)
					}
				case book.OnLoan() > 0:
					if !errors.Is(err, ErrHasActiveLoans) {
						t.Fatalf("delete of loaned book: %v", err)
					}
				case err != nil:
					t.Fatalf("delete: %v", err)
				}
			},
			"resize": func(t *rapid.T) {
				b := rapid.SampledFrom(propBookIDs).Draw(t, "book")
				copies := rapid.IntRange(1, 4).Draw(t, "copies")
				_, err := mgr.UpdateBook(b, BookUpdate{Copies: &copies})
				if IsIntegrityViolation(err) {
					t.Fatalf("resize: %v", err)
				}
			},
			"": func(t *rapid.T) {
				checkInvariants(t, mgr)
			},
		})
	})
}

func checkInvariants(t *rapid.T, mgr *LibraryManager) {
	snap := mgr.Snapshot()
	perBook := map[string]int{}
	perMember := map[string]int{}
	for _, l := range snap.Loans {
		perBook[l.BookID]++
		perMember[l.MemberID]++
	}
	for _, b := range snap.Books {
		if b.CopiesAvailable < 0 || b.CopiesAvailable > b.TotalCopies {
			t.Fatalf("book %s: %d of %d available", b.ID, b.CopiesAvailable, b.TotalCopies)
		}
		if b.OnLoan() != perBook[b.ID] {
			t.Fatalf("book %s: %d out, %d loans", b.ID, b.OnLoan(), perBook[b.ID])
		}
	}
	if mgr.Policy() == SingleLoan {
		for _, m := range snap.Members {
			if perMember[m.ID] > 1 {
				t.Fatalf("member %s holds %d loans", m.ID, perMember[m.ID])
			}
			if (perMember[m.ID] == 1) != m.HasActiveLoan() {
				t.Fatalf("member %s mirror out of sync", m.ID)
			}
		}
	}
	if _, err := mgr.ActiveLoans(); err != nil {
		t.Fatalf("active loans: %v", err)
	}
}
