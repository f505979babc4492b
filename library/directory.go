package library

import (
	"fmt"
	"iter"
)

// Directory owns the library's Member records.
type Directory struct {
	members map[string]*Member
	order   []string
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{members: make(map[string]*Member)}
}

// Register creates a member.
func (d *Directory) Register(id, name string) (Member, error) {
	if _, ok := d.members[id]; ok {
		return Member{}, fmt.Errorf("member %q: %w", id, ErrDuplicateID)
	}
	m := &Member{ID: id, Name: name}
	d.members[id] = m
	d.order = append(d.order, id)
	return *m, nil
}

// Rename changes a member's display name.
func (d *Directory) Rename(id, name string) (Member, error) {
	m, ok := d.members[id]
	if !ok {
		return Member{}, fmt.Errorf("member %q: %w", id, ErrNotFound)
	}
	m.Name = name
	return *m, nil
}

// Get fetches a single member.
func (d *Directory) Get(id string) (Member, error) {
	m, ok := d.members[id]
	if !ok {
		return Member{}, fmt.Errorf("member %q: %w", id, ErrNotFound)
	}
	return *m, nil
}

// List returns all members in registration order.
func (d *Directory) List() []Member {
	members := make([]Member, 0, len(d.order))
	for m := range d.All() {
		members = append(members, m)
	}
	return members
}

// All yields members in registration order.
func (d *Directory) All() iter.Seq[Member] {
	return func(yield func(Member) bool) {
		for _, id := range d.order {
			if !yield(*d.members[id]) {
				return
			}
		}
	}
}

// setActiveLoan records (bookID != "") or clears (bookID == "") the member's
// single active loan.
func (d *Directory) setActiveLoan(id, bookID string) error {
	m, ok := d.members[id]
	if !ok {
		return fmt.Errorf("member %q: %w", id, ErrNotFound)
	}
	if bookID != "" && m.ActiveLoanBookID != "" {
		return fmt.Errorf("member %q holds %q: %w", id, m.ActiveLoanBookID, ErrAlreadyBorrowing)
	}
	m.ActiveLoanBookID = bookID
	return nil
}

func (d *Directory) restore(members []Member) {
	d.members = make(map[string]*Member, len(members))
	d.order = make([]string, 0, len(members))
	for _, m := range members {
		d.members[m.ID] = &m
		d.order = append(d.order, m.ID)
	}
}
