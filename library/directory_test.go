package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryRegister(t *testing.T) {
	d := NewDirectory()

	m, err := d.Register("M1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, Member{ID: "M1", Name: "Ada"}, m)

	_, err = d.Register("M1", "Grace")
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, _ = d.Register("M2", "Grace")
	members := d.List()
	require.Len(t, members, 2)
	assert.Equal(t, "M1", members[0].ID)
	assert.Equal(t, "M2", members[1].ID)
}

func TestDirectoryRename(t *testing.T) {
	d := NewDirectory()
	_, _ = d.Register("M1", "Ada")

	m, err := d.Rename("M1", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", m.Name)

	_, err = d.Rename("M9", "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectorySetActiveLoan(t *testing.T) {
	d := NewDirectory()
	_, _ = d.Register("M1", "Ada")

	require.NoError(t, d.setActiveLoan("M1", "B1"))
	assert.ErrorIs(t, d.setActiveLoan("M1", "B2"), ErrAlreadyBorrowing)

	m, _ := d.Get("M1")
	assert.Equal(t, "B1", m.ActiveLoanBookID)

	require.NoError(t, d.setActiveLoan("M1", ""))
	m, _ = d.Get("M1")
	assert.False(t, m.HasActiveLoan())

	assert.ErrorIs(t, d.setActiveLoan("M9", "B1"), ErrNotFound)
}
