package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCatalogAdd(t *testing.T) {
	c := NewCatalog()

	b, err := c.Add("B1", "Dune", "Herbert", 3)
	require.NoError(t, err)
	assert.Equal(t, Book{ID: "B1", Title: "Dune", Author: "Herbert", TotalCopies: 3, CopiesAvailable: 3}, b)

	_, err = c.Add("B1", "Other", "Someone", 1)
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = c.Add("B2", "Empty", "Nobody", 0)
	assert.ErrorIs(t, err, ErrInvalidCopies)
	assert.Equal(t, 1, c.Len())
}

func TestCatalogUpdateKeepsUnsuppliedFields(t *testing.T) {
	c := NewCatalog()
	_, err := c.Add("B1", "Dune", "Herbert", 1)
	require.NoError(t, err)

	b, err := c.Update("B1", BookUpdate{Title: ptr("Dune Messiah")})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", b.Title)
	assert.Equal(t, "Herbert", b.Author)
	assert.Equal(t, 1, b.TotalCopies)

	b, err = c.Update("B1", BookUpdate{Author: ptr("Frank Herbert"), Copies: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", b.Title)
	assert.Equal(t, "Frank Herbert", b.Author)
	assert.Equal(t, 4, b.TotalCopies)
	assert.Equal(t, 4, b.CopiesAvailable)

	_, err = c.Update("missing", BookUpdate{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogUpdateCopiesRespectsLoans(t *testing.T) {
	c := NewCatalog()
	_, err := c.Add("B1", "Dune", "Herbert", 3)
	require.NoError(t, err)
	require.NoError(t, c.adjustAvailability("B1", -2))

	_, err = c.Update("B1", BookUpdate{Copies: ptr(1)})
	assert.ErrorIs(t, err, ErrHasActiveLoans)

	b, _ := c.Get("B1")
	assert.Equal(t, 3, b.TotalCopies, "failed update must not change the book")
	assert.Equal(t, 1, b.CopiesAvailable)

	b, err = c.Update("B1", BookUpdate{Copies: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, b.TotalCopies)
	assert.Equal(t, 0, b.CopiesAvailable)

	_, err = c.Update("B1", BookUpdate{Copies: ptr(0), Title: ptr("changed")})
	assert.ErrorIs(t, err, ErrInvalidCopies)
	b, _ = c.Get("B1")
	assert.Equal(t, "Dune", b.Title)
}

func TestCatalogDelete(t *testing.T) {
	c := NewCatalog()
	_, _ = c.Add("B1", "Dune", "Herbert", 1)
	_, _ = c.Add("B2", "Emma", "Austen", 1)
	_, _ = c.Add("B3", "Ulysses", "Joyce", 1)

	require.NoError(t, c.adjustAvailability("B2", -1))
	assert.ErrorIs(t, c.Delete("B2"), ErrHasActiveLoans)
	assert.ErrorIs(t, c.Delete("nope"), ErrNotFound)

	require.NoError(t, c.Delete("B1"))
	_, err := c.Get("B1")
	assert.ErrorIs(t, err, ErrNotFound)

	var ids []string
	for _, b := range c.List() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"B2", "B3"}, ids)
}

func TestCatalogAdjustAvailabilityBounds(t *testing.T) {
	c := NewCatalog()
	_, _ = c.Add("B1", "Dune", "Herbert", 2)

	assert.ErrorIs(t, c.adjustAvailability("B1", 1), ErrAlreadyFull)
	require.NoError(t, c.adjustAvailability("B1", -1))
	require.NoError(t, c.adjustAvailability("B1", -1))
	assert.ErrorIs(t, c.adjustAvailability("B1", -1), ErrExhausted)
	assert.ErrorIs(t, c.adjustAvailability("B9", -1), ErrNotFound)

	b, _ := c.Get("B1")
	assert.Equal(t, 0, b.CopiesAvailable)
	assert.False(t, b.Available())
}

func TestCatalogListIsACopy(t *testing.T) {
	c := NewCatalog()
	_, _ = c.Add("B1", "Dune", "Herbert", 1)

	books := c.List()
	books[0].Title = "mutated"

	b, _ := c.Get("B1")
	assert.Equal(t, "Dune", b.Title)
}
