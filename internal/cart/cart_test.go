package cart

import (
	"testing"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int64, price string, stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ID:        id,
		Name:      "product",
		SKU:       "SKU",
		UnitPrice: decimal.RequireFromString(price),
		StockQty:  stock,
	}
}

func TestAddItem_NewLineCapturesStock(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "100", 5), 2))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 5, lines[0].MaxStock)
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	c := New()
	p := product(1, "10", 5)
	require.NoError(t, c.AddItem(p, 2))
	require.NoError(t, c.AddItem(p, 3))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddItem_StockExceededNotApplied(t *testing.T) {
	c := New()
	p := product(1, "10", 3)
	require.NoError(t, c.AddItem(p, 2))

	err := c.AddItem(p, 2)
	require.ErrorIs(t, err, domain.ErrStockExceeded)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Available)
	assert.Equal(t, 2, c.Lines()[0].Quantity)
}

func TestAddItem_UsesCapturedStockNotLiveValue(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "10", 3), 1))

	// A later catalog refresh reports more stock; the line keeps its cap.
	err := c.AddItem(product(1, "10", 50), 5)
	require.ErrorIs(t, err, domain.ErrStockExceeded)
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestAddItem_OutOfStockAndInvalidQuantity(t *testing.T) {
	c := New()
	require.ErrorIs(t, c.AddItem(product(1, "10", 0), 1), domain.ErrStockExceeded)
	require.ErrorIs(t, c.AddItem(product(1, "10", 5), 0), domain.ErrInvalidQuantity)
	assert.True(t, c.IsEmpty())
}

func TestSetQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "10", 4), 1))
	require.NoError(t, c.AddItem(product(2, "20", 4), 1))

	require.NoError(t, c.SetQuantity(1, 4))
	assert.Equal(t, 4, c.Lines()[0].Quantity)

	err := c.SetQuantity(1, 9)
	require.ErrorIs(t, err, domain.ErrStockExceeded)
	assert.Equal(t, 4, c.Lines()[0].Quantity, "prior quantity kept")

	require.NoError(t, c.SetQuantity(1, 0))
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)

	require.ErrorIs(t, c.SetQuantity(99, 1), domain.ErrItemNotFound)
}

func TestRemoveItemAndClear(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "10", 4), 1))
	require.NoError(t, c.AddItem(product(2, "20", 4), 1))
	c.SetCustomer("cust-7")

	require.NoError(t, c.RemoveItem(1))
	require.ErrorIs(t, c.RemoveItem(1), domain.ErrItemNotFound)
	assert.Len(t, c.Lines(), 1)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.CustomerRef())
}

func TestTotals_RoundHalfUp(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "0.125", 10), 1))
	require.NoError(t, c.AddItem(product(2, "19.99", 10), 3))

	totals := c.Totals()
	// 0.13 + 59.97
	assert.Equal(t, "60.1", totals.Subtotal.String())
	assert.True(t, totals.Total.Equal(totals.Subtotal))
	assert.Equal(t, 4, totals.Items)
}

func TestTotals_SumOfRoundedLines(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "0.125", 10), 1))
	require.NoError(t, c.AddItem(product(2, "0.125", 10), 1))
	require.NoError(t, c.AddItem(product(3, "0.125", 10), 1))

	sum := decimal.Zero
	for _, l := range c.Lines() {
		assert.Equal(t, "0.13", l.Subtotal().StringFixed(2))
		sum = sum.Add(l.Subtotal())
	}
	totals := c.Totals()
	assert.Equal(t, "0.39", totals.Subtotal.StringFixed(2), "not the rounded raw sum 0.38")
	assert.True(t, totals.Total.Equal(sum))
}

func TestTotals_Empty(t *testing.T) {
	totals := New().Totals()
	assert.True(t, totals.Total.IsZero())
	assert.Equal(t, 0, totals.Items)
}

func TestLines_ReturnsCopy(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(product(1, "10", 4), 1))
	lines := c.Lines()
	lines[0].Quantity = 100
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}
