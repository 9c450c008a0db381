// Package cart holds the in-progress line items of one checkout.
package cart

import (
	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Cart is not safe for concurrent use; the terminal serializes access to it.
type Cart struct {
	lines       []domain.CartLine
	customerRef string
}

func New() *Cart {
	return &Cart{}
}

// AddItem merges qty into the product's line, creating the line (and
// capturing the product's stock as MaxStock) if needed. If the resulting
// quantity would exceed MaxStock nothing is changed.
func (c *Cart) AddItem(p domain.ProductSnapshot, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	if i := c.indexOf(p.ID); i >= 0 {
		line := &c.lines[i]
		requested := line.Quantity + qty
		if requested > line.MaxStock {
			return domain.NewStockExceeded(p.ID, requested, line.MaxStock)
		}
		line.Quantity = requested
		return nil
	}

	if qty > p.StockQty {
		return domain.NewStockExceeded(p.ID, qty, max(p.StockQty, 0))
	}
	c.lines = append(c.lines, domain.CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		SKU:         p.SKU,
		UnitPrice:   p.UnitPrice,
		Quantity:    qty,
		MaxStock:    p.StockQty,
	})
	return nil
}

// SetQuantity replaces a line's quantity. qty <= 0 removes the line; a qty
// above the line's MaxStock is rejected and the prior quantity is kept.
func (c *Cart) SetQuantity(productID int64, qty int) error {
	i := c.indexOf(productID)
	if i < 0 {
		return domain.ErrItemNotFound
	}
	if qty <= 0 {
		c.removeAt(i)
		return nil
	}
	if qty > c.lines[i].MaxStock {
		return domain.NewStockExceeded(productID, qty, c.lines[i].MaxStock)
	}
	c.lines[i].Quantity = qty
	return nil
}

func (c *Cart) RemoveItem(productID int64) error {
	i := c.indexOf(productID)
	if i < 0 {
		return domain.ErrItemNotFound
	}
	c.removeAt(i)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
	c.customerRef = ""
}

func (c *Cart) SetCustomer(ref string) {
	c.customerRef = ref
}

func (c *Cart) CustomerRef() string {
	return c.customerRef
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Totals is a pure function of the current lines.
func (c *Cart) Totals() domain.Totals {
	return ComputeTotals(c.lines)
}

// ComputeTotals sums the rounded line subtotals, so a recorded sale's lines
// always add up to its total.
func ComputeTotals(lines []domain.CartLine) domain.Totals {
	subtotal := decimal.Zero
	items := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
		items += l.Quantity
	}
	return domain.Totals{
		Subtotal: subtotal,
		Total:    subtotal,
		Items:    items,
	}
}

func (c *Cart) indexOf(productID int64) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}
