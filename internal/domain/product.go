package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is one product as last fetched from the catalog.
type ProductSnapshot struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	StockQty  int             `json:"stock_qty"`
}

// CartLine is a single product line in the cart.
// MaxStock is captured when the line is created and is never refreshed.
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	MaxStock    int             `json:"max_stock"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return RoundMoney(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Totals are the computed amounts for a cart.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	Items    int             `json:"items"`
}

// RoundMoney rounds to 2 decimal places, half away from zero.
// Amounts handled here are never negative so this is round-half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
