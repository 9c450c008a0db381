package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// PaymentProof is the method specific evidence attached to a sale.
type PaymentProof struct {
	Method         PaymentMethod    `json:"method"`
	AmountTendered *decimal.Decimal `json:"amount_tendered,omitempty"`
	Change         *decimal.Decimal `json:"change,omitempty"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	Phone          string           `json:"phone,omitempty"`
}

// SaleDraft is what gets submitted to the sales ledger.
type SaleDraft struct {
	IdempotencyKey string       `json:"idempotency_key"`
	Items          []SaleItem   `json:"items"`
	Totals         Totals       `json:"totals"`
	Payment        PaymentProof `json:"payment"`
	CustomerRef    string       `json:"customer_ref,omitempty"`
	OperatorID     string       `json:"operator_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Sale is a draft the ledger has accepted.
type Sale struct {
	ID string `json:"sale_id"`
	SaleDraft
}
