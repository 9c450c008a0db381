// Package commit turns a settled payment into a recorded sale.
package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
	"go.uber.org/zap"
)

// SalesLedger is the authority that records sales.
type SalesLedger interface {
	// Commit records draft and returns the sale id. Submitting the same
	// IdempotencyKey twice must return the original sale.
	Commit(ctx context.Context, draft domain.SaleDraft) (string, error)
}

type ReceiptPrinter interface {
	Print(ctx context.Context, saleID string) error
}

type Committer struct {
	ledger  SalesLedger
	printer ReceiptPrinter
	timeout time.Duration
	logger  *zap.Logger
}

// NewCommitter wires the ledger and an optional receipt printer.
func NewCommitter(ledger SalesLedger, printer ReceiptPrinter, timeout time.Duration, logger *zap.Logger) *Committer {
	return &Committer{
		ledger:  ledger,
		printer: printer,
		timeout: timeout,
		logger:  logger,
	}
}

type Order struct {
	Lines       []domain.CartLine
	Totals      domain.Totals
	CustomerRef string
	OperatorID  string
}

// BuildDraft assembles the sale for a settled session. The session id is
// the idempotency key, so retrying a commit cannot record the sale twice.
func BuildDraft(order Order, session payment.Session, at time.Time) (domain.SaleDraft, error) {
	if session.Status != domain.PaymentStatusSuccess {
		return domain.SaleDraft{}, domain.ErrNotSettled
	}
	if len(order.Lines) == 0 {
		return domain.SaleDraft{}, domain.ErrEmptyCart
	}
	if !session.AmountDue.Equal(order.Totals.Total) {
		return domain.SaleDraft{}, fmt.Errorf("payment of %s does not match cart total %s: %w",
			session.AmountDue.StringFixed(2), order.Totals.Total.StringFixed(2), domain.ErrNotSettled)
	}

	items := make([]domain.SaleItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, domain.SaleItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal(),
		})
	}

	return domain.SaleDraft{
		IdempotencyKey: session.ID,
		Items:          items,
		Totals:         order.Totals,
		Payment:        session.Proof(),
		CustomerRef:    order.CustomerRef,
		OperatorID:     order.OperatorID,
		CreatedAt:      at,
	}, nil
}

// Commit submits draft to the ledger. Any failure is a commit error: the
// payment was taken, so the caller must keep the cart and session for a retry.
func (c *Committer) Commit(ctx context.Context, draft domain.SaleDraft) (domain.Sale, error) {
	ledgerCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	saleID, err := c.ledger.Commit(ledgerCtx, draft)
	if err != nil {
		c.logger.Error("sale commit failed",
			zap.Bool("alert", true),
			zap.String("idempotency_key", draft.IdempotencyKey),
			zap.String("payment_method", string(draft.Payment.Method)),
			zap.String("transaction_id", draft.Payment.TransactionID),
			zap.String("total", draft.Totals.Total.StringFixed(2)),
			zap.Error(err))
		return domain.Sale{}, domain.NewCommitFailed(err)
	}

	c.logger.Info("sale committed",
		zap.String("sale_id", saleID),
		zap.String("idempotency_key", draft.IdempotencyKey),
		zap.String("total", draft.Totals.Total.StringFixed(2)))
	return domain.Sale{ID: saleID, SaleDraft: draft}, nil
}

// PrintReceipt asks the printer for a receipt. A failure is only a warning;
// the sale is already recorded.
func (c *Committer) PrintReceipt(ctx context.Context, saleID string) error {
	if c.printer == nil {
		return nil
	}
	printCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.printer.Print(printCtx, saleID); err != nil {
		c.logger.Warn("receipt dispatch failed", zap.String("sale_id", saleID), zap.Error(err))
		return fmt.Errorf("failed to print receipt for sale %s: %w", saleID, err)
	}
	return nil
}
