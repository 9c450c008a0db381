// Package terminal is one operator's point of sale: it sequences catalog,
// cart, payment and sale commit, and checks the operator's capabilities on
// every command.
package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/clock"
	"github.com/fjod/go_pos/internal/commit"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const recentEvents = 50

type CartView struct {
	Lines       []domain.CartLine `json:"lines"`
	Totals      domain.Totals     `json:"totals"`
	CustomerRef string            `json:"customer_ref,omitempty"`
}

// CommitResult is a recorded sale. ReceiptErr is set when the receipt could
// not be dispatched; the sale stands regardless.
type CommitResult struct {
	Sale       domain.Sale
	ReceiptErr error
}

type Terminal struct {
	authority *auth.Authority
	catalog   *catalog.Service
	payments  *payment.Orchestrator
	committer *commit.Committer
	sched     clock.Scheduler
	logger    *zap.Logger

	mu   sync.Mutex
	caps *auth.Capabilities
	cart *cart.Cart

	evMu   sync.Mutex
	events []payment.Event

	searchMu   sync.Mutex
	lastSearch *SearchOutcome
}

// SearchOutcome is the result of the most recent debounced search.
type SearchOutcome struct {
	Filters  catalog.Filters
	Products []domain.ProductSnapshot
	Err      error
	At       time.Time
}

func New(
	authority *auth.Authority,
	products *catalog.Service,
	payments *payment.Orchestrator,
	committer *commit.Committer,
	sched clock.Scheduler,
	logger *zap.Logger,
) *Terminal {
	t := &Terminal{
		authority: authority,
		catalog:   products,
		payments:  payments,
		committer: committer,
		sched:     sched,
		logger:    logger,
		cart:      cart.New(),
	}
	payments.OnEvent(t.record)
	return t
}

// Login replaces the current operator with the one token identifies.
func (t *Terminal) Login(token string) (*auth.Capabilities, error) {
	caps, err := t.authority.Capabilities(token)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps = caps
	t.logger.Info("operator logged in", zap.String("operator_id", caps.OperatorID), zap.String("role", string(caps.Role)))
	return caps, nil
}

func (t *Terminal) Logout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.caps != nil {
		t.logger.Info("operator logged out", zap.String("operator_id", t.caps.OperatorID))
	}
	t.caps = nil
}

func (t *Terminal) Operator() *auth.Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

func (t *Terminal) Search(ctx context.Context, f catalog.Filters) ([]domain.ProductSnapshot, error) {
	if err := t.require(auth.ActionBrowse); err != nil {
		return nil, err
	}
	return t.catalog.Search(ctx, f)
}

// SearchAsync queues a search that runs once typing has paused. Only the
// last of a burst reaches the catalog; LastSearch reads its outcome.
func (t *Terminal) SearchAsync(f catalog.Filters) error {
	if err := t.require(auth.ActionBrowse); err != nil {
		return err
	}
	t.catalog.SearchDebounced(f, func(products []domain.ProductSnapshot, err error) {
		if err != nil {
			t.logger.Warn("debounced search failed", zap.String("query", f.Query), zap.Error(err))
		}
		t.searchMu.Lock()
		defer t.searchMu.Unlock()
		t.lastSearch = &SearchOutcome{Filters: f, Products: products, Err: err, At: t.sched.Now()}
	})
	return nil
}

func (t *Terminal) LastSearch() (SearchOutcome, bool) {
	t.searchMu.Lock()
	defer t.searchMu.Unlock()
	if t.lastSearch == nil {
		return SearchOutcome{}, false
	}
	return *t.lastSearch, true
}

func (t *Terminal) AddItem(productID int64, qty int) (CartView, error) {
	return t.mutateCart(func(c *cart.Cart) error {
		p, ok := t.catalog.Snapshot().Get(productID)
		if !ok {
			return domain.ErrProductNotFound
		}
		return c.AddItem(p, qty)
	})
}

func (t *Terminal) SetQuantity(productID int64, qty int) (CartView, error) {
	return t.mutateCart(func(c *cart.Cart) error {
		return c.SetQuantity(productID, qty)
	})
}

func (t *Terminal) RemoveItem(productID int64) (CartView, error) {
	return t.mutateCart(func(c *cart.Cart) error {
		return c.RemoveItem(productID)
	})
}

func (t *Terminal) SetCustomer(ref string) (CartView, error) {
	return t.mutateCart(func(c *cart.Cart) error {
		c.SetCustomer(ref)
		return nil
	})
}

// ClearCart empties the cart and drops the payment session, even a pending
// one. A taken but unrecorded payment can only be dropped by an operator
// allowed to discard paid carts.
func (t *Terminal) ClearCart() (CartView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireLocked(auth.ActionEditCart); err != nil {
		return CartView{}, err
	}
	if s, ok := t.payments.Active(); ok && s.Status == domain.PaymentStatusSuccess {
		if !t.caps.Allows(auth.ActionDiscardPaid) {
			return CartView{}, domain.ErrSaleUncommitted
		}
		t.logger.Warn("discarding paid but uncommitted cart",
			zap.String("session_id", s.ID),
			zap.String("operator_id", t.caps.OperatorID),
			zap.String("amount", s.AmountDue.StringFixed(2)))
	}
	t.payments.Discard()
	t.cart.Clear()
	return t.viewLocked(), nil
}

func (t *Terminal) Cart() CartView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

// StartCheckout opens a payment session for the current cart total.
func (t *Terminal) StartCheckout() (payment.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireAnyLocked(auth.ActionTakeCash, auth.ActionTakeMobileMoney); err != nil {
		return payment.Session{}, err
	}
	return t.beginLocked()
}

func (t *Terminal) PayCash(tendered decimal.Decimal) (payment.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireLocked(auth.ActionTakeCash); err != nil {
		return payment.Session{}, err
	}
	if err := t.ensureSessionLocked(); err != nil {
		return payment.Session{}, err
	}
	return t.payments.PayCash(tendered)
}

// PayMobileMoney does not hold the terminal lock across the gateway call;
// the orchestrator keeps the cart locked while the request is in flight.
func (t *Terminal) PayMobileMoney(ctx context.Context, phone string) (payment.Session, error) {
	t.mu.Lock()
	if err := t.requireLocked(auth.ActionTakeMobileMoney); err != nil {
		t.mu.Unlock()
		return payment.Session{}, err
	}
	if err := t.ensureSessionLocked(); err != nil {
		t.mu.Unlock()
		return payment.Session{}, err
	}
	t.mu.Unlock()
	return t.payments.PayMobileMoney(ctx, phone)
}

func (t *Terminal) CancelPayment() (payment.Session, error) {
	if err := t.require(auth.ActionCancelPayment); err != nil {
		return payment.Session{}, err
	}
	return t.payments.Cancel()
}

func (t *Terminal) Payment() (payment.Session, bool) {
	return t.payments.Active()
}

// Events returns the most recent payment events, oldest first.
func (t *Terminal) Events() []payment.Event {
	t.evMu.Lock()
	defer t.evMu.Unlock()
	return append([]payment.Event(nil), t.events...)
}

// CommitSale records the settled payment as a sale. If the ledger fails the
// cart and session are left exactly as they were so the commit can be
// retried on its own.
func (t *Terminal) CommitSale(ctx context.Context) (CommitResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireLocked(auth.ActionCommitSale); err != nil {
		return CommitResult{}, err
	}

	session, err := t.payments.Settled()
	if err != nil {
		return CommitResult{}, err
	}
	order := commit.Order{
		Lines:       t.cart.Lines(),
		Totals:      t.cart.Totals(),
		CustomerRef: t.cart.CustomerRef(),
		OperatorID:  t.caps.OperatorID,
	}
	draft, err := commit.BuildDraft(order, session, t.sched.Now())
	if err != nil {
		return CommitResult{}, err
	}

	sale, err := t.committer.Commit(ctx, draft)
	if err != nil {
		return CommitResult{}, err
	}

	sold := make([]catalog.StockDelta, 0, len(order.Lines))
	for _, l := range order.Lines {
		sold = append(sold, catalog.StockDelta{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	t.catalog.Reconcile(ctx, sold)
	if _, err := t.payments.MarkCommitted(session.ID, sale.ID); err != nil {
		t.logger.Error("failed to mark payment committed", zap.String("sale_id", sale.ID), zap.Error(err))
	}
	t.cart.Clear()

	return CommitResult{Sale: sale, ReceiptErr: t.committer.PrintReceipt(ctx, sale.ID)}, nil
}

func (t *Terminal) mutateCart(f func(c *cart.Cart) error) (CartView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireLocked(auth.ActionEditCart); err != nil {
		return CartView{}, err
	}
	if t.payments.InProgress() {
		return CartView{}, domain.ErrPaymentInProgress
	}
	if s, ok := t.payments.Active(); ok && s.Status == domain.PaymentStatusSuccess {
		return CartView{}, domain.ErrSaleUncommitted
	}
	if err := f(t.cart); err != nil {
		return CartView{}, err
	}
	// the amount due of an open session no longer matches the cart
	t.payments.Discard()
	return t.viewLocked(), nil
}

func (t *Terminal) ensureSessionLocked() error {
	if s, ok := t.payments.Active(); ok && s.Status != domain.PaymentStatusCommitted {
		return nil
	}
	_, err := t.beginLocked()
	return err
}

func (t *Terminal) beginLocked() (payment.Session, error) {
	if t.cart.IsEmpty() {
		return payment.Session{}, domain.ErrEmptyCart
	}
	return t.payments.Begin(t.cart.Totals().Total)
}

func (t *Terminal) viewLocked() CartView {
	return CartView{
		Lines:       t.cart.Lines(),
		Totals:      t.cart.Totals(),
		CustomerRef: t.cart.CustomerRef(),
	}
}

func (t *Terminal) require(a auth.Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requireLocked(a)
}

func (t *Terminal) requireLocked(a auth.Action) error {
	return t.caps.Require(a, t.sched.Now())
}

func (t *Terminal) requireAnyLocked(actions ...auth.Action) error {
	var err error
	for _, a := range actions {
		if err = t.requireLocked(a); err == nil {
			return nil
		}
	}
	return err
}

func (t *Terminal) record(ev payment.Event) {
	t.evMu.Lock()
	defer t.evMu.Unlock()
	t.events = append(t.events, ev)
	if len(t.events) > recentEvents {
		t.events = t.events[len(t.events)-recentEvents:]
	}
}
