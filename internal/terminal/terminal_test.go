package terminal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyFixture(t *testing.T, role auth.Role) *fixture {
	t.Helper()
	f := newFixture()
	require.NoError(t, f.stock(apple(10)))
	require.NoError(t, f.login(role))
	return f
}

func TestTerminal_RequiresOperator(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.stock(apple(10)))

	_, err := f.term.AddItem(1, 1)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.login(auth.RoleCashier))
	_, err = f.term.AddItem(1, 1)
	require.NoError(t, err)

	f.term.Logout()
	_, err = f.term.CommitSale(context.Background())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTerminal_LoginRejectsBadToken(t *testing.T) {
	f := newFixture()
	_, err := f.term.Login("garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	assert.Nil(t, f.term.Operator())
}

func TestTerminal_ExpiredLoginIsRechecked(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 1)
	require.NoError(t, err)

	f.sched.Advance(9 * time.Hour)
	_, err = f.term.AddItem(1, 1)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTerminal_TraineeCannotTakeMobileMoney(t *testing.T) {
	f := readyFixture(t, auth.RoleTrainee)
	_, err := f.term.AddItem(1, 1)
	require.NoError(t, err)

	_, err = f.term.PayMobileMoney(context.Background(), "0712345678")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.term.PayCash(decimal.NewFromInt(100))
	assert.NoError(t, err)
}

func TestTerminal_UnknownProduct(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(99, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestTerminal_StockExceededCarriesClamp(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 8)
	require.NoError(t, err)

	_, err = f.term.AddItem(1, 3)
	require.ErrorIs(t, err, domain.ErrStockExceeded)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, 10, derr.Available)
	assert.Equal(t, 8, f.term.Cart().Lines[0].Quantity)
}

func TestTerminal_SearchAsyncRunsLastOfBurst(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	before := len(f.source.seen())
	start := f.sched.Now()

	for _, q := range []string{"a", "ap", "app"} {
		_, err := f.term.Execute(context.Background(), SearchCatalogAsync{Filters: catalog.Filters{Query: q}})
		require.NoError(t, err)
		f.sched.Advance(100 * time.Millisecond)
	}
	_, ok := f.term.LastSearch()
	assert.False(t, ok, "nothing runs while typing continues")

	f.sched.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"app"}, f.source.seen()[before:])

	got, ok := f.term.LastSearch()
	require.True(t, ok)
	require.NoError(t, got.Err)
	assert.Equal(t, "app", got.Filters.Query)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Apple", got.Products[0].Name)
	assert.True(t, got.At.Equal(start.Add(500*time.Millisecond)), "runs one delay after the last keystroke")
}

func TestTerminal_SearchAsyncRequiresOperator(t *testing.T) {
	f := newFixture()
	err := f.term.SearchAsync(catalog.Filters{Query: "app"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	f.sched.Advance(time.Second)
	assert.Empty(t, f.source.seen())
}

func TestTerminal_CartLockedWhilePending(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 2)
	require.NoError(t, err)
	_, err = f.term.PayMobileMoney(context.Background(), "0712345678")
	require.NoError(t, err)

	_, err = f.term.AddItem(1, 1)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	_, err = f.term.SetQuantity(1, 1)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	_, err = f.term.RemoveItem(1)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)

	view, err := f.term.ClearCart()
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	_, ok := f.term.Payment()
	assert.False(t, ok, "clearing discards the pending session")

	f.sched.Advance(testPolicy.Bound())
	assert.Equal(t, 0, f.gateway.checkCount(), "discarded session is not polled")
}

func TestTerminal_GatewayCallDoesNotBlockTerminal(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 2)
	require.NoError(t, err)

	f.gateway.mu.Lock()
	f.gateway.initBlock = make(chan struct{})
	f.gateway.initEntered = make(chan struct{}, 1)
	f.gateway.mu.Unlock()

	type outcome struct {
		status domain.PaymentStatus
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := f.term.PayMobileMoney(context.Background(), "0712345678")
		done <- outcome{status: s.Status, err: err}
	}()
	<-f.gateway.initEntered

	viewed := make(chan CartView, 1)
	go func() { viewed <- f.term.Cart() }()
	select {
	case view := <-viewed:
		assert.Len(t, view.Lines, 1)
	case <-time.After(time.Second):
		t.Fatal("reading the cart blocked on the gateway call")
	}

	_, err = f.term.AddItem(1, 1)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)

	close(f.gateway.initBlock)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, domain.PaymentStatusPending, res.status)
}

func TestTerminal_CartChangeDropsOpenCheckout(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 1)
	require.NoError(t, err)
	s, err := f.term.StartCheckout()
	require.NoError(t, err)
	assert.True(t, s.AmountDue.Equal(decimal.NewFromInt(100)))

	_, err = f.term.AddItem(1, 1)
	require.NoError(t, err)
	_, ok := f.term.Payment()
	assert.False(t, ok)

	paid, err := f.term.PayCash(decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.True(t, paid.AmountDue.Equal(decimal.NewFromInt(200)))
}

func TestTerminal_StartCheckoutEmptyCart(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.StartCheckout()
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestTerminal_CommitFailurePreservesCartAndSession(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.SetCustomer("C-7")
	require.NoError(t, err)
	_, err = f.term.AddItem(1, 2)
	require.NoError(t, err)
	settled, err := f.term.PayCash(decimal.NewFromInt(200))
	require.NoError(t, err)

	f.ledger.err = errors.New("ledger unavailable")
	_, err = f.term.CommitSale(context.Background())
	require.ErrorIs(t, err, domain.ErrCommitFailed)

	view := f.term.Cart()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "C-7", view.CustomerRef)
	s, ok := f.term.Payment()
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusSuccess, s.Status)
	p, _ := f.catalog.Snapshot().Get(1)
	assert.Equal(t, 10, p.StockQty, "stock untouched until the ledger accepts")

	_, err = f.term.AddItem(1, 1)
	assert.ErrorIs(t, err, domain.ErrSaleUncommitted)
	_, err = f.term.ClearCart()
	assert.ErrorIs(t, err, domain.ErrSaleUncommitted)

	f.ledger.err = nil
	res, err := f.term.CommitSale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S-1", res.Sale.ID)
	require.Len(t, f.ledger.drafts, 2)
	assert.Equal(t, settled.ID, f.ledger.drafts[0].IdempotencyKey)
	assert.Equal(t, f.ledger.drafts[0].IdempotencyKey, f.ledger.drafts[1].IdempotencyKey)
	assert.Equal(t, "C-7", res.Sale.CustomerRef)
}

func TestTerminal_CommitSuccess(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 2)
	require.NoError(t, err)
	_, err = f.term.PayCash(decimal.NewFromInt(250))
	require.NoError(t, err)

	res, err := f.term.CommitSale(context.Background())
	require.NoError(t, err)
	assert.NoError(t, res.ReceiptErr)
	assert.Equal(t, []string{"S-1"}, f.printer.printed)
	assert.Equal(t, "op-1", res.Sale.OperatorID)

	assert.Empty(t, f.term.Cart().Lines)
	p, _ := f.catalog.Snapshot().Get(1)
	assert.Equal(t, 8, p.StockQty)
	s, _ := f.term.Payment()
	assert.Equal(t, domain.PaymentStatusCommitted, s.Status)
	assert.Equal(t, "S-1", s.SaleID)

	_, err = f.term.CommitSale(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotSettled)
}

func TestTerminal_ReceiptFailureIsOnlyAWarning(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	f.printer.err = errors.New("printer offline")
	_, err := f.term.AddItem(1, 1)
	require.NoError(t, err)
	_, err = f.term.PayCash(decimal.NewFromInt(100))
	require.NoError(t, err)

	res, err := f.term.Execute(context.Background(), CommitSale{})
	require.NoError(t, err)
	require.NotNil(t, res.Sale)
	assert.Contains(t, res.Warning, "printer offline")
	assert.Empty(t, f.term.Cart().Lines)
}

func TestTerminal_SupervisorCanDiscardPaidCart(t *testing.T) {
	f := readyFixture(t, auth.RoleSupervisor)
	_, err := f.term.AddItem(1, 1)
	require.NoError(t, err)
	_, err = f.term.PayCash(decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = f.term.ClearCart()
	require.NoError(t, err)
	_, ok := f.term.Payment()
	assert.False(t, ok)
}

func TestTerminal_EventsRecorded(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	_, err := f.term.AddItem(1, 1)
	require.NoError(t, err)
	_, err = f.term.PayCash(decimal.NewFromInt(100))
	require.NoError(t, err)

	events := f.term.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.PaymentStatusChoosingMethod, events[0].Status)
	assert.Equal(t, domain.PaymentStatusSuccess, events[1].Status)
}

type unknownCommand struct{}

func (unknownCommand) command() {}

func TestExecute(t *testing.T) {
	f := readyFixture(t, auth.RoleCashier)
	ctx := context.Background()

	res, err := f.term.Execute(ctx, AddItem{ProductID: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Cart)
	assert.Equal(t, 1, res.Cart.Lines[0].Quantity, "quantity defaults to one")

	res, err = f.term.Execute(ctx, SearchCatalog{})
	require.NoError(t, err)
	assert.Len(t, res.Products, 1)

	res, err = f.term.Execute(ctx, StartCheckout{})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, domain.PaymentStatusChoosingMethod, res.Session.Status)

	res, err = f.term.Execute(ctx, PayCash{Tendered: decimal.NewFromInt(50)})
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
	assert.Nil(t, res.Session)

	_, err = f.term.Execute(ctx, unknownCommand{})
	assert.Error(t, err)
}
