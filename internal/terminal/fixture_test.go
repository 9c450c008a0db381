package terminal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/clock"
	"github.com/fjod/go_pos/internal/commit"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testPolicy = payment.PollPolicy{InitialDelay: 5 * time.Second, Interval: 5 * time.Second, MaxAttempts: 3}

type fakeSource struct {
	mu       sync.Mutex
	products []domain.ProductSnapshot
	queries  []string
}

func (f *fakeSource) ListProducts(_ context.Context, filters catalog.Filters) ([]domain.ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, filters.Query)
	return f.products, nil
}

func (f *fakeSource) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeGateway struct {
	mu            sync.Mutex
	correlationID string
	initErr       error
	results       []payment.StatusResult
	checkErr      error
	checks        int

	// when initBlock is set Initiate signals initEntered and waits for initBlock
	initBlock   chan struct{}
	initEntered chan struct{}
}

func (g *fakeGateway) Initiate(context.Context, string, decimal.Decimal) (string, error) {
	g.mu.Lock()
	block, entered := g.initBlock, g.initEntered
	g.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.correlationID, nil
}

func (g *fakeGateway) CheckStatus(context.Context, string) (payment.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	if g.checkErr != nil {
		return payment.StatusResult{}, g.checkErr
	}
	if len(g.results) == 0 {
		return payment.StatusResult{Status: payment.GatewayPending}, nil
	}
	if g.checks > len(g.results) {
		return g.results[len(g.results)-1], nil
	}
	return g.results[g.checks-1], nil
}

func (g *fakeGateway) checkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}

type fakeLedger struct {
	mu     sync.Mutex
	err    error
	drafts []domain.SaleDraft
	sales  []domain.Sale
}

func (l *fakeLedger) Commit(_ context.Context, draft domain.SaleDraft) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drafts = append(l.drafts, draft)
	if l.err != nil {
		return "", l.err
	}
	id := fmt.Sprintf("S-%d", len(l.sales)+1)
	l.sales = append(l.sales, domain.Sale{ID: id, SaleDraft: draft})
	return id, nil
}

type fakePrinter struct {
	err     error
	printed []string
}

func (p *fakePrinter) Print(_ context.Context, saleID string) error {
	p.printed = append(p.printed, saleID)
	return p.err
}

type fixture struct {
	sched     *clock.Manual
	source    *fakeSource
	gateway   *fakeGateway
	ledger    *fakeLedger
	printer   *fakePrinter
	catalog   *catalog.Service
	authority *auth.Authority
	term      *Terminal
}

func newFixture() *fixture {
	sched := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		sched:   sched,
		source:  &fakeSource{},
		gateway: &fakeGateway{correlationID: "X"},
		ledger:  &fakeLedger{},
		printer: &fakePrinter{},
	}
	logger := zap.NewNop()
	f.catalog = catalog.NewService(f.source, nil, catalog.NewSnapshot(), sched, 300*time.Millisecond, logger)
	f.authority = auth.NewAuthority([]byte("secret"), sched.Now)
	payments := payment.NewOrchestrator(f.gateway, sched, testPolicy, payment.DefaultPhoneFormat, logger)
	committer := commit.NewCommitter(f.ledger, f.printer, time.Second, logger)
	f.term = New(f.authority, f.catalog, payments, committer, sched, logger)
	return f
}

func (f *fixture) stock(products ...domain.ProductSnapshot) error {
	f.source.mu.Lock()
	f.source.products = products
	f.source.mu.Unlock()
	_, err := f.catalog.Search(context.Background(), catalog.Filters{})
	return err
}

func (f *fixture) login(role auth.Role) error {
	token, err := f.authority.Issue("op-1", "Test Operator", role, 8*time.Hour)
	if err != nil {
		return err
	}
	_, err = f.term.Login(token)
	return err
}

func apple(stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{ID: 1, Name: "Apple", SKU: "A", UnitPrice: decimal.NewFromInt(100), StockQty: stock}
}
