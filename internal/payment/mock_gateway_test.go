package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type step struct {
	result StatusResult
	err    error
}

// scriptedGateway answers status checks from script, repeating the last
// step once the script runs out.
type scriptedGateway struct {
	mu            sync.Mutex
	correlationID string
	initErr       error
	script        []step
	checks        int
	phones        []string

	// when block is set every check signals entered and waits for block
	block   chan struct{}
	entered chan struct{}
}

func (g *scriptedGateway) Initiate(_ context.Context, phone string, _ decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phones = append(g.phones, phone)
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.correlationID, nil
}

func (g *scriptedGateway) CheckStatus(_ context.Context, _ string) (StatusResult, error) {
	g.mu.Lock()
	g.checks++
	var s step
	switch {
	case len(g.script) == 0:
		s = step{result: StatusResult{Status: GatewayPending}}
	case g.checks <= len(g.script):
		s = g.script[g.checks-1]
	default:
		s = g.script[len(g.script)-1]
	}
	block, entered := g.block, g.entered
	g.mu.Unlock()

	if block != nil {
		entered <- struct{}{}
		<-block
	}
	return s.result, s.err
}

func (g *scriptedGateway) checkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}

type rejection struct {
	msg string
}

func (r rejection) Error() string {
	return "gateway rejected request: " + r.msg
}

func (r rejection) RejectionMessage() string {
	return r.msg
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) stale() []Event {
	var out []Event
	for _, ev := range l.all() {
		if ev.Stale {
			out = append(out, ev)
		}
	}
	return out
}

var testPolicy = PollPolicy{InitialDelay: 5 * time.Second, Interval: 5 * time.Second, MaxAttempts: 3}

func newTestOrchestrator(t *testing.T, gw Gateway) (*Orchestrator, *clock.Manual, *eventLog) {
	t.Helper()
	sched := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	o := NewOrchestrator(gw, sched, testPolicy, DefaultPhoneFormat, zap.NewNop())
	events := &eventLog{}
	o.OnEvent(events.listen)
	return o, sched, events
}

func pending() step {
	return step{result: StatusResult{Status: GatewayPending}}
}

func success(txID string) step {
	return step{result: StatusResult{Status: GatewaySuccess, TransactionID: txID}}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
