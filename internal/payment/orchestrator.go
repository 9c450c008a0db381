// Package payment drives the payment of a checkout: cash settles
// synchronously, mobile money is confirmed by a bounded poll of the gateway.
package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_pos/internal/clock"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Orchestrator struct {
	gateway Gateway
	poller  *Poller
	sched   clock.Scheduler
	phone   PhoneFormat
	logger  *zap.Logger

	mu         sync.Mutex
	active     *Session
	run        *PollRun
	initiating bool
	listeners  []Listener
}

func NewOrchestrator(gateway Gateway, sched clock.Scheduler, policy PollPolicy, phone PhoneFormat, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		gateway: gateway,
		poller:  NewPoller(gateway, sched, policy, logger),
		sched:   sched,
		phone:   phone,
		logger:  logger,
	}
}

// OnEvent registers l for session events. Listeners run outside the
// orchestrator's lock and may call back into it.
func (o *Orchestrator) OnEvent(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Begin starts a new session for amountDue, superseding the current one.
// Results still arriving for a superseded session are discarded. A settled
// but uncommitted session cannot be superseded.
func (o *Orchestrator) Begin(amountDue decimal.Decimal) (Session, error) {
	o.mu.Lock()
	if o.active != nil && o.active.Status == domain.PaymentStatusSuccess {
		o.mu.Unlock()
		return Session{}, domain.NewIllegalTransition(domain.PaymentStatusSuccess, domain.PaymentStatusChoosingMethod)
	}
	if o.initiating {
		o.mu.Unlock()
		return Session{}, domain.ErrPaymentInProgress
	}
	if o.active != nil && o.active.Status == domain.PaymentStatusPending {
		o.logger.Warn("superseding pending mobile money session",
			zap.String("session_id", o.active.ID),
			zap.String("correlation_id", o.active.CorrelationID))
	}
	o.stopRunLocked()

	s := &Session{
		ID:        uuid.NewString(),
		AmountDue: domain.RoundMoney(amountDue),
		Status:    domain.PaymentStatusIdle,
		StartedAt: o.sched.Now(),
	}
	_ = o.transitionLocked(s, domain.PaymentStatusChoosingMethod, "")
	o.active = s
	ev := o.eventLocked(s, 0, "")
	out := s.clone()
	o.mu.Unlock()

	o.emit(ev)
	return out, nil
}

// PayCash settles the active session with cash. Tendering less than the
// amount due leaves the session untouched.
func (o *Orchestrator) PayCash(tendered decimal.Decimal) (Session, error) {
	o.mu.Lock()
	s, err := o.payableLocked()
	if err != nil {
		o.mu.Unlock()
		return Session{}, err
	}
	tendered = domain.RoundMoney(tendered)
	if tendered.LessThan(s.AmountDue) {
		o.mu.Unlock()
		return Session{}, domain.NewInsufficientPayment(tendered, s.AmountDue)
	}

	o.active = s
	s.Method = domain.PaymentMethodCash
	s.AmountTendered = tendered
	s.Change = tendered.Sub(s.AmountDue)
	if s.Status == domain.PaymentStatusChoosingMethod {
		_ = o.transitionLocked(s, domain.PaymentStatusCashReady, "")
	}
	if err := o.transitionLocked(s, domain.PaymentStatusSuccess, "cash received"); err != nil {
		o.mu.Unlock()
		return Session{}, err
	}
	ev := o.eventLocked(s, 0, "")
	out := s.clone()
	o.mu.Unlock()

	o.logger.Info("cash payment settled",
		zap.String("session_id", out.ID),
		zap.String("amount_due", out.AmountDue.StringFixed(2)),
		zap.String("change", out.Change.StringFixed(2)))
	o.emit(ev)
	return out, nil
}

// PayMobileMoney validates phone, asks the gateway to charge it and, once
// the gateway accepts, leaves the session pending while the poller confirms.
func (o *Orchestrator) PayMobileMoney(ctx context.Context, phone string) (Session, error) {
	normalized, err := o.phone.Normalize(phone)
	if err != nil {
		return Session{}, err
	}

	o.mu.Lock()
	s, err := o.payableLocked()
	if err != nil {
		o.mu.Unlock()
		return Session{}, err
	}
	o.active = s
	sessionID, amount := s.ID, s.AmountDue
	o.initiating = true
	o.mu.Unlock()

	correlationID, initErr := o.gateway.Initiate(ctx, normalized, amount)

	o.mu.Lock()
	o.initiating = false
	s = o.active
	if s == nil || s.ID != sessionID || s.Status != domain.PaymentStatusChoosingMethod {
		o.mu.Unlock()
		o.logger.Warn("session changed while initiating mobile money",
			zap.String("session_id", sessionID),
			zap.String("correlation_id", correlationID))
		return Session{}, domain.ErrNoActiveSession
	}

	s.Method = domain.PaymentMethodMobileMoney
	s.Phone = normalized
	if initErr != nil {
		msg := initErr.Error()
		var rejected RejectionMessage
		if errors.As(initErr, &rejected) {
			msg = rejected.RejectionMessage()
		}
		s.Reason = msg
		_ = o.transitionLocked(s, domain.PaymentStatusFailed, msg)
		ev := o.eventLocked(s, 0, msg)
		o.mu.Unlock()

		o.logger.Warn("mobile money initiation failed", zap.String("session_id", sessionID), zap.Error(initErr))
		o.emit(ev)
		return Session{}, domain.NewGatewayInitiation(msg, initErr)
	}

	s.CorrelationID = correlationID
	s.Attempts = 0
	if err := o.transitionLocked(s, domain.PaymentStatusPending, ""); err != nil {
		o.mu.Unlock()
		return Session{}, err
	}
	o.run = o.poller.Start(s.ID, correlationID, o.applyCheck)
	ev := o.eventLocked(s, 0, "")
	out := s.clone()
	o.mu.Unlock()

	o.logger.Info("mobile money payment pending",
		zap.String("session_id", out.ID),
		zap.String("correlation_id", correlationID))
	o.emit(ev)
	return out, nil
}

// Cancel abandons the active session locally. The gateway is not told; a
// result that still arrives for it is discarded.
func (o *Orchestrator) Cancel() (Session, error) {
	o.mu.Lock()
	s := o.active
	if s == nil {
		o.mu.Unlock()
		return Session{}, domain.ErrNoActiveSession
	}
	if err := o.transitionLocked(s, domain.PaymentStatusCancelled, "cancelled by operator"); err != nil {
		o.mu.Unlock()
		return Session{}, err
	}
	s.Reason = "cancelled by operator"
	o.stopRunLocked()
	ev := o.eventLocked(s, s.Attempts, s.Reason)
	out := s.clone()
	o.mu.Unlock()

	o.emit(ev)
	return out, nil
}

// Discard drops the active session without recording anything.
func (o *Orchestrator) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRunLocked()
	if o.active != nil {
		o.logger.Debug("payment session discarded",
			zap.String("session_id", o.active.ID),
			zap.String("status", o.active.Status.String()))
	}
	o.active = nil
}

// Active returns a copy of the current session.
func (o *Orchestrator) Active() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return Session{}, false
	}
	return o.active.clone(), true
}

// InProgress reports whether a mobile money request is being initiated or
// awaits confirmation.
func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initiating || (o.active != nil && o.active.Status == domain.PaymentStatusPending)
}

// Settled returns the active session if it is ready to be committed.
func (o *Orchestrator) Settled() (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return Session{}, domain.ErrNoActiveSession
	}
	switch o.active.Status {
	case domain.PaymentStatusSuccess:
	case domain.PaymentStatusTimedOut:
		return Session{}, domain.ErrPaymentUnconfirmed
	default:
		return Session{}, domain.ErrNotSettled
	}
	return o.active.clone(), nil
}

// MarkCommitted records that sessionID has been turned into sale saleID.
func (o *Orchestrator) MarkCommitted(sessionID, saleID string) (Session, error) {
	o.mu.Lock()
	s := o.active
	if s == nil || s.ID != sessionID {
		o.mu.Unlock()
		return Session{}, domain.ErrNoActiveSession
	}
	if err := o.transitionLocked(s, domain.PaymentStatusCommitted, saleID); err != nil {
		o.mu.Unlock()
		return Session{}, err
	}
	s.SaleID = saleID
	ev := o.eventLocked(s, s.Attempts, "")
	out := s.clone()
	o.mu.Unlock()

	o.emit(ev)
	return out, nil
}

// applyCheck is the poller's only way to change a session. Results are
// applied only while they target the active session, its current
// correlation id, and that session is still pending.
func (o *Orchestrator) applyCheck(c Check) bool {
	o.mu.Lock()
	s := o.active
	if s == nil || s.ID != c.SessionID || s.CorrelationID != c.CorrelationID || s.Status != domain.PaymentStatusPending {
		o.mu.Unlock()
		o.logger.Warn("discarding stale mobile money result",
			zap.String("session_id", c.SessionID),
			zap.String("correlation_id", c.CorrelationID),
			zap.Int("attempt", c.Attempt),
			zap.String("gateway_status", string(c.Result.Status)),
			zap.Bool("expired", c.Expired))
		o.emit(Event{
			SessionID: c.SessionID,
			Attempt:   c.Attempt,
			Message:   "late result discarded",
			Stale:     true,
			At:        o.sched.Now(),
		})
		return false
	}

	if c.Attempt > s.Attempts {
		s.Attempts = c.Attempt
	}

	next := domain.PaymentStatusPending
	var note string
	switch {
	case c.Expired:
		next = domain.PaymentStatusTimedOut
	case c.Err != nil:
		note = domain.ErrGatewayPoll.Message
		if c.Last {
			next = domain.PaymentStatusTimedOut
		}
	case c.Result.Status == GatewaySuccess:
		next = domain.PaymentStatusSuccess
		s.TransactionID = c.Result.TransactionID
	case c.Result.Status == GatewayFailed, c.Result.Status == GatewayCancelled:
		next = domain.PaymentStatusFailed
		note = c.Result.Reason
		if note == "" {
			note = "payment " + string(c.Result.Status)
		}
		s.Reason = note
	default:
		if c.Last {
			next = domain.PaymentStatusTimedOut
		}
	}
	if next == domain.PaymentStatusTimedOut {
		note = domain.ErrPaymentUnconfirmed.Message
		s.Reason = note
	}

	_ = o.transitionLocked(s, next, note)
	if next != domain.PaymentStatusPending {
		o.run = nil
	}
	ev := o.eventLocked(s, c.Attempt, note)
	o.mu.Unlock()

	if next != domain.PaymentStatusPending {
		o.logger.Info("mobile money payment resolved",
			zap.String("session_id", c.SessionID),
			zap.String("correlation_id", c.CorrelationID),
			zap.String("status", next.String()),
			zap.Int("attempts", c.Attempt))
	}
	o.emit(ev)
	return next == domain.PaymentStatusPending
}

// payableLocked returns the session a payment applies to. After a failed,
// timed out or cancelled attempt that is a fresh successor which is not yet
// active: the caller installs it only once the payment is accepted, so a
// rejected tender leaves the old record in place.
func (o *Orchestrator) payableLocked() (*Session, error) {
	s := o.active
	if s == nil {
		return nil, domain.ErrNoActiveSession
	}
	if o.initiating || s.Status == domain.PaymentStatusPending {
		return nil, domain.ErrPaymentInProgress
	}
	switch s.Status {
	case domain.PaymentStatusFailed, domain.PaymentStatusTimedOut, domain.PaymentStatusCancelled:
		// retrying after a failed attempt starts over with a fresh session
		fresh := &Session{
			ID:        uuid.NewString(),
			AmountDue: s.AmountDue,
			Status:    domain.PaymentStatusIdle,
			StartedAt: o.sched.Now(),
		}
		_ = o.transitionLocked(fresh, domain.PaymentStatusChoosingMethod, "retry of "+s.ID)
		return fresh, nil
	case domain.PaymentStatusChoosingMethod, domain.PaymentStatusCashReady:
		return s, nil
	default:
		return nil, domain.NewIllegalTransition(s.Status, domain.PaymentStatusPending)
	}
}

func (o *Orchestrator) transitionLocked(s *Session, to domain.PaymentStatus, note string) error {
	if !domain.CanTransitionTo(s.Status, to) {
		return domain.NewIllegalTransition(s.Status, to)
	}
	s.History = append(s.History, Transition{From: s.Status, To: to, At: o.sched.Now(), Note: note})
	s.Status = to
	return nil
}

func (o *Orchestrator) stopRunLocked() {
	if o.run != nil {
		o.run.Stop()
		o.run = nil
	}
}

func (o *Orchestrator) eventLocked(s *Session, attempt int, msg string) Event {
	return Event{
		SessionID: s.ID,
		Status:    s.Status,
		Attempt:   attempt,
		Message:   msg,
		At:        o.sched.Now(),
	}
}

func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	listeners := append([]Listener(nil), o.listeners...)
	o.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}
