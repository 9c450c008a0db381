package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/clock"
	"go.uber.org/zap"
)

// PollPolicy fixes the schedule of status checks for one pending payment.
// Attempt n runs at InitialDelay + (n-1)*Interval after the payment went
// pending, and the whole run ends no later than Bound.
type PollPolicy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func (p PollPolicy) Bound() time.Duration {
	return p.InitialDelay + time.Duration(p.MaxAttempts)*p.Interval
}

func (p PollPolicy) Validate() error {
	if p.Interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if p.InitialDelay < 0 {
		return errors.New("poll initial delay must not be negative")
	}
	if p.MaxAttempts < 1 {
		return errors.New("poll max attempts must be at least 1")
	}
	return nil
}

// Check is the outcome of one scheduled status check, or of the deadline
// when Expired is set.
type Check struct {
	SessionID     string
	CorrelationID string
	Attempt       int
	// Last is set on the final attempt the policy allows.
	Last    bool
	Result  StatusResult
	Err     error
	Expired bool
}

// ApplyFunc receives every check of a run and reports whether polling
// should continue.
type ApplyFunc func(Check) bool

type Poller struct {
	gateway Gateway
	sched   clock.Scheduler
	policy  PollPolicy
	logger  *zap.Logger
}

func NewPoller(gateway Gateway, sched clock.Scheduler, policy PollPolicy, logger *zap.Logger) *Poller {
	return &Poller{
		gateway: gateway,
		sched:   sched,
		policy:  policy,
		logger:  logger,
	}
}

func (p *Poller) Policy() PollPolicy {
	return p.policy
}

// Start schedules the checks for correlationID. It does not block.
func (p *Poller) Start(sessionID, correlationID string, apply ApplyFunc) *PollRun {
	r := &PollRun{
		p:             p,
		sessionID:     sessionID,
		correlationID: correlationID,
		apply:         apply,
		started:       p.sched.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = p.sched.AfterFunc(p.policy.InitialDelay, r.attempt)
	r.deadline = p.sched.AfterFunc(p.policy.Bound(), r.expire)

	p.logger.Debug("mobile money polling started",
		zap.String("session_id", sessionID),
		zap.String("correlation_id", correlationID),
		zap.Duration("bound", p.policy.Bound()))
	return r
}

// PollRun is the polling of one pending payment. At most one check is
// scheduled at any time.
type PollRun struct {
	p             *Poller
	sessionID     string
	correlationID string
	apply         ApplyFunc
	started       time.Time

	mu       sync.Mutex
	attempts int
	next     clock.Timer
	deadline clock.Timer
	stopped  bool
}

// Stop cancels any scheduled check. A check already talking to the gateway
// still delivers its result.
func (r *PollRun) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	if r.next != nil {
		r.next.Stop()
		r.next = nil
	}
	if r.deadline != nil {
		r.deadline.Stop()
	}
}

func (r *PollRun) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *PollRun) attempt() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.attempts++
	n := r.attempts
	r.next = nil
	r.mu.Unlock()

	policy := r.p.policy
	log := r.p.logger.With(
		zap.String("session_id", r.sessionID),
		zap.String("correlation_id", r.correlationID),
		zap.Int("attempt", n))

	ctx, cancel := context.WithTimeout(context.Background(), policy.Interval)
	res, err := r.p.gateway.CheckStatus(ctx, r.correlationID)
	cancel()
	if err != nil {
		log.Warn("mobile money status check failed", zap.Error(err))
	} else {
		log.Debug("mobile money status checked", zap.String("status", string(res.Status)))
	}

	last := n >= policy.MaxAttempts
	if !r.apply(Check{
		SessionID:     r.sessionID,
		CorrelationID: r.correlationID,
		Attempt:       n,
		Last:          last,
		Result:        res,
		Err:           err,
	}) || last {
		r.Stop()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	due := r.started.Add(policy.InitialDelay + time.Duration(n)*policy.Interval)
	r.next = r.p.sched.AfterFunc(due.Sub(r.p.sched.Now()), r.attempt)
}

func (r *PollRun) expire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.next != nil {
		r.next.Stop()
		r.next = nil
	}
	n := r.attempts
	r.mu.Unlock()

	r.p.logger.Info("mobile money polling deadline reached",
		zap.String("session_id", r.sessionID),
		zap.String("correlation_id", r.correlationID),
		zap.Int("attempts", n))
	r.apply(Check{
		SessionID:     r.sessionID,
		CorrelationID: r.correlationID,
		Attempt:       n,
		Last:          true,
		Expired:       true,
	})
}
