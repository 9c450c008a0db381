package payment

import (
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Transition is one recorded status change of a session.
type Transition struct {
	From domain.PaymentStatus
	To   domain.PaymentStatus
	At   time.Time
	Note string
}

// Session is the payment attempt for one checkout. Values handed out by the
// Orchestrator are copies; mutating them has no effect.
type Session struct {
	ID             string
	Method         domain.PaymentMethod
	AmountDue      decimal.Decimal
	AmountTendered decimal.Decimal
	Change         decimal.Decimal
	Phone          string
	CorrelationID  string
	TransactionID  string
	SaleID         string
	Reason         string
	Status         domain.PaymentStatus
	Attempts       int
	StartedAt      time.Time
	History        []Transition
}

func (s *Session) clone() Session {
	c := *s
	c.History = append([]Transition(nil), s.History...)
	return c
}

// Statuses lists every status the session has passed through, starting with Idle.
func (s Session) Statuses() []domain.PaymentStatus {
	out := []domain.PaymentStatus{domain.PaymentStatusIdle}
	for _, t := range s.History {
		out = append(out, t.To)
	}
	return out
}

// Proof is the payment evidence for a settled session.
func (s Session) Proof() domain.PaymentProof {
	switch s.Method {
	case domain.PaymentMethodCash:
		tendered, change := s.AmountTendered, s.Change
		return domain.PaymentProof{Method: s.Method, AmountTendered: &tendered, Change: &change}
	default:
		return domain.PaymentProof{Method: s.Method, TransactionID: s.TransactionID, Phone: s.Phone}
	}
}

// Event reports a change of the active session or a discarded late result.
type Event struct {
	SessionID string
	Status    domain.PaymentStatus
	Attempt   int
	Message   string
	// Stale is set when a gateway result arrived for a session that is no
	// longer the active pending one. Such results are never applied.
	Stale bool
	At    time.Time
}

type Listener func(Event)
