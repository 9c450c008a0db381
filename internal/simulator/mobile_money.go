package simulator

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/fjod/go_pos/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrMissingPhone    = errors.New("phone is required")
)

// StatusSource decides how a customer answers the payment prompt.
type StatusSource interface {
	GetStatus() (payment.GatewayStatus, string)
}

type RandomStatus struct{}

func (RandomStatus) GetStatus() (payment.GatewayStatus, string) {
	randomInt := rand.Intn(101) // 101 because Intn is exclusive of the upper bound
	return calcStatus(randomInt)
}

// calcStatus maps 0..100 onto an outcome: below 95 succeeds, the rest fail
// or get cancelled by the customer.
func calcStatus(randomInt int) (payment.GatewayStatus, string) {
	if randomInt < 95 {
		return payment.GatewaySuccess, ""
	}
	switch randomInt - 95 {
	case 1, 2:
		return payment.GatewayFailed, "insufficient funds"
	case 3, 4:
		return payment.GatewayCancelled, "customer declined the request"
	default:
		return payment.GatewayFailed, "unknown reason"
	}
}

// FixedStatus always answers the same way.
type FixedStatus struct {
	Status payment.GatewayStatus
	Reason string
}

func (f FixedStatus) GetStatus() (payment.GatewayStatus, string) {
	return f.Status, f.Reason
}

type mmPayment struct {
	phone  string
	amount decimal.Decimal
	checks int
	result *payment.StatusResult
}

// MobileMoney answers pending for the first pendingChecks status checks of a
// payment, then settles it once through the status source.
type MobileMoney struct {
	mu            sync.Mutex
	pendingChecks int
	status        StatusSource
	payments      map[string]*mmPayment
}

func NewMobileMoney(pendingChecks int, status StatusSource) *MobileMoney {
	return &MobileMoney{
		pendingChecks: pendingChecks,
		status:        status,
		payments:      make(map[string]*mmPayment),
	}
}

func (m *MobileMoney) Initiate(phone string, amount decimal.Decimal) (string, error) {
	if phone == "" {
		return "", ErrMissingPhone
	}
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[id] = &mmPayment{phone: phone, amount: amount}
	return id, nil
}

func (m *MobileMoney) Check(correlationID string) (payment.StatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[correlationID]
	if !ok {
		return payment.StatusResult{}, ErrPaymentNotFound
	}
	if p.result != nil {
		return *p.result, nil
	}

	p.checks++
	if p.checks <= m.pendingChecks {
		return payment.StatusResult{Status: payment.GatewayPending}, nil
	}

	status, reason := m.status.GetStatus()
	res := payment.StatusResult{Status: status, Reason: reason}
	if status == payment.GatewaySuccess {
		res.TransactionID = "TXN-" + uuid.NewString()
	}
	p.result = &res
	return res, nil
}
