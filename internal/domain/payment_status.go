package domain

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "CASH"
	PaymentMethodMobileMoney PaymentMethod = "MOBILE_MONEY"
)

type PaymentStatus string

const (
	PaymentStatusIdle           PaymentStatus = "IDLE"
	PaymentStatusChoosingMethod PaymentStatus = "CHOOSING_METHOD"
	PaymentStatusCashReady      PaymentStatus = "CASH_READY"
	PaymentStatusPending        PaymentStatus = "MOBILE_MONEY_PENDING"
	PaymentStatusSuccess        PaymentStatus = "SUCCESS"
	PaymentStatusFailed         PaymentStatus = "FAILED"
	PaymentStatusTimedOut       PaymentStatus = "TIMED_OUT"
	PaymentStatusCancelled      PaymentStatus = "CANCELLED"
	PaymentStatusCommitted      PaymentStatus = "COMMITTED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusIdle:           {PaymentStatusChoosingMethod},
	PaymentStatusChoosingMethod: {PaymentStatusCashReady, PaymentStatusPending, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCashReady:      {PaymentStatusSuccess, PaymentStatusPending, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusPending:        {PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusTimedOut, PaymentStatusCancelled},
	PaymentStatusSuccess:        {PaymentStatusCommitted},
}

// CanTransitionTo reports whether a session in status from may move to status to.
func CanTransitionTo(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further payment transition except commit is possible.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusTimedOut, PaymentStatusCancelled, PaymentStatusCommitted:
		return true
	}
	return false
}

// String representation (for logging)
func (s PaymentStatus) String() string {
	return string(s)
}
