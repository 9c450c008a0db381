package domain

import "fmt"

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindState
	KindForbidden
	KindGatewayInitiation
	KindGatewayPoll
	KindGatewayTimeout
	KindCommit
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindState:
		return "STATE"
	case KindForbidden:
		return "FORBIDDEN"
	case KindGatewayInitiation:
		return "GATEWAY_INITIATION"
	case KindGatewayPoll:
		return "GATEWAY_POLL"
	case KindGatewayTimeout:
		return "GATEWAY_TIMEOUT"
	case KindCommit:
		return "COMMIT"
	default:
		return "UNKNOWN"
	}
}

// Error is the error type surfaced to the operator. Two errors are the same
// (for errors.Is) when their codes match, so details can vary per instance.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	// Available is set on stock errors: the most the line may hold.
	Available int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrStockExceeded       = &Error{Kind: KindValidation, Code: "stock_exceeded", Message: "requested quantity exceeds available stock"}
	ErrInvalidQuantity     = &Error{Kind: KindValidation, Code: "invalid_quantity", Message: "quantity must be positive"}
	ErrInsufficientPayment = &Error{Kind: KindValidation, Code: "insufficient_payment", Message: "amount tendered is less than total"}
	ErrInvalidPhone        = &Error{Kind: KindValidation, Code: "invalid_phone", Message: "phone number is not a valid mobile number"}
	ErrProductNotFound     = &Error{Kind: KindValidation, Code: "product_not_found", Message: "product not found in catalog snapshot"}
	ErrItemNotFound        = &Error{Kind: KindValidation, Code: "item_not_found", Message: "item not in cart"}
	ErrEmptyCart           = &Error{Kind: KindValidation, Code: "empty_cart", Message: "cart is empty, nothing to checkout"}

	ErrPaymentInProgress = &Error{Kind: KindState, Code: "payment_in_progress", Message: "cart is locked while a mobile money payment is pending"}
	ErrNoActiveSession   = &Error{Kind: KindState, Code: "no_active_session", Message: "no active payment session"}
	ErrIllegalTransition = &Error{Kind: KindState, Code: "illegal_transition", Message: "illegal transition of payment status"}
	ErrNotSettled        = &Error{Kind: KindState, Code: "not_settled", Message: "payment is not settled"}
	ErrSaleUncommitted   = &Error{Kind: KindState, Code: "sale_uncommitted", Message: "payment was taken; commit the sale before changing the cart"}

	ErrForbidden    = &Error{Kind: KindForbidden, Code: "forbidden", Message: "operator is not allowed to perform this action"}
	ErrInvalidToken = &Error{Kind: KindForbidden, Code: "invalid_token", Message: "operator token is invalid or expired"}

	ErrGatewayInitiation = &Error{Kind: KindGatewayInitiation, Code: "gateway_initiation_failed", Message: "mobile money request was rejected"}
	ErrGatewayPoll       = &Error{Kind: KindGatewayPoll, Code: "gateway_poll_failed", Message: "mobile money status check failed"}

	ErrPaymentUnconfirmed = &Error{
		Kind:    KindGatewayTimeout,
		Code:    "payment_unconfirmed",
		Message: "mobile money payment could not be confirmed in time; verify the payment status out-of-band before retrying",
	}
	ErrCommitFailed = &Error{
		Kind:    KindCommit,
		Code:    "commit_failed",
		Message: "payment was taken but the sale could not be recorded; retry the commit, do not collect payment again",
	}
)

func NewStockExceeded(productID int64, requested, available int) *Error {
	return &Error{
		Kind:      KindValidation,
		Code:      ErrStockExceeded.Code,
		Message:   fmt.Sprintf("product %d: requested %d, only %d in stock", productID, requested, available),
		Available: available,
	}
}

func NewInsufficientPayment(tendered, total fmt.Stringer) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    ErrInsufficientPayment.Code,
		Message: fmt.Sprintf("amount tendered %s is less than total %s", tendered, total),
	}
}

// NewGatewayInitiation keeps the gateway's own message as the operator facing text.
func NewGatewayInitiation(message string, cause error) *Error {
	if message == "" {
		message = ErrGatewayInitiation.Message
	}
	return &Error{Kind: KindGatewayInitiation, Code: ErrGatewayInitiation.Code, Message: message, Err: cause}
}

func NewCommitFailed(cause error) *Error {
	return &Error{Kind: KindCommit, Code: ErrCommitFailed.Code, Message: ErrCommitFailed.Message, Err: cause}
}

func NewForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: ErrForbidden.Code, Message: message}
}

func NewInvalidToken(cause error) *Error {
	return &Error{Kind: KindForbidden, Code: ErrInvalidToken.Code, Message: ErrInvalidToken.Message, Err: cause}
}

func NewIllegalTransition(from, to PaymentStatus) *Error {
	return &Error{
		Kind:    KindState,
		Code:    ErrIllegalTransition.Code,
		Message: fmt.Sprintf("illegal transition of payment status %s -> %s", from, to),
	}
}
