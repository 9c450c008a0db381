package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type GatewayStatus string

const (
	GatewayPending   GatewayStatus = "pending"
	GatewaySuccess   GatewayStatus = "success"
	GatewayFailed    GatewayStatus = "failed"
	GatewayCancelled GatewayStatus = "cancelled"
)

type StatusResult struct {
	Status        GatewayStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}

// Gateway is the mobile money collaborator.
type Gateway interface {
	// Initiate asks the customer's phone to approve amount and returns the
	// correlation id to poll with.
	Initiate(ctx context.Context, phone string, amount decimal.Decimal) (string, error)
	CheckStatus(ctx context.Context, correlationID string) (StatusResult, error)
}

// RejectionMessage is implemented by gateway errors that carry text meant
// for the operator.
type RejectionMessage interface {
	RejectionMessage() string
}
