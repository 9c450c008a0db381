// Package auth turns an operator token into the set of actions the
// operator may perform at the terminal.
package auth

import (
	"time"

	"github.com/fjod/go_pos/internal/domain"
)

type Action string

const (
	ActionBrowse          Action = "browse_catalog"
	ActionEditCart        Action = "edit_cart"
	ActionTakeCash        Action = "take_cash"
	ActionTakeMobileMoney Action = "take_mobile_money"
	ActionCancelPayment   Action = "cancel_payment"
	ActionCommitSale      Action = "commit_sale"
	// ActionDiscardPaid allows clearing a cart whose payment was taken but
	// never recorded as a sale.
	ActionDiscardPaid Action = "discard_paid"
)

type Role string

const (
	RoleTrainee    Role = "trainee"
	RoleCashier    Role = "cashier"
	RoleSupervisor Role = "supervisor"
)

var roleActions = map[Role][]Action{
	RoleTrainee: {ActionBrowse, ActionEditCart, ActionTakeCash, ActionCommitSale},
	RoleCashier: {
		ActionBrowse, ActionEditCart, ActionTakeCash, ActionTakeMobileMoney, ActionCancelPayment, ActionCommitSale,
	},
	RoleSupervisor: {
		ActionBrowse, ActionEditCart, ActionTakeCash, ActionTakeMobileMoney, ActionCancelPayment, ActionCommitSale,
		ActionDiscardPaid,
	},
}

func (r Role) Valid() bool {
	_, ok := roleActions[r]
	return ok
}

// Capabilities are computed once at login and checked on every command.
type Capabilities struct {
	OperatorID string
	Name       string
	Role       Role
	ExpiresAt  time.Time
	allowed    map[Action]struct{}
}

func NewCapabilities(operatorID, name string, role Role, expiresAt time.Time) *Capabilities {
	allowed := make(map[Action]struct{})
	for _, a := range roleActions[role] {
		allowed[a] = struct{}{}
	}
	return &Capabilities{
		OperatorID: operatorID,
		Name:       name,
		Role:       role,
		ExpiresAt:  expiresAt,
		allowed:    allowed,
	}
}

func (c *Capabilities) Allows(a Action) bool {
	if c == nil {
		return false
	}
	_, ok := c.allowed[a]
	return ok
}

// Require fails with a forbidden error unless c is present, unexpired at
// now and includes a.
func (c *Capabilities) Require(a Action, now time.Time) error {
	if c == nil {
		return domain.NewForbidden("no operator is logged in")
	}
	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return domain.NewForbidden("operator session expired, log in again")
	}
	if !c.Allows(a) {
		return domain.NewForbidden("role " + string(c.Role) + " may not " + string(a))
	}
	return nil
}
