package terminal

import (
	"context"
	"fmt"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/shopspring/decimal"
)

// Command is an operator action. Execute dispatches it to the terminal.
type Command interface {
	command()
}

type Login struct {
	Token string
}

type Logout struct{}

type SearchCatalog struct {
	Filters catalog.Filters
}

// SearchCatalogAsync debounces the search; the outcome is read later.
type SearchCatalogAsync struct {
	Filters catalog.Filters
}

// AddItem adds Quantity of a product; zero means one.
type AddItem struct {
	ProductID int64
	Quantity  int
}

type SetQuantity struct {
	ProductID int64
	Quantity  int
}

type RemoveItem struct {
	ProductID int64
}

type SetCustomer struct {
	Ref string
}

type ClearCart struct{}

type StartCheckout struct{}

type PayCash struct {
	Tendered decimal.Decimal
}

type PayMobileMoney struct {
	Phone string
}

type CancelPayment struct{}

type CommitSale struct{}

func (Login) command()              {}
func (Logout) command()             {}
func (SearchCatalog) command()      {}
func (SearchCatalogAsync) command() {}
func (AddItem) command()            {}
func (SetQuantity) command()        {}
func (RemoveItem) command()         {}
func (SetCustomer) command()        {}
func (ClearCart) command()          {}
func (StartCheckout) command()      {}
func (PayCash) command()            {}
func (PayMobileMoney) command()     {}
func (CancelPayment) command()      {}
func (CommitSale) command()         {}

// Result carries whatever the command produced.
type Result struct {
	Cart     *CartView
	Session  *payment.Session
	Sale     *domain.Sale
	Products []domain.ProductSnapshot
	// Warning is set when the command succeeded with a problem worth
	// showing the operator, such as a failed receipt.
	Warning string
}

func (t *Terminal) Execute(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case Login:
		if _, err := t.Login(c.Token); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	case Logout:
		t.Logout()
		return Result{}, nil
	case SearchCatalog:
		products, err := t.Search(ctx, c.Filters)
		return Result{Products: products}, err
	case SearchCatalogAsync:
		return Result{}, t.SearchAsync(c.Filters)
	case AddItem:
		qty := c.Quantity
		if qty == 0 {
			qty = 1
		}
		return cartResult(t.AddItem(c.ProductID, qty))
	case SetQuantity:
		return cartResult(t.SetQuantity(c.ProductID, c.Quantity))
	case RemoveItem:
		return cartResult(t.RemoveItem(c.ProductID))
	case SetCustomer:
		return cartResult(t.SetCustomer(c.Ref))
	case ClearCart:
		return cartResult(t.ClearCart())
	case StartCheckout:
		return sessionResult(t.StartCheckout())
	case PayCash:
		return sessionResult(t.PayCash(c.Tendered))
	case PayMobileMoney:
		return sessionResult(t.PayMobileMoney(ctx, c.Phone))
	case CancelPayment:
		return sessionResult(t.CancelPayment())
	case CommitSale:
		res, err := t.CommitSale(ctx)
		if err != nil {
			return Result{}, err
		}
		out := Result{Sale: &res.Sale}
		if res.ReceiptErr != nil {
			out.Warning = res.ReceiptErr.Error()
		}
		return out, nil
	default:
		return Result{}, fmt.Errorf("unknown command %T", cmd)
	}
}

func cartResult(v CartView, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Cart: &v}, nil
}

func sessionResult(s payment.Session, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Session: &s}, nil
}
