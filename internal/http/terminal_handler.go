package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/fjod/go_pos/internal/terminal"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Engine is the part of the terminal the HTTP API drives.
type Engine interface {
	Execute(ctx context.Context, cmd terminal.Command) (terminal.Result, error)
	Cart() terminal.CartView
	Payment() (payment.Session, bool)
	Events() []payment.Event
	LastSearch() (terminal.SearchOutcome, bool)
}

type TerminalHandler struct {
	engine  Engine
	timeout time.Duration
	logger  *zap.Logger
}

func NewTerminalHandler(engine Engine, timeout time.Duration, logger *zap.Logger) *TerminalHandler {
	return &TerminalHandler{
		engine:  engine,
		timeout: timeout,
		logger:  logger,
	}
}

type LoginRequestDTO struct {
	Token string `json:"token"`
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SetCustomerRequestDTO struct {
	CustomerRef string `json:"customer_ref"`
}

type PayCashRequestDTO struct {
	Tendered decimal.Decimal `json:"tendered"`
}

type PayMobileMoneyRequestDTO struct {
	Phone string `json:"phone"`
}

type SessionDTO struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	Method         string           `json:"method,omitempty"`
	AmountDue      decimal.Decimal  `json:"amount_due"`
	AmountTendered *decimal.Decimal `json:"amount_tendered,omitempty"`
	Change         *decimal.Decimal `json:"change,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	CorrelationID  string           `json:"correlation_id,omitempty"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	SaleID         string           `json:"sale_id,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Attempts       int              `json:"attempts"`
	StartedAt      time.Time        `json:"started_at"`
	Statuses       []string         `json:"statuses"`
}

type EventDTO struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Attempt   int       `json:"attempt,omitempty"`
	Message   string    `json:"message,omitempty"`
	Stale     bool      `json:"stale,omitempty"`
	At        time.Time `json:"at"`
}

type CommitResponseDTO struct {
	Sale    *domain.Sale `json:"sale"`
	Warning string       `json:"warning,omitempty"`
}

func toSessionDTO(s payment.Session) SessionDTO {
	dto := SessionDTO{
		ID:            s.ID,
		Status:        s.Status.String(),
		Method:        string(s.Method),
		AmountDue:     s.AmountDue,
		Phone:         s.Phone,
		CorrelationID: s.CorrelationID,
		TransactionID: s.TransactionID,
		SaleID:        s.SaleID,
		Reason:        s.Reason,
		Attempts:      s.Attempts,
		StartedAt:     s.StartedAt,
	}
	if s.Method == domain.PaymentMethodCash {
		tendered, change := s.AmountTendered, s.Change
		dto.AmountTendered = &tendered
		dto.Change = &change
	}
	for _, st := range s.Statuses() {
		dto.Statuses = append(dto.Statuses, st.String())
	}
	return dto
}

// POST /api/v1/login
func (h *TerminalHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "missing_token", "token is required")
		return
	}
	if _, ok := h.execute(w, r, terminal.Login{Token: req.Token}); !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_in"})
}

// POST /api/v1/logout
func (h *TerminalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.execute(w, r, terminal.Logout{}); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/products?q=&in_stock=&limit=&debounce=
//
// With debounce=true the search is queued and answered with 202; the
// outcome is read from /api/v1/products/last-search.
func (h *TerminalHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filters{Query: q.Get("q")}
	if raw := q.Get("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_in_stock", "in_stock must be a boolean")
			return
		}
		f.InStockOnly = inStock
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}
	if raw := q.Get("debounce"); raw != "" {
		debounce, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_debounce", "debounce must be a boolean")
			return
		}
		if debounce {
			if _, ok := h.execute(w, r, terminal.SearchCatalogAsync{Filters: f}); ok {
				w.WriteHeader(http.StatusAccepted)
			}
			return
		}
	}

	res, ok := h.execute(w, r, terminal.SearchCatalog{Filters: f})
	if !ok {
		return
	}
	products := res.Products
	if products == nil {
		products = []domain.ProductSnapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// GET /api/v1/products/last-search
func (h *TerminalHandler) LastSearch(w http.ResponseWriter, r *http.Request) {
	out, ok := h.engine.LastSearch()
	if !ok {
		respondError(w, http.StatusNotFound, "no_search", "no debounced search has completed")
		return
	}
	if out.Err != nil {
		handleError(w, h.logger, out.Err)
		return
	}
	products := out.Products
	if products == nil {
		products = []domain.ProductSnapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":       out.Filters.Query,
		"products":    products,
		"searched_at": out.At,
	})
}

// GET /api/v1/cart
func (h *TerminalHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Cart())
}

// POST /api/v1/cart/items
func (h *TerminalHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	res, ok := h.execute(w, r, terminal.AddItem{ProductID: req.ProductID, Quantity: req.Quantity})
	if !ok {
		return
	}
	respondJSON(w, http.StatusCreated, res.Cart)
}

// PUT /api/v1/cart/items/{product_id}
func (h *TerminalHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	res, ok := h.execute(w, r, terminal.SetQuantity{ProductID: productID, Quantity: req.Quantity})
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, res.Cart)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *TerminalHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	res, ok := h.execute(w, r, terminal.RemoveItem{ProductID: productID})
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, res.Cart)
}

// PUT /api/v1/cart/customer
func (h *TerminalHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req SetCustomerRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	res, ok := h.execute(w, r, terminal.SetCustomer{Ref: req.CustomerRef})
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, res.Cart)
}

// DELETE /api/v1/cart
func (h *TerminalHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	res, ok := h.execute(w, r, terminal.ClearCart{})
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, res.Cart)
}

// POST /api/v1/checkout
func (h *TerminalHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, terminal.StartCheckout{}, http.StatusCreated)
}

// POST /api/v1/checkout/cash
func (h *TerminalHandler) PayCash(w http.ResponseWriter, r *http.Request) {
	var req PayCashRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	h.sessionCommand(w, r, terminal.PayCash{Tendered: req.Tendered}, http.StatusOK)
}

// POST /api/v1/checkout/mobile-money
//
// Answers 202: the session is pending until the poller settles it.
func (h *TerminalHandler) PayMobileMoney(w http.ResponseWriter, r *http.Request) {
	var req PayMobileMoneyRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Phone == "" {
		respondError(w, http.StatusBadRequest, "missing_phone", "phone is required")
		return
	}
	h.sessionCommand(w, r, terminal.PayMobileMoney{Phone: req.Phone}, http.StatusAccepted)
}

// GET /api/v1/checkout
func (h *TerminalHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.engine.Payment()
	if !ok {
		respondError(w, http.StatusNotFound, domain.ErrNoActiveSession.Code, domain.ErrNoActiveSession.Message)
		return
	}
	respondJSON(w, http.StatusOK, toSessionDTO(s))
}

// DELETE /api/v1/checkout
func (h *TerminalHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, terminal.CancelPayment{}, http.StatusOK)
}

// POST /api/v1/checkout/commit
func (h *TerminalHandler) CommitSale(w http.ResponseWriter, r *http.Request) {
	res, ok := h.execute(w, r, terminal.CommitSale{})
	if !ok {
		return
	}
	respondJSON(w, http.StatusCreated, CommitResponseDTO{Sale: res.Sale, Warning: res.Warning})
}

// GET /api/v1/checkout/events
func (h *TerminalHandler) Events(w http.ResponseWriter, r *http.Request) {
	events := h.engine.Events()
	out := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, EventDTO{
			SessionID: ev.SessionID,
			Status:    ev.Status.String(),
			Attempt:   ev.Attempt,
			Message:   ev.Message,
			Stale:     ev.Stale,
			At:        ev.At,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

func (h *TerminalHandler) sessionCommand(w http.ResponseWriter, r *http.Request, cmd terminal.Command, status int) {
	res, ok := h.execute(w, r, cmd)
	if !ok {
		return
	}
	respondJSON(w, status, toSessionDTO(*res.Session))
}

func (h *TerminalHandler) execute(w http.ResponseWriter, r *http.Request, cmd terminal.Command) (terminal.Result, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.engine.Execute(ctx, cmd)
	if err != nil {
		log := h.logger.With(zap.String("request_id", getRequestID(r.Context())))
		handleError(w, log, err)
		return terminal.Result{}, false
	}
	return res, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
