package simulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Server struct {
	store  *Store
	mm     *MobileMoney
	logger *zap.Logger
}

func NewServer(store *Store, mm *MobileMoney, logger *zap.Logger) *Server {
	return &Server{store: store, mm: mm, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/products", s.listProducts)
	r.Post("/payments/mobile-money", s.initiatePayment)
	r.Get("/payments/mobile-money/{correlation_id}", s.checkPayment)
	r.Post("/sales", s.recordSale)
	r.Get("/sales/{sale_id}", s.getSale)
	r.Post("/receipts", s.printReceipt)
	r.Get("/receipts/{sale_id}", s.getReceipt)

	return otelhttp.NewHandler(r, "backoffice-sim")
}

// GET /products?q=&in_stock=&limit=
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inStock, _ := strconv.ParseBool(q.Get("in_stock"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	products, err := s.store.ListProducts(r.Context(), q.Get("q"), inStock, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// POST /payments/mobile-money
func (s *Server) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req backend.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.mm.Initiate(req.Phone, req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info("mobile money payment initiated",
		zap.String("correlation_id", id),
		zap.String("amount", req.Amount.StringFixed(2)))
	respondJSON(w, http.StatusAccepted, backend.InitiateResponse{CorrelationID: id})
}

// GET /payments/mobile-money/{correlation_id}
func (s *Server) checkPayment(w http.ResponseWriter, r *http.Request) {
	res, err := s.mm.Check(chi.URLParam(r, "correlation_id"))
	if errors.Is(err, ErrPaymentNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /sales
func (s *Server) recordSale(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(backend.IdempotencyKeyHeader)
	if key == "" {
		respondError(w, http.StatusBadRequest, "Idempotency-Key header is required")
		return
	}

	var draft domain.SaleDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(draft.Items) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "sale has no items")
		return
	}

	saleID, err := s.store.RecordSale(r.Context(), key, draft)
	if errors.Is(err, ErrProductNotFound) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.logger.Info("sale recorded", zap.String("sale_id", saleID), zap.String("idempotency_key", key))
	respondJSON(w, http.StatusCreated, backend.CommitResponse{SaleID: saleID})
}

// GET /sales/{sale_id}
func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.store.GetSale(r.Context(), chi.URLParam(r, "sale_id"))
	if errors.Is(err, ErrSaleNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

// POST /receipts
func (s *Server) printReceipt(w http.ResponseWriter, r *http.Request) {
	var req backend.PrintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SaleID == "" {
		respondError(w, http.StatusBadRequest, "sale_id is required")
		return
	}

	err := s.store.RecordReceipt(r.Context(), req.SaleID, "http")
	if errors.Is(err, ErrSaleNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /receipts/{sale_id}
func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.store.GetReceipt(r.Context(), chi.URLParam(r, "sale_id"))
	if errors.Is(err, ErrReceiptNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
