package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter wires the operator API routes.
func NewRouter(h *TerminalHandler, logger *zap.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/products", h.SearchProducts)
		r.Get("/products/last-search", h.LastSearch)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Put("/customer", h.SetCustomer)
			r.Post("/items", h.AddItem)
			r.Put("/items/{product_id}", h.UpdateQuantity)
			r.Delete("/items/{product_id}", h.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.StartCheckout)
			r.Get("/", h.GetPayment)
			r.Delete("/", h.CancelPayment)
			r.Post("/cash", h.PayCash)
			r.Post("/mobile-money", h.PayMobileMoney)
			r.Post("/commit", h.CommitSale)
			r.Get("/events", h.Events)
		})
	})

	return otelhttp.NewHandler(r, "pos-terminal")
}
