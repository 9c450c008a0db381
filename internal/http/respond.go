package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/domain"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	// Available is the largest quantity the line can hold, on stock errors.
	Available *int `json:"available,omitempty"`
	// Alert marks failures that need a supervisor: payment was taken but
	// the sale is not recorded.
	Alert bool `json:"alert,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts terminal errors to HTTP status codes.
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		if backend.IsTransient(err) {
			respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
			return
		}
		logger.Error("unhandled terminal error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{Error: de.Message, Code: de.Code}
	if de.Err != nil {
		resp.Details = de.Err.Error()
	}
	if de.Code == domain.ErrStockExceeded.Code {
		available := de.Available
		resp.Available = &available
	}

	var httpStatus int
	switch de.Kind {
	case domain.KindValidation:
		httpStatus = http.StatusUnprocessableEntity
	case domain.KindState:
		httpStatus = http.StatusConflict
	case domain.KindForbidden:
		httpStatus = http.StatusForbidden
		if de.Code == domain.ErrInvalidToken.Code {
			httpStatus = http.StatusUnauthorized
		}
	case domain.KindGatewayInitiation:
		httpStatus = http.StatusBadGateway
	case domain.KindGatewayTimeout:
		httpStatus = http.StatusGatewayTimeout
	case domain.KindCommit:
		httpStatus = http.StatusInternalServerError
		resp.Alert = true
	default:
		httpStatus = http.StatusInternalServerError
	}

	respondJSON(w, httpStatus, resp)
}
