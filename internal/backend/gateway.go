package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/fjod/go_pos/internal/payment"
	"github.com/shopspring/decimal"
)

type GatewayClient struct {
	rest *restClient
}

func NewGatewayClient(baseURL string, opts Options) *GatewayClient {
	return &GatewayClient{rest: newRESTClient("mobile-money", baseURL, opts)}
}

type InitiateRequest struct {
	Phone  string          `json:"phone"`
	Amount decimal.Decimal `json:"amount"`
}

type InitiateResponse struct {
	CorrelationID string `json:"correlation_id"`
}

func (c *GatewayClient) Initiate(ctx context.Context, phone string, amount decimal.Decimal) (string, error) {
	var res InitiateResponse
	req := InitiateRequest{Phone: phone, Amount: amount}
	if err := c.rest.do(ctx, http.MethodPost, "/payments/mobile-money", nil, req, &res); err != nil {
		return "", err
	}
	if res.CorrelationID == "" {
		return "", errors.New("mobile money gateway returned no correlation id")
	}
	return res.CorrelationID, nil
}

func (c *GatewayClient) CheckStatus(ctx context.Context, correlationID string) (payment.StatusResult, error) {
	var res payment.StatusResult
	path := "/payments/mobile-money/" + url.PathEscape(correlationID)
	if err := c.rest.do(ctx, http.MethodGet, path, nil, nil, &res); err != nil {
		return payment.StatusResult{}, err
	}
	return res, nil
}
