package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type LedgerClient struct {
	rest *restClient
}

func NewLedgerClient(baseURL string, opts Options) *LedgerClient {
	return &LedgerClient{rest: newRESTClient("sales-ledger", baseURL, opts)}
}

type CommitResponse struct {
	SaleID string `json:"sale_id"`
}

func (c *LedgerClient) Commit(ctx context.Context, draft domain.SaleDraft) (string, error) {
	header := http.Header{}
	header.Set(IdempotencyKeyHeader, draft.IdempotencyKey)

	var res CommitResponse
	if err := c.rest.do(ctx, http.MethodPost, "/sales", header, draft, &res); err != nil {
		return "", err
	}
	if res.SaleID == "" {
		return "", errors.New("sales ledger returned no sale id")
	}
	return res.SaleID, nil
}

type PrinterClient struct {
	rest *restClient
}

func NewPrinterClient(baseURL string, opts Options) *PrinterClient {
	return &PrinterClient{rest: newRESTClient("receipt-printer", baseURL, opts)}
}

type PrintRequest struct {
	SaleID string `json:"sale_id"`
}

func (c *PrinterClient) Print(ctx context.Context, saleID string) error {
	return c.rest.do(ctx, http.MethodPost, "/receipts", nil, PrintRequest{SaleID: saleID}, nil)
}
