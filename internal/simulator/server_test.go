package simulator

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/fjod/go_pos/internal/receipt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupServer(t *testing.T, pendingChecks int, status StatusSource) (*httptest.Server, *Store) {
	t.Helper()
	store := setupTestStore(t)
	srv := httptest.NewServer(NewServer(store, NewMobileMoney(pendingChecks, status), zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func clientOptions() backend.Options {
	return backend.Options{Timeout: 2 * time.Second, Transport: http.DefaultTransport}
}

func TestServer_CatalogClient(t *testing.T) {
	srv, _ := setupServer(t, 0, RandomStatus{})

	products, err := backend.NewCatalogClient(srv.URL, clientOptions()).
		ListProducts(context.Background(), catalog.Filters{Query: "apple", InStockOnly: true, Limit: 10})

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, 10, products[0].StockQty)
}

func TestServer_GatewayClient(t *testing.T) {
	srv, _ := setupServer(t, 1, FixedStatus{Status: payment.GatewaySuccess})
	gw := backend.NewGatewayClient(srv.URL, clientOptions())
	ctx := context.Background()

	id, err := gw.Initiate(ctx, "254712345678", decimal.NewFromInt(100))
	require.NoError(t, err)

	res, err := gw.CheckStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payment.GatewayPending, res.Status)

	res, err = gw.CheckStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payment.GatewaySuccess, res.Status)
	assert.NotEmpty(t, res.TransactionID)
}

func TestServer_GatewayRejection(t *testing.T) {
	srv, _ := setupServer(t, 0, RandomStatus{})

	_, err := backend.NewGatewayClient(srv.URL, clientOptions()).
		Initiate(context.Background(), "254712345678", decimal.Zero)

	var rejection payment.RejectionMessage
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, ErrInvalidAmount.Error(), rejection.RejectionMessage())
	assert.False(t, backend.IsTransient(err))
}

func TestServer_LedgerAndPrinterClients(t *testing.T) {
	srv, store := setupServer(t, 0, RandomStatus{})
	ctx := context.Background()
	draft := saleDraft("sess-42", item(1, 2, 100))

	ledger := backend.NewLedgerClient(srv.URL, clientOptions())
	saleID, err := ledger.Commit(ctx, draft)
	require.NoError(t, err)
	again, err := ledger.Commit(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, saleID, again)
	assert.Equal(t, 8, stockOf(t, store, 1))

	require.NoError(t, backend.NewPrinterClient(srv.URL, clientOptions()).Print(ctx, saleID))
	r, err := store.GetReceipt(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, "http", r.Source)

	err = backend.NewPrinterClient(srv.URL, clientOptions()).Print(ctx, "SALE-missing")
	var remote *backend.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
}

func TestServer_RecordSale_RequiresIdempotencyKey(t *testing.T) {
	srv, _ := setupServer(t, 0, RandomStatus{})

	resp, err := http.Post(srv.URL+"/sales", "application/json", bytes.NewReader([]byte(`{"items":[]}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UnknownPayment(t *testing.T) {
	srv, _ := setupServer(t, 0, RandomStatus{})

	_, err := backend.NewGatewayClient(srv.URL, clientOptions()).CheckStatus(context.Background(), "nope")

	var remote *backend.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
}

func TestStore_PrintFromKafka(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	saleID, err := store.RecordSale(ctx, "sess-1", saleDraft("sess-1", item(1, 1, 100)))
	require.NoError(t, err)

	require.NoError(t, store.PrintFromKafka(ctx, receipt.Requested{SaleID: saleID}))

	r, err := store.GetReceipt(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, "kafka", r.Source)
}
