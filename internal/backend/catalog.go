package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
)

type CatalogClient struct {
	rest *restClient
}

func NewCatalogClient(baseURL string, opts Options) *CatalogClient {
	return &CatalogClient{rest: newRESTClient("catalog", baseURL, opts)}
}

type productsResponse struct {
	Products []domain.ProductSnapshot `json:"products"`
}

func (c *CatalogClient) ListProducts(ctx context.Context, f catalog.Filters) ([]domain.ProductSnapshot, error) {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.InStockOnly {
		q.Set("in_stock", "true")
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res productsResponse
	if err := c.rest.do(ctx, http.MethodGet, path, nil, nil, &res); err != nil {
		return nil, err
	}
	return res.Products, nil
}
