package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_pos/internal/domain"
)

// QueryCache stores catalog search results per filter set.
type QueryCache interface {
	Get(ctx context.Context, f Filters) ([]domain.ProductSnapshot, error)
	Set(ctx context.Context, f Filters, products []domain.ProductSnapshot) error
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
