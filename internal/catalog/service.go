package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/clock"
	"github.com/fjod/go_pos/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source is the product catalog collaborator.
type Source interface {
	ListProducts(ctx context.Context, f Filters) ([]domain.ProductSnapshot, error)
}

type Service struct {
	source   Source
	cache    QueryCache
	snapshot *Snapshot
	clock    clock.Scheduler
	debounce *Debouncer
	logger   *zap.Logger
	sfg      singleflight.Group // Prevents duplicate fetches for the same search
}

// NewService wires the catalog. cache may be nil.
func NewService(source Source, cache QueryCache, snapshot *Snapshot, sched clock.Scheduler, debounce time.Duration, logger *zap.Logger) *Service {
	return &Service{
		source:   source,
		cache:    cache,
		snapshot: snapshot,
		clock:    sched,
		debounce: NewDebouncer(sched, debounce),
		logger:   logger,
	}
}

func (s *Service) Snapshot() *Snapshot {
	return s.snapshot
}

// Search fetches products matching f and replaces the snapshot with them.
func (s *Service) Search(ctx context.Context, f Filters) ([]domain.ProductSnapshot, error) {
	v, err, _ := s.sfg.Do(f.Key(), func() (interface{}, error) {
		if s.cache != nil {
			products, err := s.cache.Get(ctx, f)
			if err == nil {
				return products, nil // products are in cache
			}
			if !errors.Is(err, ErrCacheMiss) {
				s.logger.Warn("catalog cache get failed", zap.Error(err)) // log cache error but continue
			}
		}

		products, err := s.source.ListProducts(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to list products: %w", err)
		}

		if s.cache != nil {
			go func() {
				setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if errSet := s.cache.Set(setCtx, f, products); errSet != nil {
					s.logger.Warn("catalog cache set failed", zap.Error(errSet))
				}
			}()
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}

	products := v.([]domain.ProductSnapshot)
	s.snapshot.Replace(products, s.clock.Now())
	return products, nil
}

// SearchDebounced runs Search once input has been quiet for the debounce
// delay. Earlier pending searches are dropped.
func (s *Service) SearchDebounced(f Filters, done func([]domain.ProductSnapshot, error)) {
	s.debounce.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		products, err := s.Search(ctx, f)
		if done != nil {
			done(products, err)
		}
	})
}

// Reconcile applies a committed sale to the cached stock counts.
func (s *Service) Reconcile(ctx context.Context, sold []StockDelta) {
	s.snapshot.Decrement(sold)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}

// Close stops any pending debounced search.
func (s *Service) Close() {
	s.debounce.Stop()
}
