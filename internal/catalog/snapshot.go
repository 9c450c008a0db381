package catalog

import (
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/domain"
)

// StockDelta is a sold quantity to take off the cached stock.
type StockDelta struct {
	ProductID int64
	Quantity  int
}

// Snapshot holds the last fetched product list. Each fetch replaces it wholesale.
type Snapshot struct {
	mu        sync.RWMutex
	products  map[int64]domain.ProductSnapshot
	order     []int64
	fetchedAt time.Time
}

func NewSnapshot() *Snapshot {
	return &Snapshot{products: make(map[int64]domain.ProductSnapshot)}
}

func (s *Snapshot) Replace(products []domain.ProductSnapshot, at time.Time) {
	next := make(map[int64]domain.ProductSnapshot, len(products))
	order := make([]int64, 0, len(products))
	for _, p := range products {
		if _, dup := next[p.ID]; !dup {
			order = append(order, p.ID)
		}
		next[p.ID] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = next
	s.order = order
	s.fetchedAt = at
}

func (s *Snapshot) Get(id int64) (domain.ProductSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// List returns products in the order the catalog returned them.
func (s *Snapshot) List() []domain.ProductSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProductSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

func (s *Snapshot) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Decrement lowers cached stock per sold quantity, never below zero.
// Products no longer in the snapshot are skipped.
func (s *Snapshot) Decrement(deltas []StockDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		p, ok := s.products[d.ProductID]
		if !ok {
			continue
		}
		p.StockQty -= d.Quantity
		if p.StockQty < 0 {
			p.StockQty = 0
		}
		s.products[d.ProductID] = p
	}
}
