package catalog

import (
	"fmt"
	"strings"
)

type Filters struct {
	Query       string
	InStockOnly bool
	Limit       int
}

// Key identifies equivalent searches for caching and request coalescing.
func (f Filters) Key() string {
	return fmt.Sprintf("q=%s|stock=%t|limit=%d", strings.ToLower(strings.TrimSpace(f.Query)), f.InStockOnly, f.Limit)
}
