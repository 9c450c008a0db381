package simulator

import (
	"context"

	"github.com/fjod/go_pos/internal/receipt"
)

// PrintFromKafka records receipt requests that arrive on the receipt topic.
func (s *Store) PrintFromKafka(ctx context.Context, req receipt.Requested) error {
	return s.RecordReceipt(ctx, req.SaleID, "kafka")
}
