package receipt

import (
	"context"

	"github.com/xraph/testbank/id"
)

type Store interface {
	Create(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, receiptID id.ReceiptID) (*Receipt, error)
	List(ctx context.Context, opts ListOpts) ([]*Receipt, error)
}

// ListOpts filters receipt listings. Results are newest first.
type ListOpts struct {
	Contract string
	Status   Status
	Limit    int
	Offset   int
}
