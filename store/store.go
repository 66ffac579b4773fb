package store

import (
	"context"

	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
)

// Store is the unified storage interface for host records.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Receipt methods
	CreateReceipt(ctx context.Context, r *receipt.Receipt) error
	GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error)
	ListReceipts(ctx context.Context, opts receipt.ListOpts) ([]*receipt.Receipt, error)

	// Snapshot methods
	SaveSnapshot(ctx context.Context, s *snapshot.Snapshot) error
	LatestSnapshot(ctx context.Context, contract string) (*snapshot.Snapshot, error)
	ListSnapshots(ctx context.Context, contract string, limit int) ([]*snapshot.Snapshot, error)
	PruneSnapshots(ctx context.Context, contract string, keep int) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
