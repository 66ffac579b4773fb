// Package memory provides an in-process Store for tests and ephemeral hosts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	"github.com/xraph/testbank/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Receipt storage, in insertion order
	receipts     map[string]*receipt.Receipt
	receiptOrder []string

	// Snapshot storage, per contract in sequence order
	snapshots map[string][]*snapshot.Snapshot
}

func New() *Store {
	return &Store{
		receipts:  make(map[string]*receipt.Receipt),
		snapshots: make(map[string][]*snapshot.Snapshot),
	}
}

// Receipt Store implementation
func (s *Store) CreateReceipt(_ context.Context, r *receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return testbank.ErrStoreClosed
	}
	key := r.ID.String()
	if _, exists := s.receipts[key]; exists {
		return testbank.ErrAlreadyExists
	}
	s.receipts[key] = r
	s.receiptOrder = append(s.receiptOrder, key)
	return nil
}

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.receipts[receiptID.String()]; ok {
		return r, nil
	}
	return nil, testbank.ErrReceiptNotFound
}

func (s *Store) ListReceipts(_ context.Context, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*receipt.Receipt, 0)
	for i := len(s.receiptOrder) - 1; i >= 0; i-- {
		r := s.receipts[s.receiptOrder[i]]
		if opts.Contract != "" && r.Contract != opts.Contract {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		result = append(result, r)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Snapshot Store implementation
func (s *Store) SaveSnapshot(_ context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return testbank.ErrStoreClosed
	}
	list := s.snapshots[snap.Contract]
	for i, existing := range list {
		if existing.Sequence == snap.Sequence {
			list[i] = snap
			return nil
		}
	}
	list = append(list, snap)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	s.snapshots[snap.Contract] = list
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, contract string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[contract]
	if len(list) == 0 {
		return nil, testbank.ErrSnapshotNotFound
	}
	return list[len(list)-1], nil
}

func (s *Store) ListSnapshots(_ context.Context, contract string, limit int) ([]*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[contract]
	result := make([]*snapshot.Snapshot, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, list[i])
	}
	return result, nil
}

func (s *Store) PruneSnapshots(_ context.Context, contract string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.snapshots[contract]
	if keep < 0 {
		keep = 0
	}
	if len(list) <= keep {
		return 0, nil
	}
	removed := len(list) - keep
	s.snapshots[contract] = append([]*snapshot.Snapshot(nil), list[removed:]...)
	return int64(removed), nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return testbank.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
