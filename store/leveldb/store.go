// Package leveldb provides an embedded, file-backed Store built on goleveldb.
//
// Layout:
//
//	meta/receipt-seq          last receipt sequence (uint64, big-endian)
//	rcpt/seq/<seq>            receipt JSON, in insertion order
//	rcpt/id/<receipt id>      receipt sequence
//	snap/<contract>/<seq>     snapshot JSON, in snapshot sequence order
package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	"github.com/xraph/testbank/store"
)

var _ store.Store = (*Store)(nil)

var (
	keyReceiptSeq   = []byte("meta/receipt-seq")
	prefixReceiptSq = []byte("rcpt/seq/")
	prefixReceiptID = []byte("rcpt/id/")
	prefixSnapshot  = []byte("snap/")
)

// Store persists receipts and snapshots in a LevelDB database.
type Store struct {
	db *leveldb.DB

	mu         sync.Mutex
	receiptSeq uint64
}

// New opens or creates a database at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	return newStore(db)
}

// NewWithStorage opens a database on an explicit goleveldb storage, such as
// storage.NewMemStorage for tests.
func NewWithStorage(stor storage.Storage) (*Store, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open: %w", err)
	}
	return newStore(db)
}

func newStore(db *leveldb.DB) (*Store, error) {
	s := &Store{db: db}
	raw, err := db.Get(keyReceiptSeq, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("leveldb: load receipt sequence: %w", err)
	default:
		s.receiptSeq = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

func seqBytes(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func join(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func snapshotPrefix(contract string) []byte {
	return join(prefixSnapshot, []byte(contract), []byte("/"))
}

func (s *Store) mapErr(err error) error {
	if errors.Is(err, leveldb.ErrClosed) {
		return testbank.ErrStoreClosed
	}
	return err
}

// Receipt Store implementation

func (s *Store) CreateReceipt(_ context.Context, r *receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idKey := join(prefixReceiptID, []byte(r.ID.String()))
	exists, err := s.db.Has(idKey, nil)
	if err != nil {
		return s.mapErr(err)
	}
	if exists {
		return testbank.ErrAlreadyExists
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("leveldb: encode receipt: %w", err)
	}

	seq := s.receiptSeq + 1
	batch := new(leveldb.Batch)
	batch.Put(join(prefixReceiptSq, seqBytes(seq)), data)
	batch.Put(idKey, seqBytes(seq))
	batch.Put(keyReceiptSeq, seqBytes(seq))
	if err := s.db.Write(batch, nil); err != nil {
		return s.mapErr(err)
	}
	s.receiptSeq = seq
	return nil
}

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	seq, err := s.db.Get(join(prefixReceiptID, []byte(receiptID.String())), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, testbank.ErrReceiptNotFound
	}
	if err != nil {
		return nil, s.mapErr(err)
	}

	data, err := s.db.Get(join(prefixReceiptSq, seq), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, testbank.ErrReceiptNotFound
	}
	if err != nil {
		return nil, s.mapErr(err)
	}
	return decodeReceipt(data)
}

func decodeReceipt(data []byte) (*receipt.Receipt, error) {
	var r receipt.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("leveldb: decode receipt: %w", err)
	}
	return &r, nil
}

func (s *Store) ListReceipts(_ context.Context, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	iter := s.db.NewIterator(util.BytesPrefix(prefixReceiptSq), nil)
	defer iter.Release()

	result := make([]*receipt.Receipt, 0)
	skipped := 0
	for ok := iter.Last(); ok; ok = iter.Prev() {
		r, err := decodeReceipt(iter.Value())
		if err != nil {
			return nil, err
		}
		if opts.Contract != "" && r.Contract != opts.Contract {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		result = append(result, r)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, s.mapErr(err)
	}
	return result, nil
}

// Snapshot Store implementation

func (s *Store) SaveSnapshot(_ context.Context, snap *snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("leveldb: encode snapshot: %w", err)
	}
	key := join(snapshotPrefix(snap.Contract), seqBytes(snap.Sequence))
	return s.mapErr(s.db.Put(key, data, nil))
}

func decodeSnapshot(data []byte) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("leveldb: decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Store) LatestSnapshot(_ context.Context, contract string) (*snapshot.Snapshot, error) {
	iter := s.db.NewIterator(util.BytesPrefix(snapshotPrefix(contract)), nil)
	defer iter.Release()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, s.mapErr(err)
		}
		return nil, testbank.ErrSnapshotNotFound
	}
	return decodeSnapshot(iter.Value())
}

func (s *Store) ListSnapshots(_ context.Context, contract string, limit int) ([]*snapshot.Snapshot, error) {
	iter := s.db.NewIterator(util.BytesPrefix(snapshotPrefix(contract)), nil)
	defer iter.Release()

	result := make([]*snapshot.Snapshot, 0)
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if limit > 0 && len(result) == limit {
			break
		}
		snap, err := decodeSnapshot(iter.Value())
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	if err := iter.Error(); err != nil {
		return nil, s.mapErr(err)
	}
	return result, nil
}

func (s *Store) PruneSnapshots(_ context.Context, contract string, keep int) (int64, error) {
	iter := s.db.NewIterator(util.BytesPrefix(snapshotPrefix(contract)), nil)
	var keys [][]byte
	for iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, s.mapErr(err)
	}

	if keep < 0 {
		keep = 0
	}
	if len(keys) <= keep {
		return 0, nil
	}

	batch := new(leveldb.Batch)
	stale := keys[:len(keys)-keep]
	for _, k := range stale {
		batch.Delete(k)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, s.mapErr(err)
	}
	return int64(len(stale)), nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return s.mapErr(err)
}

func (s *Store) Close() error {
	return s.db.Close()
}
