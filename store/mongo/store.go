package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	bankstore "github.com/xraph/testbank/store"
)

// Collection name constants.
const (
	colReceipts  = "testbank_receipts"
	colSnapshots = "testbank_snapshots"
)

// compile-time interface check
var _ bankstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all testbank collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo %s indexes: %w", testbank.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	m, err := toReceiptModel(r)
	if err != nil {
		return err
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return testbank.ErrAlreadyExists
		}
		return fmt.Errorf("testbank/mongo: create receipt: %w", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	var m receiptModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": receiptID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, testbank.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("testbank/mongo: get receipt: %w", err)
	}
	return fromReceiptModel(&m)
}

func (s *Store) ListReceipts(ctx context.Context, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	var models []receiptModel

	filter := bson.M{}
	if opts.Contract != "" {
		filter["contract"] = opts.Contract
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("testbank/mongo: list receipts: %w", err)
	}

	result := make([]*receipt.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Snapshot Store ====================

func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	m := toSnapshotModel(snap)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"contract": m.Contract, "sequence": m.Sequence}).
		SetUpdate(bson.M{
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": m.CreatedAt,
			},
			"$set": bson.M{
				"contract":       m.Contract,
				"self":           m.Self,
				"sequence":       m.Sequence,
				"transaction_id": m.TransactionID,
				"state":          m.State,
				"checksum":       m.Checksum,
				"updated_at":     m.UpdatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("testbank/mongo: save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, contract string) (*snapshot.Snapshot, error) {
	var models []snapshotModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"contract": contract}).
		Sort(bson.D{{Key: "sequence", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("testbank/mongo: latest snapshot: %w", err)
	}
	if len(models) == 0 {
		return nil, testbank.ErrSnapshotNotFound
	}
	return fromSnapshotModel(&models[0])
}

func (s *Store) ListSnapshots(ctx context.Context, contract string, limit int) ([]*snapshot.Snapshot, error) {
	var models []snapshotModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"contract": contract}).
		Sort(bson.D{{Key: "sequence", Value: -1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("testbank/mongo: list snapshots: %w", err)
	}

	result := make([]*snapshot.Snapshot, len(models))
	for i := range models {
		snap, err := fromSnapshotModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = snap
	}
	return result, nil
}

func (s *Store) PruneSnapshots(ctx context.Context, contract string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	var stale []snapshotModel
	err := s.mdb.NewFind(&stale).
		Filter(bson.M{"contract": contract}).
		Sort(bson.D{{Key: "sequence", Value: -1}}).
		Skip(int64(keep)).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("testbank/mongo: find stale snapshots: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stale))
	for i := range stale {
		ids[i] = stale[i].ID
	}
	res, err := s.mdb.NewDelete((*snapshotModel)(nil)).
		Filter(bson.M{"_id": bson.M{"$in": ids}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("testbank/mongo: prune snapshots: %w", err)
	}
	return res.DeletedCount(), nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all testbank collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colReceipts: {
			{Keys: bson.D{{Key: "contract", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
		},
		colSnapshots: {
			{
				Keys:    bson.D{{Key: "contract", Value: 1}, {Key: "sequence", Value: -1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
