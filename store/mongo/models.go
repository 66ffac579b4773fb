package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	"github.com/xraph/testbank/types"
)

// ==================== Receipt models ====================

// receiptModel keeps the filterable fields as document fields and the full
// receipt as JSON, so u64 amounts above the BSON int64 range survive.
type receiptModel struct {
	grove.BaseModel `grove:"table:testbank_receipts"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	TransactionID string    `grove:"transaction_id" bson:"transaction_id"`
	Contract      string    `grove:"contract"       bson:"contract"`
	Kind          string    `grove:"kind"           bson:"kind"`
	EntryPoint    string    `grove:"entry_point"    bson:"entry_point"`
	Status        string    `grove:"status"         bson:"status"`
	Fault         string    `grove:"fault"          bson:"fault,omitempty"`
	Body          string    `grove:"body"           bson:"body"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toReceiptModel(r *receipt.Receipt) (*receiptModel, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("testbank/mongo: encode receipt: %w", err)
	}
	return &receiptModel{
		ID:            r.ID.String(),
		TransactionID: r.TransactionID.String(),
		Contract:      r.Contract,
		Kind:          string(r.Kind),
		EntryPoint:    r.EntryPoint,
		Status:        string(r.Status),
		Fault:         string(r.Fault),
		Body:          string(body),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	var r receipt.Receipt
	if err := json.Unmarshal([]byte(m.Body), &r); err != nil {
		return nil, fmt.Errorf("testbank/mongo: decode receipt %s: %w", m.ID, err)
	}
	r.Entity = types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
	return &r, nil
}

// ==================== Snapshot models ====================

type snapshotModel struct {
	grove.BaseModel `grove:"table:testbank_snapshots"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	Contract      string    `grove:"contract"       bson:"contract"`
	Self          string    `grove:"self"           bson:"self"`
	Sequence      int64     `grove:"sequence"       bson:"sequence"`
	TransactionID string    `grove:"transaction_id" bson:"transaction_id"`
	State         []byte    `grove:"state"          bson:"state"`
	Checksum      string    `grove:"checksum"       bson:"checksum"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toSnapshotModel(s *snapshot.Snapshot) *snapshotModel {
	return &snapshotModel{
		ID:            s.ID.String(),
		Contract:      s.Contract,
		Self:          s.Self.String(),
		Sequence:      int64(s.Sequence), //nolint:gosec // sequences stay far below 2^63
		TransactionID: s.TransactionID.String(),
		State:         s.State,
		Checksum:      s.Checksum,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromSnapshotModel(m *snapshotModel) (*snapshot.Snapshot, error) {
	snapID, err := id.ParseSnapshotID(m.ID)
	if err != nil {
		return nil, err
	}
	self, err := identity.Parse(m.Self)
	if err != nil {
		return nil, err
	}
	var txID id.ID
	if m.TransactionID != "" {
		if txID, err = id.ParseTransactionID(m.TransactionID); err != nil {
			return nil, err
		}
	}
	return &snapshot.Snapshot{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            snapID,
		Contract:      m.Contract,
		Self:          self,
		Sequence:      uint64(m.Sequence), //nolint:gosec // written from a uint64
		TransactionID: txID,
		State:         m.State,
		Checksum:      m.Checksum,
	}, nil
}
