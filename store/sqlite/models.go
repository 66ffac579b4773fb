package sqlite

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

// receiptModel keeps the filterable fields in columns and the full receipt
// in a JSON text body.
type receiptModel struct {
	grove.BaseModel `grove:"table:testbank_receipts"`

	ID            string          `grove:"id,pk"`
	TransactionID string          `grove:"transaction_id"`
	Contract      string          `grove:"contract"`
	Kind          string          `grove:"kind"`
	EntryPoint    string          `grove:"entry_point"`
	Status        string          `grove:"status"`
	Fault         string          `grove:"fault"`
	Body          json.RawMessage `grove:"body"`
	CreatedAt     time.Time       `grove:"created_at"`
	UpdatedAt     time.Time       `grove:"updated_at"`
}

func toReceiptModel(r *receipt.Receipt) (*receiptModel, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("testbank/sqlite: encode receipt: %w", err)
	}
	return &receiptModel{
		ID:            r.ID.String(),
		TransactionID: r.TransactionID.String(),
		Contract:      r.Contract,
		Kind:          string(r.Kind),
		EntryPoint:    r.EntryPoint,
		Status:        string(r.Status),
		Fault:         string(r.Fault),
		Body:          body,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	var r receipt.Receipt
	if err := json.Unmarshal(m.Body, &r); err != nil {
		return nil, fmt.Errorf("testbank/sqlite: decode receipt %s: %w", m.ID, err)
	}
	r.Entity = types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
	return &r, nil
}

// ==================== Snapshot models ====================

type snapshotModel struct {
	grove.BaseModel `grove:"table:testbank_snapshots"`

	ID            string    `grove:"id,pk"`
	Contract      string    `grove:"contract"`
	Self          string    `grove:"self"`
	Sequence      int64     `grove:"sequence"`
	TransactionID string    `grove:"transaction_id"`
	State         []byte    `grove:"state"`
	Checksum      string    `grove:"checksum"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
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
