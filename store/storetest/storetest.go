// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	"github.com/xraph/testbank/store"
	"github.com/xraph/testbank/types"
)

// Run exercises s against the shared contract. newStore must return an empty,
// migrated store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Receipts", func(t *testing.T) { testReceipts(t, newStore(t)) })
	t.Run("ReceiptFilters", func(t *testing.T) { testReceiptFilters(t, newStore(t)) })
	t.Run("Snapshots", func(t *testing.T) { testSnapshots(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

// NewReceipt builds a committed receipt for tests.
func NewReceipt(contractName string, status receipt.Status) *receipt.Receipt {
	return &receipt.Receipt{
		Entity:        types.NewEntity(),
		ID:            id.NewReceiptID(),
		TransactionID: id.NewTransactionID(),
		Contract:      contractName,
		Kind:          contract.KindProcedure,
		EntryPoint:    "Withdraw",
		EntryPointID:  2,
		Caller:        identity.FromWords(1, 2, 3, 4),
		Value:         5,
		Status:        status,
		Outcome:       contract.Applied().Wrap(true),
		Input:         json.RawMessage(`{"amount":100}`),
		Output:        json.RawMessage(`{"remainingBalance":0}`),
		Calls: []receipt.Call{{
			Contract:   contractName,
			Kind:       contract.KindProcedure,
			EntryPoint: "Withdraw",
			Depth:      2,
			Outcome:    contract.Applied(),
		}},
		Transfers: []receipt.Transfer{{To: identity.FromUint64(1), Amount: 100, Paid: true, Depth: 1}},
		Steps:     12,
		MaxDepth:  2,
	}
}

func testReceipts(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewReceipt("TestBank", receipt.StatusCommitted)

	require.NoError(t, s.CreateReceipt(ctx, r))
	assert.ErrorIs(t, s.CreateReceipt(ctx, r), testbank.ErrAlreadyExists)

	got, err := s.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID.String(), got.ID.String())
	assert.Equal(t, r.TransactionID.String(), got.TransactionID.String())
	assert.True(t, got.Caller.Equal(r.Caller))
	assert.Equal(t, r.Outcome, got.Outcome)
	assert.Equal(t, r.Calls, got.Calls)
	assert.Equal(t, r.Transfers, got.Transfers)
	assert.JSONEq(t, string(r.Input), string(got.Input))
	assert.Equal(t, uint64(12), got.Steps)
	assert.True(t, got.Reentered())

	_, err = s.GetReceipt(ctx, id.NewReceiptID())
	assert.ErrorIs(t, err, testbank.ErrReceiptNotFound)
	assert.True(t, testbank.IsNotFound(err))
}

func testReceiptFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	var created []*receipt.Receipt
	for i, c := range []string{"TestBank", "HM25", "TestBank", "TestBank"} {
		status := receipt.StatusCommitted
		if i == 2 {
			status = receipt.StatusAborted
		}
		r := NewReceipt(c, status)
		require.NoError(t, s.CreateReceipt(ctx, r))
		created = append(created, r)
	}

	all, err := s.ListReceipts(ctx, receipt.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, created[3].ID.String(), all[0].ID.String())

	bank, err := s.ListReceipts(ctx, receipt.ListOpts{Contract: "TestBank"})
	require.NoError(t, err)
	assert.Len(t, bank, 3)

	aborted, err := s.ListReceipts(ctx, receipt.ListOpts{Status: receipt.StatusAborted})
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.Equal(t, created[2].ID.String(), aborted[0].ID.String())

	page, err := s.ListReceipts(ctx, receipt.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, created[2].ID.String(), page[0].ID.String())
	assert.Equal(t, created[1].ID.String(), page[1].ID.String())
}

func testSnapshots(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx, "TestBank")
	assert.ErrorIs(t, err, testbank.ErrSnapshotNotFound)

	for seq := uint64(1); seq <= 4; seq++ {
		require.NoError(t, s.SaveSnapshot(ctx, &snapshot.Snapshot{
			Entity:   types.NewEntity(),
			ID:       id.NewSnapshotID(),
			Contract: "TestBank",
			Self:     identity.FromUint64(7),
			Sequence: seq,
			State:    []byte(fmt.Sprintf(`{"seq":%d}`, seq)),
			Checksum: "c",
		}))
	}
	require.NoError(t, s.SaveSnapshot(ctx, &snapshot.Snapshot{
		ID: id.NewSnapshotID(), Contract: "HM25", Sequence: 9, State: []byte(`{}`),
	}))

	latest, err := s.LatestSnapshot(ctx, "TestBank")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), latest.Sequence)
	assert.Equal(t, `{"seq":4}`, string(latest.State))
	assert.True(t, latest.Self.Equal(identity.FromUint64(7)))

	list, err := s.ListSnapshots(ctx, "TestBank", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(4), list[0].Sequence)
	assert.Equal(t, uint64(3), list[1].Sequence)

	removed, err := s.PruneSnapshots(ctx, "TestBank", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	list, err = s.ListSnapshots(ctx, "TestBank", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(4), list[0].Sequence)

	other, err := s.LatestSnapshot(ctx, "HM25")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), other.Sequence)
}
