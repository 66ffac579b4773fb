package leveldb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/store"
	"github.com/xraph/testbank/store/leveldb"
	"github.com/xraph/testbank/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := leveldb.NewWithStorage(storage.NewMemStorage())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenKeepsSequence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db")

	s, err := leveldb.New(path)
	require.NoError(t, err)
	first := storetest.NewReceipt("TestBank", receipt.StatusCommitted)
	require.NoError(t, s.CreateReceipt(ctx, first))
	require.NoError(t, s.Close())

	s, err = leveldb.New(path)
	require.NoError(t, err)
	defer s.Close()

	second := storetest.NewReceipt("TestBank", receipt.StatusCommitted)
	require.NoError(t, s.CreateReceipt(ctx, second))

	list, err := s.ListReceipts(ctx, receipt.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID.String(), list[0].ID.String())
	assert.Equal(t, first.ID.String(), list[1].ID.String())
}
