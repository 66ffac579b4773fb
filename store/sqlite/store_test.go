package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/store"
	"github.com/xraph/testbank/store/sqlite"
	"github.com/xraph/testbank/store/storetest"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	require.NoError(t, drv.Open(ctx, filepath.Join(t.TempDir(), "testbank.db")))
	db, err := grove.Open(drv)
	require.NoError(t, err)

	s := sqlite.New(db)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openStore(t) })
}

func TestExecutorRegistered(t *testing.T) {
	executor, err := migrate.NewExecutorFor(sqlitedriver.New())
	require.NoError(t, err)
	assert.NotNil(t, executor)
}

func TestMigrateIdempotent(t *testing.T) {
	s := openStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestReceiptTimestamps(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	r := storetest.NewReceipt("TestBank", receipt.StatusCommitted)
	r.CreatedAt = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	r.UpdatedAt = r.CreatedAt
	require.NoError(t, s.CreateReceipt(ctx, r))

	got, err := s.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
	assert.True(t, r.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v", got.UpdatedAt)
}
