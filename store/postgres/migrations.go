package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the testbank store.
var Migrations = migrate.NewGroup("testbank")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_testbank_receipts",
			Version: "20250701000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS testbank_receipts (
    id             TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL DEFAULT '',
    contract       TEXT NOT NULL DEFAULT '',
    kind           TEXT NOT NULL DEFAULT '',
    entry_point    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT '',
    fault          TEXT NOT NULL DEFAULT '',
    body           JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_testbank_receipts_contract ON testbank_receipts (contract, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_testbank_receipts_status ON testbank_receipts (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_testbank_receipts_tx ON testbank_receipts (transaction_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS testbank_receipts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_testbank_snapshots",
			Version: "20250701000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS testbank_snapshots (
    id             TEXT PRIMARY KEY,
    contract       TEXT NOT NULL,
    self           TEXT NOT NULL DEFAULT '',
    sequence       BIGINT NOT NULL,
    transaction_id TEXT NOT NULL DEFAULT '',
    state          BYTEA NOT NULL,
    checksum       TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_testbank_snapshots_seq ON testbank_snapshots (contract, sequence);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS testbank_snapshots`)
				return err
			},
		},
	)
}
