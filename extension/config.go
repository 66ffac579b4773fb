package extension

import (
	"time"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
)

// Config holds the TestBank extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.testbank" or "testbank" keys).
type Config struct {
	// DisableRoutes prevents the HTTP handler from being provided.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for testbank routes (default: "/testbank").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// MaxDepth bounds the call depth of a transaction (default: 16).
	MaxDepth int `json:"max_depth" mapstructure:"max_depth" yaml:"max_depth"`

	// MaxSteps bounds the loop iterations of a transaction.
	MaxSteps uint64 `json:"max_steps" mapstructure:"max_steps" yaml:"max_steps"`

	// InvokeTimeout cancels a transaction that runs longer (default: 0, none).
	InvokeTimeout time.Duration `json:"invoke_timeout" mapstructure:"invoke_timeout" yaml:"invoke_timeout"`

	// DisableSnapshots stops snapshot persistence after commits.
	DisableSnapshots bool `json:"disable_snapshots" mapstructure:"disable_snapshots" yaml:"disable_snapshots"`

	// KeepSnapshots is the number of snapshots retained per contract.
	// Zero keeps all of them.
	KeepSnapshots int `json:"keep_snapshots" mapstructure:"keep_snapshots" yaml:"keep_snapshots"`

	// ReceiptBatchSize is the number of receipts buffered before flushing to
	// the store (default: 1, synchronous).
	ReceiptBatchSize int `json:"receipt_batch_size" mapstructure:"receipt_batch_size" yaml:"receipt_batch_size"`

	// ReceiptFlushInterval is how frequently buffered receipts are flushed
	// even if the batch size has not been reached (default: 1s).
	ReceiptFlushInterval time.Duration `json:"receipt_flush_interval" mapstructure:"receipt_flush_interval" yaml:"receipt_flush_interval"`

	// Bank configures the deployed TestBank contract.
	Bank testbank.Config `json:"bank" mapstructure:"bank" yaml:"bank"`

	// DeployFixtures also deploys the HM25 fault fixtures.
	DeployFixtures bool `json:"deploy_fixtures" mapstructure:"deploy_fixtures" yaml:"deploy_fixtures"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:             "/testbank",
		MaxDepth:             contract.DefaultMaxDepth,
		MaxSteps:             contract.DefaultMaxSteps,
		ReceiptBatchSize:     1,
		ReceiptFlushInterval: time.Second,
		Bank:                 testbank.DefaultConfig(),
	}
}
