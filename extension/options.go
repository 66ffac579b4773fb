package extension

import (
	"time"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/plugin"
	"github.com/xraph/testbank/store"
)

// Option configures the TestBank Forge extension.
type Option func(*Extension)

// WithStore sets the store for the host.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithHostOption passes a host.Option through to the underlying host.
func WithHostOption(opt host.Option) Option {
	return func(e *Extension) {
		e.hostOpts = append(e.hostOpts, opt)
	}
}

// WithPlugin registers a host plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.hostOpts = append(e.hostOpts, host.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithBankConfig sets the configuration of the deployed bank.
func WithBankConfig(cfg testbank.Config) Option {
	return func(e *Extension) { e.config.Bank = cfg }
}

// WithDisableRoutes prevents the HTTP handler from being provided.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for testbank routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithReceiptBatch sets the receipt buffer size and flush interval.
func WithReceiptBatch(size int, interval time.Duration) Option {
	return func(e *Extension) {
		e.config.ReceiptBatchSize = size
		e.config.ReceiptFlushInterval = interval
	}
}

// WithKeepSnapshots sets how many snapshots are retained per contract.
func WithKeepSnapshots(keep int) Option {
	return func(e *Extension) { e.config.KeepSnapshots = keep }
}

// WithFixtures deploys the HM25 fault fixtures next to the bank.
func WithFixtures() Option {
	return func(e *Extension) { e.config.DeployFixtures = true }
}
