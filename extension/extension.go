// Package extension provides the Forge extension adapter for TestBank.
//
// It implements the forge.Extension interface to integrate a TestBank host
// into a Forge application with DI registration and lifecycle management.
// On start the host deploys the bank contract and, optionally, the HM25
// fault fixtures.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.testbank" or "testbank" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/api"
	"github.com/xraph/testbank/fixtures"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/store"
	"github.com/xraph/testbank/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "testbank"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Deliberately defective ledger contract host for auditing harnesses"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts a TestBank host as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	host     *host.Host
	handler  *api.Handler
	store    store.Store
	hostOpts []host.Option
}

// New creates a new TestBank Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Host returns the underlying host. This is nil until Register is called.
func (e *Extension) Host() *host.Host { return e.host }

// Handler returns the HTTP handler. It is nil until Register is called and
// stays nil when routes are disabled.
func (e *Extension) Handler() *api.Handler { return e.handler }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// builds the host, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}
	if err := e.config.Bank.Validate(); err != nil {
		return fmt.Errorf("testbank: bank config: %w", err)
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.host = host.New(e.store, e.buildHostOpts()...)

	if err := vessel.Provide(fapp.Container(), func() (*host.Host, error) {
		return e.host, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	e.handler = api.New(e.host, api.WithBasePath(e.config.BasePath))
	return vessel.Provide(fapp.Container(), func() (*api.Handler, error) {
		return e.handler, nil
	})
}

// Start implements [forge.Extension]. It starts the host and deploys the
// configured contracts.
func (e *Extension) Start(ctx context.Context) error {
	if e.host == nil {
		return errors.New("testbank: extension not initialized")
	}

	if err := e.host.Start(ctx); err != nil {
		return err
	}

	if _, err := e.host.Deploy(ctx, testbank.New(testbank.WithConfig(e.config.Bank))); err != nil {
		return fmt.Errorf("testbank: deploy bank: %w", err)
	}
	if e.config.DeployFixtures {
		if _, err := e.host.Deploy(ctx, fixtures.NewHM25()); err != nil {
			return fmt.Errorf("testbank: deploy fixtures: %w", err)
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.host != nil {
		if err := e.host.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("testbank: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildHostOpts constructs host.Option values from the resolved config.
func (e *Extension) buildHostOpts() []host.Option {
	opts := make([]host.Option, 0, len(e.hostOpts)+6)

	opts = append(opts,
		host.WithMaxDepth(e.config.MaxDepth),
		host.WithMaxSteps(e.config.MaxSteps),
		host.WithSnapshots(!e.config.DisableSnapshots, e.config.KeepSnapshots),
		host.WithReceiptBatch(e.config.ReceiptBatchSize, e.config.ReceiptFlushInterval),
		host.WithAutoMigrate(!e.config.DisableMigrate),
	)
	if e.config.InvokeTimeout > 0 {
		opts = append(opts, host.WithInvokeTimeout(e.config.InvokeTimeout))
	}

	// Pass-through host options win over config-derived ones.
	opts = append(opts, e.hostOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("testbank: configuration is required but not found in config files; " +
				"ensure 'extensions.testbank' or 'testbank' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("testbank: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("max_depth", e.config.MaxDepth),
		forge.F("receipt_batch_size", e.config.ReceiptBatchSize),
		forge.F("strict_admin", e.config.Bank.StrictAdmin),
		forge.F("reentrancy_guard", e.config.Bank.ReentrancyGuard),
		forge.F("checked_arithmetic", e.config.Bank.CheckedArithmetic),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.testbank", "testbank"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("testbank: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("testbank: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = defaults.MaxDepth
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = defaults.MaxSteps
	}
	if cfg.ReceiptBatchSize == 0 {
		cfg.ReceiptBatchSize = defaults.ReceiptBatchSize
	}
	if cfg.ReceiptFlushInterval == 0 {
		cfg.ReceiptFlushInterval = defaults.ReceiptFlushInterval
	}
	if cfg.Bank.Buckets == 0 {
		cfg.Bank.Buckets = defaults.Bank.Buckets
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableSnapshots {
		yamlConfig.DisableSnapshots = true
	}
	if programmaticConfig.DeployFixtures {
		yamlConfig.DeployFixtures = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.MaxDepth == 0 {
		yamlConfig.MaxDepth = programmaticConfig.MaxDepth
	}
	if yamlConfig.MaxSteps == 0 {
		yamlConfig.MaxSteps = programmaticConfig.MaxSteps
	}
	if yamlConfig.InvokeTimeout == 0 {
		yamlConfig.InvokeTimeout = programmaticConfig.InvokeTimeout
	}
	if yamlConfig.KeepSnapshots == 0 {
		yamlConfig.KeepSnapshots = programmaticConfig.KeepSnapshots
	}
	if yamlConfig.ReceiptBatchSize == 0 {
		yamlConfig.ReceiptBatchSize = programmaticConfig.ReceiptBatchSize
	}
	if yamlConfig.ReceiptFlushInterval == 0 {
		yamlConfig.ReceiptFlushInterval = programmaticConfig.ReceiptFlushInterval
	}
	if yamlConfig.Bank == (testbank.Config{}) {
		yamlConfig.Bank = programmaticConfig.Bank
	}

	return mergeWithDefaults(yamlConfig)
}
