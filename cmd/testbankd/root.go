package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/config"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/fixtures"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/internal/logging"
	"github.com/xraph/testbank/store"
	"github.com/xraph/testbank/store/leveldb"
	"github.com/xraph/testbank/store/memory"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "testbankd",
		Short: "Host the TestBank ledger contract",
		Long: `testbankd deploys the TestBank ledger contract, with its documented
defects enabled by default, and optionally the HM25 fault fixtures.

Use "serve" to expose the host over HTTP, "invoke" to run a single
transaction and "entrypoints" to list a contract's registered entry points.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(a),
		newInvokeCmd(a),
		newEntryPointsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, closeLog, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) openStore() (store.Store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverLevelDB:
		if err := os.MkdirAll(a.cfg.Store.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		return leveldb.New(a.cfg.Store.Path)
	default:
		return memory.New(), nil
	}
}

// newHost opens the configured store and builds a host from the config.
func (a *app) newHost(extra ...host.Option) (*host.Host, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}

	hc := a.cfg.Host
	opts := []host.Option{
		host.WithLogger(a.logger),
		host.WithMaxDepth(hc.MaxDepth),
		host.WithMaxSteps(hc.MaxSteps),
		host.WithSnapshots(!hc.DisableSnapshots, hc.KeepSnapshots),
		host.WithReceiptBatch(hc.ReceiptBatchSize, hc.ReceiptFlushInterval),
	}
	if hc.InvokeTimeout > 0 {
		opts = append(opts, host.WithInvokeTimeout(hc.InvokeTimeout))
	}
	return host.New(s, append(opts, extra...)...), nil
}

// contractFor builds the contract deployed under name.
func (a *app) contractFor(name string) (contract.Contract, error) {
	switch name {
	case testbank.ContractName:
		return testbank.New(testbank.WithConfig(a.cfg.Bank), testbank.WithLogger(a.logger)), nil
	case fixtures.HM25Name:
		return fixtures.NewHM25(), nil
	default:
		return nil, fmt.Errorf("%w: %s", host.ErrContractNotFound, name)
	}
}
