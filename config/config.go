// Package config loads the testbankd daemon configuration from YAML or TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/internal/logging"
)

// Store drivers the daemon can open on its own.
const (
	DriverMemory  = "memory"
	DriverLevelDB = "leveldb"
)

// Config errors.
var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrUnknownKeys       = errors.New("config: unknown keys")
)

// Config is the daemon configuration.
type Config struct {
	// Listen is the HTTP listen address (default: ":8080").
	Listen string `json:"listen" yaml:"listen" toml:"listen"`

	// BasePath mounts the API under a prefix.
	BasePath string `json:"base_path" yaml:"base_path" toml:"base_path"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	Log   logging.Config  `json:"log" yaml:"log" toml:"log"`
	Store StoreConfig     `json:"store" yaml:"store" toml:"store"`
	Host  HostConfig      `json:"host" yaml:"host" toml:"host"`
	Bank  testbank.Config `json:"bank" yaml:"bank" toml:"bank"`

	// Fixtures deploys the HM25 fault fixtures next to the bank.
	Fixtures bool `json:"fixtures" yaml:"fixtures" toml:"fixtures"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is memory or leveldb (default: memory).
	Driver string `json:"driver" yaml:"driver" toml:"driver"`

	// Path is the leveldb directory.
	Path string `json:"path" yaml:"path" toml:"path"`
}

// HostConfig holds the execution limits and persistence policy of the host.
type HostConfig struct {
	MaxDepth             int           `json:"max_depth" yaml:"max_depth" toml:"max_depth"`
	MaxSteps             uint64        `json:"max_steps" yaml:"max_steps" toml:"max_steps"`
	InvokeTimeout        time.Duration `json:"invoke_timeout" yaml:"invoke_timeout" toml:"invoke_timeout"`
	DisableSnapshots     bool          `json:"disable_snapshots" yaml:"disable_snapshots" toml:"disable_snapshots"`
	KeepSnapshots        int           `json:"keep_snapshots" yaml:"keep_snapshots" toml:"keep_snapshots"`
	ReceiptBatchSize     int           `json:"receipt_batch_size" yaml:"receipt_batch_size" toml:"receipt_batch_size"`
	ReceiptFlushInterval time.Duration `json:"receipt_flush_interval" yaml:"receipt_flush_interval" toml:"receipt_flush_interval"`
}

// Default returns the daemon defaults: in-memory store, JSON logs to
// stderr and a bank carrying every documented defect.
func Default() Config {
	return Config{
		Listen:          ":8080",
		ShutdownTimeout: 10 * time.Second,
		Log: logging.Config{
			Level:     "info",
			Format:    "json",
			MaxSizeMB: 100,
		},
		Store: StoreConfig{Driver: DriverMemory},
		Host: HostConfig{
			MaxDepth:             contract.DefaultMaxDepth,
			MaxSteps:             contract.DefaultMaxSteps,
			ReceiptBatchSize:     1,
			ReceiptFlushInterval: time.Second,
		},
		Bank: testbank.DefaultConfig(),
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml, .yml or .toml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseYAML decodes a YAML document over the defaults.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: yaml: %w", err)
	}
	return cfg, cfg.Validate()
}

// ParseTOML decodes a TOML document over the defaults.
func ParseTOML(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownKeys, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs testbank.MultiError
	if c.Listen == "" {
		errs.Add(testbank.ValidationError{Field: "listen", Message: "is required"})
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverLevelDB:
		if c.Store.Path == "" {
			errs.Add(testbank.ValidationError{Field: "store.path", Message: "is required for leveldb"})
		}
	default:
		errs.Add(testbank.ValidationError{Field: "store.driver", Message: fmt.Sprintf("unknown driver %q", c.Store.Driver)})
	}
	if c.Host.MaxDepth < 0 {
		errs.Add(testbank.ValidationError{Field: "host.max_depth", Message: "must not be negative"})
	}
	if c.Host.KeepSnapshots < 0 {
		errs.Add(testbank.ValidationError{Field: "host.keep_snapshots", Message: "must not be negative"})
	}
	if err := c.Bank.Validate(); err != nil {
		var bankErrs testbank.MultiError
		if errors.As(err, &bankErrs) {
			for _, e := range bankErrs.Errors {
				errs.Add(e)
			}
		} else {
			errs.Add(err)
		}
	}
	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", testbank.ErrInvalidConfig, errs)
	}
	return nil
}
