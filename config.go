package testbank

import (
	"fmt"
	"log/slog"

	"github.com/xraph/testbank/directory"
	"github.com/xraph/testbank/identity"
)

// Config selects between the reproducible defective behaviour and the
// hardened baseline.
type Config struct {
	// StrictAdmin compares the full caller identity against the admin.
	// When false only word AdminWord of each identity is compared.
	StrictAdmin bool `json:"strict_admin" yaml:"strict_admin" mapstructure:"strict_admin" toml:"strict_admin"`

	// AdminWord is the 64-bit word the weak admin check projects on.
	AdminWord int `json:"admin_word" yaml:"admin_word" mapstructure:"admin_word" toml:"admin_word"`

	// ReentrancyGuard blocks nested invocations of protected procedures.
	ReentrancyGuard bool `json:"reentrancy_guard" yaml:"reentrancy_guard" mapstructure:"reentrancy_guard" toml:"reentrancy_guard"`

	// CheckedArithmetic aborts the transaction on overflow or underflow
	// instead of wrapping.
	CheckedArithmetic bool `json:"checked_arithmetic" yaml:"checked_arithmetic" mapstructure:"checked_arithmetic" toml:"checked_arithmetic"`

	// Admin is assigned at initialization. The zero value is the null identity.
	Admin identity.Identity `json:"admin" yaml:"admin" mapstructure:"admin" toml:"admin"`

	// Buckets is the directory bucket count.
	Buckets int `json:"buckets" yaml:"buckets" mapstructure:"buckets" toml:"buckets"`

	// Capacity bounds the number of accounts. Zero means unbounded.
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity" toml:"capacity"`
}

// DefaultConfig reproduces every documented defect.
func DefaultConfig() Config {
	return Config{
		AdminWord: 0,
		Buckets:   directory.DefaultBuckets,
	}
}

// HardenedConfig is the correctness baseline: strict admin check, guarded
// procedures and checked arithmetic.
func HardenedConfig() Config {
	cfg := DefaultConfig()
	cfg.StrictAdmin = true
	cfg.ReentrancyGuard = true
	cfg.CheckedArithmetic = true
	return cfg
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs MultiError
	if c.AdminWord < 0 || c.AdminWord >= identity.Words {
		errs.Add(ValidationError{Field: "admin_word", Message: fmt.Sprintf("must be in [0, %d)", identity.Words)})
	}
	if c.Buckets < 0 {
		errs.Add(ValidationError{Field: "buckets", Message: "must not be negative"})
	}
	if c.Capacity < 0 {
		errs.Add(ValidationError{Field: "capacity", Message: "must not be negative"})
	}
	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

// Comparator returns the admin access check selected by the config.
func (c Config) Comparator() identity.Comparator {
	if c.StrictAdmin {
		return identity.Strict
	}
	return identity.WordComparator(c.AdminWord)
}

// Option configures a Bank.
type Option func(*Bank)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(b *Bank) {
		b.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bank) {
		b.logger = logger
	}
}

// WithStrictAdmin enables the full-identity admin check.
func WithStrictAdmin() Option {
	return func(b *Bank) {
		b.cfg.StrictAdmin = true
	}
}

// WithAdminWord selects the word compared by the weak admin check.
func WithAdminWord(word int) Option {
	return func(b *Bank) {
		b.cfg.AdminWord = word
	}
}

// WithReentrancyGuard enables guarded mode.
func WithReentrancyGuard() Option {
	return func(b *Bank) {
		b.cfg.ReentrancyGuard = true
	}
}

// WithCheckedArithmetic makes overflow and underflow abort the transaction.
func WithCheckedArithmetic() Option {
	return func(b *Bank) {
		b.cfg.CheckedArithmetic = true
	}
}

// WithAdmin sets the identity assigned to admin at initialization.
func WithAdmin(admin identity.Identity) Option {
	return func(b *Bank) {
		b.cfg.Admin = admin
	}
}

// WithBuckets sets the directory bucket count.
func WithBuckets(n int) Option {
	return func(b *Bank) {
		b.cfg.Buckets = n
	}
}

// WithCapacity bounds the number of accounts.
func WithCapacity(n int) Option {
	return func(b *Bank) {
		b.cfg.Capacity = n
	}
}
