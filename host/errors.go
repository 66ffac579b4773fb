package host

import (
	"errors"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
)

// Sentinel errors returned by the host.
var (
	ErrContractNotFound   = errors.New("host: contract not found")
	ErrEntryPointNotFound = errors.New("host: entry point not found")
	ErrAlreadyDeployed    = errors.New("host: contract already deployed")
	ErrInsufficientFunds  = errors.New("host: insufficient funds")
	ErrInvalidInput       = errors.New("host: invalid input")
	ErrExecutionFault     = errors.New("host: execution fault")
	ErrSnapshotMismatch   = errors.New("host: snapshot checksum mismatch")
)

// IsFault reports whether err is a host fault.
func IsFault(err error) bool {
	_, ok := contract.AsFault(err)
	return ok
}

// FaultKind returns the kind of the host fault carried by err.
func FaultKind(err error) (contract.FaultKind, bool) {
	f, ok := contract.AsFault(err)
	if !ok {
		return "", false
	}
	return f.Kind, true
}

// IsNotFound reports whether err is any not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrEntryPointNotFound) ||
		testbank.IsNotFound(err)
}
