package testbank

import (
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/types"
)

// Re-export common types so callers don't have to import the leaf packages.

// Identity is re-exported from the identity package.
type Identity = identity.Identity

// Outcome is re-exported from the contract package.
type Outcome = contract.Outcome

// Invocation is re-exported from the contract package.
type Invocation = contract.Invocation

// Amount is re-exported from the types package.
type Amount = types.Amount

// Entity is re-exported from the types package.
type Entity = types.Entity

// Re-export identity constructors.
var (
	NullIdentity  = identity.Null
	ParseIdentity = identity.Parse
	FromWords     = identity.FromWords
	FromUint64    = identity.FromUint64
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
