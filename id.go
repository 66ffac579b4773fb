package testbank

import "github.com/xraph/testbank/id"

// ID is the identifier type for host records (deployments, receipts, snapshots).
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
