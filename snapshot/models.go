package snapshot

import (
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/types"
)

// Snapshot is the serialized state of a deployed contract after a committed
// transaction.
type Snapshot struct {
	types.Entity
	ID            id.SnapshotID     `json:"id"`
	Contract      string            `json:"contract"`
	Self          identity.Identity `json:"self"`
	Sequence      uint64            `json:"sequence"`
	TransactionID id.TransactionID  `json:"transaction_id"`
	State         []byte            `json:"state"`
	Checksum      string            `json:"checksum"`
}
