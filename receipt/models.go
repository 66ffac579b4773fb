package receipt

import (
	"encoding/json"
	"time"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/types"
)

// Status is the final state of a top-level transaction.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusAborted   Status = "aborted"
	StatusRejected  Status = "rejected"
)

// Receipt records one top-level transaction.
type Receipt struct {
	types.Entity
	ID            id.ReceiptID       `json:"id"`
	TransactionID id.TransactionID   `json:"transaction_id"`
	Contract      string             `json:"contract"`
	Kind          contract.Kind      `json:"kind"`
	EntryPoint    string             `json:"entry_point"`
	EntryPointID  uint16             `json:"entry_point_id"`
	Caller        identity.Identity  `json:"caller"`
	Value         uint64             `json:"value"`
	Status        Status             `json:"status"`
	Outcome       contract.Outcome   `json:"outcome"`
	Fault         contract.FaultKind `json:"fault,omitempty"`
	Error         string             `json:"error,omitempty"`
	Input         json.RawMessage    `json:"input,omitempty"`
	Output        json.RawMessage    `json:"output,omitempty"`
	Calls         []Call             `json:"calls,omitempty"`
	Transfers     []Transfer         `json:"transfers,omitempty"`
	Steps         uint64             `json:"steps"`
	MaxDepth      int                `json:"max_depth"`
	Duration      time.Duration      `json:"duration"`
}

// Call is a nested invocation made while the transaction ran.
type Call struct {
	Contract     string            `json:"contract"`
	Kind         contract.Kind     `json:"kind"`
	EntryPoint   string            `json:"entry_point"`
	EntryPointID uint16            `json:"entry_point_id"`
	Caller       identity.Identity `json:"caller"`
	Depth        int               `json:"depth"`
	Outcome      contract.Outcome  `json:"outcome"`
}

// Transfer is one use of the transfer primitive.
type Transfer struct {
	From   identity.Identity `json:"from"`
	To     identity.Identity `json:"to"`
	Amount uint64            `json:"amount"`
	Paid   bool              `json:"paid"`
	Depth  int               `json:"depth"`
}

// Reentered reports whether any nested call re-entered the receipt's contract.
func (r *Receipt) Reentered() bool {
	for _, c := range r.Calls {
		if c.Contract == r.Contract {
			return true
		}
	}
	return false
}

// Paid sums the transfers that were actually paid.
func (r *Receipt) Paid() uint64 {
	var total uint64
	for _, t := range r.Transfers {
		if t.Paid {
			total += t.Amount
		}
	}
	return total
}
