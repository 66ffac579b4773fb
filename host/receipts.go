package host

import (
	"context"
	"time"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	"github.com/xraph/testbank/types"
)

// Receipt returns a stored receipt.
func (h *Host) Receipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	return h.store.GetReceipt(ctx, receiptID)
}

// Receipts lists stored receipts, newest first.
func (h *Host) Receipts(ctx context.Context, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	return h.store.ListReceipts(ctx, opts)
}

// Snapshots lists the stored snapshots of a contract, newest first.
func (h *Host) Snapshots(ctx context.Context, name string, limit int) ([]*snapshot.Snapshot, error) {
	return h.store.ListSnapshots(ctx, name, limit)
}

func (h *Host) persistReceipt(ctx context.Context, r *receipt.Receipt) {
	if h.receiptBuffer == nil {
		if err := h.store.CreateReceipt(ctx, r); err != nil {
			h.logger.Error("failed to store receipt",
				"receipt_id", r.ID.String(),
				"error", err,
			)
		}
		return
	}

	select {
	case h.receiptBuffer <- r:
	default:
		h.logger.Warn("receipt buffer full, dropping receipt",
			"receipt_id", r.ID.String(),
			"transaction_id", r.TransactionID.String(),
		)
	}
}

// receiptFlushWorker writes buffered receipts to the store.
func (h *Host) receiptFlushWorker(ctx context.Context) {
	defer h.wg.Done()

	batch := make([]*receipt.Receipt, 0, h.receiptBatchSize)
	ticker := time.NewTicker(h.receiptFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			// Drain and final flush
		drain:
			for {
				select {
				case r := <-h.receiptBuffer:
					batch = append(batch, r)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				h.flushReceipts(ctx, batch)
			}
			return

		case r := <-h.receiptBuffer:
			batch = append(batch, r)
			if len(batch) >= h.receiptBatchSize {
				h.flushReceipts(ctx, batch)
				batch = make([]*receipt.Receipt, 0, h.receiptBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				h.flushReceipts(ctx, batch)
				batch = make([]*receipt.Receipt, 0, h.receiptBatchSize)
			}
		}
	}
}

func (h *Host) flushReceipts(ctx context.Context, batch []*receipt.Receipt) {
	start := time.Now()

	failed := 0
	for _, r := range batch {
		if err := h.store.CreateReceipt(ctx, r); err != nil {
			failed++
			h.logger.Error("failed to store receipt",
				"receipt_id", r.ID.String(),
				"error", err,
			)
		}
	}

	h.logger.Debug("flushed receipt batch",
		"batch_size", len(batch),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// saveSnapshot persists the current state of a stateful contract.
func (h *Host) saveSnapshot(ctx context.Context, dep *deployment, txID id.TransactionID) error {
	if !h.persistSnapshots {
		return nil
	}
	st, ok := dep.contract.(contract.Stateful)
	if !ok {
		return nil
	}

	state, err := st.Snapshot()
	if err != nil {
		return err
	}

	snap := &snapshot.Snapshot{
		Entity:        types.NewEntity(),
		ID:            id.NewSnapshotID(),
		Contract:      dep.Name,
		Self:          dep.Self,
		Sequence:      dep.Sequence + 1,
		TransactionID: txID,
		State:         state,
		Checksum:      Checksum(state),
	}
	if err := h.store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	dep.Sequence = snap.Sequence

	if h.keepSnapshots > 0 {
		if _, err := h.store.PruneSnapshots(ctx, dep.Name, h.keepSnapshots); err != nil {
			h.logger.Warn("failed to prune snapshots",
				"contract", dep.Name,
				"error", err,
			)
		}
	}
	return nil
}
