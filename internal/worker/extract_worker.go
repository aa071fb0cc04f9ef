// Package worker consumes receipt extraction requests and writes the
// extracted fields back to storage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"divvy/internal/amqp"
	"divvy/internal/core"
	"divvy/internal/storage"
)

// Extraction holds the structured fields pulled out of a receipt image.
type Extraction struct {
	Vendor   string
	Subtotal core.Money
	Tax      core.Money
	Tip      core.Money
	Items    []core.ReceiptItem
}

// Extractor turns an uploaded receipt into structured fields.
type Extractor interface {
	Extract(ctx context.Context, r *core.Receipt) (*Extraction, error)
}

// ErrUnreadableReceipt marks receipts the extractor cannot parse at all.
// These are recorded as failed and acked, not requeued.
var ErrUnreadableReceipt = errors.New("receipt is unreadable")

// ExtractWorker handles receipt extraction messages and the pending-receipt
// backup sweep.
type ExtractWorker struct {
	store     storage.Store
	extractor Extractor
	batchSize int
}

func NewExtractWorker(store storage.Store, extractor Extractor, batchSize int) *ExtractWorker {
	return &ExtractWorker{
		store:     store,
		extractor: extractor,
		batchSize: batchSize,
	}
}

// HandleExtractMessage processes a single extraction request from AMQP.
func (w *ExtractWorker) HandleExtractMessage(ctx context.Context, msg *amqp.ReceiptExtractMessage) error {
	slog.InfoContext(ctx, "Processing extract message",
		"id", msg.ID,
		"trip_id", msg.TripID)

	receipt, err := w.store.GetReceipt(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The receipt is gone; requeueing will never help.
			slog.WarnContext(ctx, "Receipt not found, dropping message", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get receipt from storage: %w", err)
	}

	if receipt.Status != core.ReceiptPending {
		slog.InfoContext(ctx, "Receipt already processed, skipping",
			"id", receipt.ID,
			"status", string(receipt.Status))
		return nil
	}

	return w.extractReceipt(ctx, receipt)
}

// ProcessPendingReceipts sweeps receipts still pending in storage. This is a
// backup mechanism in case AMQP messages are lost.
func (w *ExtractWorker) ProcessPendingReceipts(ctx context.Context) error {
	pending, err := w.store.ListPendingReceipts(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending receipts: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending receipts", "count", len(pending))

	for i := range pending {
		if err := w.extractReceipt(ctx, &pending[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to extract receipt",
				"id", pending[i].ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck sweeps a larger batch of pending receipts at worker startup to
// recover from missed messages or worker downtime.
func (w *ExtractWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.ListPendingReceipts(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending receipts for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending receipts found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending receipts on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for i := range pending {
		if err := w.extractReceipt(ctx, &pending[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to extract receipt on startup",
				"id", pending[i].ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup check complete",
		"success", successCount,
		"errors", errorCount)
	return nil
}

func (w *ExtractWorker) extractReceipt(ctx context.Context, receipt *core.Receipt) error {
	result, err := w.extractor.Extract(ctx, receipt)
	if err != nil {
		if errors.Is(err, ErrUnreadableReceipt) {
			receipt.Status = core.ReceiptFailed
			if updateErr := w.store.UpdateReceiptExtraction(ctx, receipt); updateErr != nil {
				return fmt.Errorf("mark receipt failed: %w", updateErr)
			}
			slog.WarnContext(ctx, "Receipt marked as failed", "id", receipt.ID)
			return nil
		}
		return fmt.Errorf("extract receipt: %w", err)
	}

	receipt.Status = core.ReceiptExtracted
	receipt.Vendor = result.Vendor
	receipt.Subtotal = result.Subtotal
	receipt.Tax = result.Tax
	receipt.Tip = result.Tip
	receipt.Items = result.Items

	if err := w.store.UpdateReceiptExtraction(ctx, receipt); err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}

	slog.InfoContext(ctx, "Receipt extracted",
		"id", receipt.ID,
		"vendor", result.Vendor,
		"subtotal_cents", result.Subtotal.Cents,
		"items", len(result.Items))
	return nil
}
