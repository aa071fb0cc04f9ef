package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"divvy/internal/core"
	"divvy/internal/storage"
)

// ExtractPublisher publishes receipt extraction requests. Satisfied by
// amqp.Client; nil-able for deployments without a broker.
type ExtractPublisher interface {
	PublishReceiptExtract(ctx context.Context, id, tripID string) error
}

// ReceiptService stores uploaded receipts and hands extraction off to the
// worker over AMQP.
type ReceiptService struct {
	store     storage.Store
	publisher ExtractPublisher
}

func NewReceiptService(store storage.Store, publisher ExtractPublisher) *ReceiptService {
	return &ReceiptService{
		store:     store,
		publisher: publisher,
	}
}

// UploadReceipt records a pending receipt and publishes an extraction request.
// A publish failure does not fail the upload; the receipt stays pending and
// can be re-queued.
func (s *ReceiptService) UploadReceipt(ctx context.Context, tripID, fileName string) (*core.Receipt, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}

	receipt := &core.Receipt{
		ID:        uuid.NewString(),
		TripID:    tripID,
		FileName:  fileName,
		Status:    core.ReceiptPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateReceipt(ctx, receipt); err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, receipt stays pending", "id", receipt.ID)
		return receipt, nil
	}
	if err := s.publisher.PublishReceiptExtract(ctx, receipt.ID, tripID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish extract message",
			"id", receipt.ID, "error", err)
		// Don't fail the request - the receipt is saved locally
	}

	return receipt, nil
}

func (s *ReceiptService) GetReceipt(ctx context.Context, id string) (*core.Receipt, error) {
	return s.store.GetReceipt(ctx, id)
}
