package events

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events. Publishing is
// best-effort: the ledger transaction has already committed, so a broker
// failure is logged but never rolls the operation back.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishBatchCreated publishes a batch created event
func (p *StockEventPublisher) PublishBatchCreated(ctx context.Context, batch *repository.Batch) {
	if p == nil {
		return
	}

	data := messaging.BatchCreatedEvent{
		BatchID:          batch.ID,
		BatchNumber:      batch.BatchNumber,
		MedicineID:       batch.MedicineID,
		SupplierID:       batch.SupplierID,
		QuantityReceived: batch.QuantityReceived,
		ExpiryDate:       batch.ExpiryDate,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch created event")
	}
}

// PublishBatchDeleted publishes a batch deleted event
func (p *StockEventPublisher) PublishBatchDeleted(ctx context.Context, batch *repository.Batch, performedBy string) {
	if p == nil {
		return
	}

	data := messaging.BatchDeletedEvent{
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		PerformedBy: performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch deleted event")
	}
}

// PublishBatchRestored publishes a batch restored event
func (p *StockEventPublisher) PublishBatchRestored(ctx context.Context, batch *repository.Batch, performedBy string) {
	if p == nil {
		return
	}

	data := messaging.BatchRestoredEvent{
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		PerformedBy: performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchRestored, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch restored event")
	}
}

// PublishLedgerAppended publishes a ledger appended event
func (p *StockEventPublisher) PublishLedgerAppended(ctx context.Context, entry *repository.LedgerEntry) {
	if p == nil {
		return
	}

	performedBy := ""
	if entry.PerformedBy != nil {
		performedBy = *entry.PerformedBy
	}

	data := messaging.LedgerAppendedEvent{
		EntryID:           entry.ID,
		BatchID:           entry.BatchID,
		Kind:              entry.Kind,
		QuantityChange:    entry.QuantityChange,
		ResultingQuantity: entry.ResultingQuantity,
		PerformedBy:       performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLedgerAppended, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", entry.BatchID).Msg("failed to publish ledger appended event")
	}
}

// PublishBatchExpiring publishes a batch expiring event
func (p *StockEventPublisher) PublishBatchExpiring(ctx context.Context, batch *repository.Batch, daysLeft int) {
	if p == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		MedicineID:  batch.MedicineID,
		ExpiryDate:  batch.ExpiryDate,
		DaysLeft:    daysLeft,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch expiring event")
	}
}
