package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	stockrepo "github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ExpiryNotifier receives batches found approaching expiry.
type ExpiryNotifier interface {
	PublishBatchExpiring(ctx context.Context, batch *stockrepo.Batch, daysLeft int)
}

// ExpiryScanner finds active batches approaching expiry and notifies
// downstream consumers. Scans are read-only; they never mutate batch or
// ledger state.
type ExpiryScanner struct {
	batchRepo  *stockrepo.BatchRepository
	notifier   ExpiryNotifier
	thresholds classify.Thresholds
	logger     *logger.Logger
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(
	batchRepo *stockrepo.BatchRepository,
	notifier ExpiryNotifier,
	thresholds classify.Thresholds,
	log *logger.Logger,
) *ExpiryScanner {
	return &ExpiryScanner{
		batchRepo:  batchRepo,
		notifier:   notifier,
		thresholds: thresholds,
		logger:     log,
	}
}

// Scan notifies for every active batch with remaining stock whose expiry
// falls within the configured window. Returns the number of batches notified.
func (s *ExpiryScanner) Scan(ctx context.Context) (int, error) {
	batches, err := s.batchRepo.GetExpiringBatches(ctx, s.thresholds.ExpiringSoonWindowDays)
	if err != nil {
		return 0, fmt.Errorf("scan expiring batches: %w", err)
	}

	now := time.Now()
	for _, batch := range batches {
		daysLeft := int(batch.ExpiryDate.Sub(now).Hours() / 24)
		s.notifier.PublishBatchExpiring(ctx, batch, daysLeft)
	}

	if len(batches) > 0 {
		s.logger.Info().Int("count", len(batches)).Msg("expiring batches notified")
	}
	return len(batches), nil
}

// ExpiryScheduler runs expiry scans periodically in a background goroutine.
type ExpiryScheduler struct {
	scanner  *ExpiryScanner
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewExpiryScheduler creates a new expiry scheduler
func NewExpiryScheduler(scanner *ExpiryScanner, interval time.Duration, log *logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		scanner:  scanner,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine. An initial scan
// runs immediately, then one per interval until Stop or context cancellation.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("expiry scheduler started")

		s.runScan(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-ticker.C:
				s.runScan(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ExpiryScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ExpiryScheduler) runScan(ctx context.Context) {
	start := time.Now()
	count, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry scan failed")
		return
	}
	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("count", count).
		Msg("expiry scan completed")
}
