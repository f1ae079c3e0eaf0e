package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	stockrepo "github.com/pharmstock/pharmstock-backend/internal/stock/repository"
)

// ClassifiedBatch is a batch together with its status facets, in the
// stable field shape the presentation layer consumes.
type ClassifiedBatch struct {
	*stockrepo.Batch
	classify.Classification
}

// StockSummary holds the dashboard counts
type StockSummary struct {
	TotalCount        int `json:"total_count"`
	LowStockCount     int `json:"low_stock_count"`
	ExpiringSoonCount int `json:"expiring_soon_count"`
	ExpiredCount      int `json:"expired_count"`
}

// DashboardReport is the summary plus the filtered lists behind it
type DashboardReport struct {
	Summary      StockSummary       `json:"summary"`
	LowStock     []*ClassifiedBatch `json:"low_stock"`
	ExpiringSoon []*ClassifiedBatch `json:"expiring_soon"`
	Expired      []*ClassifiedBatch `json:"expired"`
}

// Summarize classifies every batch exactly once against the single
// reference time now, so all facets in one report are mutually consistent
// even as wall-clock time advances during computation.
func Summarize(batches []*stockrepo.Batch, now time.Time, t classify.Thresholds) *DashboardReport {
	report := &DashboardReport{
		LowStock:     []*ClassifiedBatch{},
		ExpiringSoon: []*ClassifiedBatch{},
		Expired:      []*ClassifiedBatch{},
	}

	for _, batch := range batches {
		cb := &ClassifiedBatch{
			Batch:          batch,
			Classification: classify.Classify(batch, now, t),
		}

		report.Summary.TotalCount++
		if cb.IsLowStock {
			report.Summary.LowStockCount++
			report.LowStock = append(report.LowStock, cb)
		}
		if cb.IsExpiringSoon {
			report.Summary.ExpiringSoonCount++
			report.ExpiringSoon = append(report.ExpiringSoon, cb)
		}
		if cb.IsExpired {
			report.Summary.ExpiredCount++
			report.Expired = append(report.Expired, cb)
		}
	}

	return report
}

// ClassifyBatches tags a page of batches against a single reference time.
func ClassifyBatches(batches []*stockrepo.Batch, now time.Time, t classify.Thresholds) []*ClassifiedBatch {
	classified := make([]*ClassifiedBatch, 0, len(batches))
	for _, batch := range batches {
		classified = append(classified, &ClassifiedBatch{
			Batch:          batch,
			Classification: classify.Classify(batch, now, t),
		})
	}
	return classified
}

// Dashboard aggregates all active batches into the dashboard report.
func (s *StockService) Dashboard(ctx context.Context) (*DashboardReport, error) {
	batches, err := s.batchRepo.ListAllActive(ctx)
	if err != nil {
		return nil, err
	}

	// Captured once; every batch in the report sees the same reference time.
	now := time.Now().UTC()

	return Summarize(batches, now, s.thresholds), nil
}

// ListClassified lists a page of active batches with their status facets.
// Sorting, filtering and pagination run in the repository; classification
// happens here against one shared reference time.
func (s *StockService) ListClassified(ctx context.Context, opts stockrepo.ListOptions) ([]*ClassifiedBatch, int64, error) {
	batches, total, err := s.batchRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()

	return ClassifyBatches(batches, now, s.thresholds), total, nil
}
