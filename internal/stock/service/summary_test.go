package service_test

import (
	"testing"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	"github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summaryRef = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func summaryBatch(id string, quantity int, expiry time.Time) *repository.Batch {
	return &repository.Batch{
		ID:               id,
		BatchNumber:      "BATCH-" + id,
		QuantityReceived: 100,
		CurrentQuantity:  quantity,
		ExpiryDate:       expiry,
	}
}

func TestSummarize(t *testing.T) {
	th := classify.DefaultThresholds()

	batches := []*repository.Batch{
		summaryBatch("low", 5, summaryRef.AddDate(1, 0, 0)),
		summaryBatch("soon", 50, summaryRef.AddDate(0, 0, 10)),
		summaryBatch("expired", 50, summaryRef.AddDate(0, 0, -5)),
	}

	report := service.Summarize(batches, summaryRef, th)

	assert.Equal(t, 3, report.Summary.TotalCount)
	assert.Equal(t, 1, report.Summary.LowStockCount)
	assert.Equal(t, 1, report.Summary.ExpiringSoonCount)
	assert.Equal(t, 1, report.Summary.ExpiredCount)

	require.Len(t, report.LowStock, 1)
	assert.Equal(t, "low", report.LowStock[0].ID)
	require.Len(t, report.ExpiringSoon, 1)
	assert.Equal(t, "soon", report.ExpiringSoon[0].ID)
	require.Len(t, report.Expired, 1)
	assert.Equal(t, "expired", report.Expired[0].ID)
}

func TestSummarize_BatchInMultipleFacets(t *testing.T) {
	th := classify.DefaultThresholds()

	// One batch that is low stock and expiring soon at the same time.
	batches := []*repository.Batch{
		summaryBatch("both", 3, summaryRef.AddDate(0, 0, 7)),
	}

	report := service.Summarize(batches, summaryRef, th)

	assert.Equal(t, 1, report.Summary.TotalCount)
	assert.Equal(t, 1, report.Summary.LowStockCount)
	assert.Equal(t, 1, report.Summary.ExpiringSoonCount)
	assert.Equal(t, 0, report.Summary.ExpiredCount)
	assert.Len(t, report.LowStock, 1)
	assert.Len(t, report.ExpiringSoon, 1)
}

func TestSummarize_Empty(t *testing.T) {
	report := service.Summarize(nil, summaryRef, classify.DefaultThresholds())

	assert.Equal(t, 0, report.Summary.TotalCount)
	assert.NotNil(t, report.LowStock)
	assert.NotNil(t, report.ExpiringSoon)
	assert.NotNil(t, report.Expired)
}

func TestSummarize_Idempotent(t *testing.T) {
	th := classify.DefaultThresholds()
	batches := []*repository.Batch{
		summaryBatch("a", 5, summaryRef.AddDate(0, 0, 10)),
		summaryBatch("b", 80, summaryRef.AddDate(0, 0, -1)),
		summaryBatch("c", 200, summaryRef.AddDate(2, 0, 0)),
	}

	first := service.Summarize(batches, summaryRef, th)
	second := service.Summarize(batches, summaryRef, th)

	assert.Equal(t, first.Summary, second.Summary)
}

func TestClassifyBatches(t *testing.T) {
	th := classify.DefaultThresholds()
	batches := []*repository.Batch{
		summaryBatch("a", 5, summaryRef.AddDate(1, 0, 0)),
		summaryBatch("b", 50, summaryRef.AddDate(1, 0, 0)),
	}

	classified := service.ClassifyBatches(batches, summaryRef, th)

	require.Len(t, classified, 2)
	assert.True(t, classified[0].IsLowStock)
	assert.False(t, classified[1].IsLowStock)
	// The underlying batch data passes through untouched.
	assert.Equal(t, "a", classified[0].ID)
	assert.Equal(t, 5, classified[0].CurrentQuantity)
}
