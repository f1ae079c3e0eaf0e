// Package classify computes the operational status facets of a batch.
// All functions are pure: same batch, reference time and thresholds
// always produce the same result, with no side effects.
package classify

import (
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/stock/repository"
)

// Default thresholds
const (
	DefaultLowStockThreshold      = 10
	DefaultExpiringSoonWindowDays = 30
)

// Thresholds configures batch classification.
type Thresholds struct {
	// LowStockThreshold is the quantity at or below which a batch is low stock.
	LowStockThreshold int
	// ExpiringSoonWindowDays is the look-ahead window for expiring-soon.
	ExpiringSoonWindowDays int
}

// DefaultThresholds returns the standard thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowStockThreshold:      DefaultLowStockThreshold,
		ExpiringSoonWindowDays: DefaultExpiringSoonWindowDays,
	}
}

// Classification holds the independent status facets of a batch. A batch
// may be low-stock and expiring-soon at once; expired and expiring-soon
// are mutually exclusive by construction.
type Classification struct {
	IsLowStock     bool `json:"is_low_stock"`
	IsExpiringSoon bool `json:"is_expiring_soon"`
	IsExpired      bool `json:"is_expired"`
}

// Classify computes the status facets of a batch as of now.
//
//	IsLowStock:     current quantity at or below the threshold
//	IsExpired:      expiry date strictly before now
//	IsExpiringSoon: expiry date within the window but not yet past
func Classify(batch *repository.Batch, now time.Time, t Thresholds) Classification {
	windowEnd := now.AddDate(0, 0, t.ExpiringSoonWindowDays)

	return Classification{
		IsLowStock: batch.CurrentQuantity <= t.LowStockThreshold,
		IsExpired:  batch.ExpiryDate.Before(now),
		// The lower bound excludes already-expired batches, so expired and
		// expiring-soon can never both hold.
		IsExpiringSoon: batch.ExpiryDate.After(now) && !batch.ExpiryDate.After(windowEnd),
	}
}
