package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MedicineFixture represents test medicine data
type MedicineFixture struct {
	ID          string
	Name        string
	GenericName string
	Form        string
	CreatedAt   time.Time
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// BatchFixture represents test batch data
type BatchFixture struct {
	ID               string
	BatchNumber      string
	MedicineID       string
	SupplierID       string
	QuantityReceived int
	CurrentQuantity  int
	CostPrice        decimal.Decimal
	SellingPrice     decimal.Decimal
	ManufactureDate  *time.Time
	ExpiryDate       time.Time
	CreatedAt        time.Time
}

// LedgerEntryFixture represents test stock ledger entry data
type LedgerEntryFixture struct {
	ID             string
	BatchID        string
	QuantityChange int
	Kind           string
	Note           string
	CreatedAt      time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medicine creates a medicine fixture with defaults
func (f *FixtureFactory) Medicine(opts ...func(*MedicineFixture)) MedicineFixture {
	seq := f.nextSeq()

	med := MedicineFixture{
		ID:          uuid.New().String(),
		Name:        fmt.Sprintf("Test Medicine %d", seq),
		GenericName: fmt.Sprintf("generic-%d", seq),
		Form:        "tablet",
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicineName sets the medicine name
func WithMedicineName(name string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Name = name
	}
}

// Supplier creates a supplier fixture with defaults
func (f *FixtureFactory) Supplier(opts ...func(*SupplierFixture)) SupplierFixture {
	seq := f.nextSeq()

	sup := SupplierFixture{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Test Supplier %d", seq),
		Email:     fmt.Sprintf("supplier%d@test.pharmstock.io", seq),
		Phone:     "+1-555-0100",
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&sup)
	}

	return sup
}

// WithSupplierName sets the supplier name
func WithSupplierName(name string) func(*SupplierFixture) {
	return func(s *SupplierFixture) {
		s.Name = name
	}
}

// Batch creates a batch fixture with defaults. The batch starts fully
// stocked and expires one year out.
func (f *FixtureFactory) Batch(opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()

	batch := BatchFixture{
		ID:               uuid.New().String(),
		BatchNumber:      fmt.Sprintf("BATCH-%04d", seq),
		MedicineID:       uuid.New().String(),
		SupplierID:       uuid.New().String(),
		QuantityReceived: 100,
		CurrentQuantity:  100,
		CostPrice:        decimal.NewFromFloat(2.50),
		SellingPrice:     decimal.NewFromFloat(4.99),
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
		CreatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithBatchNumber sets the batch number
func WithBatchNumber(number string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.BatchNumber = number
	}
}

// WithMedicine sets the batch's medicine reference
func WithMedicine(medicineID string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.MedicineID = medicineID
	}
}

// WithSupplier sets the batch's supplier reference
func WithSupplier(supplierID string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.SupplierID = supplierID
	}
}

// WithQuantities sets received and current quantities
func WithQuantities(received, current int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.QuantityReceived = received
		b.CurrentQuantity = current
	}
}

// WithExpiry sets the batch expiry date
func WithExpiry(expiry time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = expiry
	}
}

// ExpiredBatch creates a batch whose expiry date has already passed
func (f *FixtureFactory) ExpiredBatch(opts ...func(*BatchFixture)) BatchFixture {
	base := append([]func(*BatchFixture){WithExpiry(time.Now().AddDate(0, 0, -7))}, opts...)
	return f.Batch(base...)
}

// LedgerEntry creates a ledger entry fixture with defaults
func (f *FixtureFactory) LedgerEntry(batchID string, opts ...func(*LedgerEntryFixture)) LedgerEntryFixture {
	entry := LedgerEntryFixture{
		ID:             uuid.New().String(),
		BatchID:        batchID,
		QuantityChange: -10,
		Kind:           "dispense",
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(&entry)
	}

	return entry
}

// WithDelta sets the entry's quantity change
func WithDelta(delta int) func(*LedgerEntryFixture) {
	return func(e *LedgerEntryFixture) {
		e.QuantityChange = delta
	}
}

// WithKind sets the entry kind
func WithKind(kind string) func(*LedgerEntryFixture) {
	return func(e *LedgerEntryFixture) {
		e.Kind = kind
	}
}
