package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	catalogrepo "github.com/pharmstock/pharmstock-backend/internal/catalog/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	"github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/service"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticAuthorizer grants or denies every mutation unconditionally.
type staticAuthorizer struct {
	allow bool
}

func (a staticAuthorizer) CanMutateBatch(ctx context.Context) bool {
	return a.allow
}

func newTestService(t *testing.T, allow bool) (*service.StockService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromDB(mockDB.DB, log)

	svc := service.NewStockService(
		db,
		repository.NewBatchRepository(db),
		repository.NewLedgerRepository(db),
		catalogrepo.NewMedicineRepository(db),
		catalogrepo.NewSupplierRepository(db),
		nil, // no broker in unit tests
		staticAuthorizer{allow: allow},
		classify.DefaultThresholds(),
		log,
	)
	return svc, mockDB
}

var batchColumns = []string{
	"id", "batch_number", "medicine_id", "supplier_id", "quantity_received",
	"current_quantity", "cost_price", "selling_price", "manufacture_date",
	"expiry_date", "created_at", "updated_at", "deleted_at",
}

func batchRow(id string, received, current int, expiry time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return testutil.MockRows(batchColumns...).AddRow(
		id, "BATCH-0001", "33333333-3333-3333-3333-333333333333",
		"44444444-4444-4444-4444-444444444444", received, current,
		nil, nil, nil, expiry, now, now, nil,
	)
}

func deletedBatchRow(id string, received, current int, expiry time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	deletedAt := now.Add(-time.Hour)
	return testutil.MockRows(batchColumns...).AddRow(
		id, "BATCH-0001", "33333333-3333-3333-3333-333333333333",
		"44444444-4444-4444-4444-444444444444", received, current,
		nil, nil, nil, expiry, now, now, deletedAt,
	)
}

const (
	testBatchID    = "11111111-1111-1111-1111-111111111111"
	testMedicineID = "33333333-3333-3333-3333-333333333333"
	testSupplierID = "44444444-4444-4444-4444-444444444444"
)

// --- CreateBatch Tests ---

func TestCreateBatch_WritesReceiptEntry(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT EXISTS(SELECT 1 FROM medicines WHERE id = $1)`).
		WithArgs(testMedicineID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1)`).
		WithArgs(testSupplierID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	mockDB.ExpectBegin()
	mockDB.Mock.ExpectQuery("INSERT INTO batches").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now().UTC(), time.Now().UTC()))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_ledger_entries").
		WillReturnRows(testutil.MockRows("seq", "created_at").
			AddRow(int64(1), time.Now().UTC()))
	mockDB.ExpectCommit()

	batch, err := svc.CreateBatch(context.Background(), &service.CreateBatchInput{
		BatchNumber:      "BATCH-0001",
		MedicineID:       testMedicineID,
		SupplierID:       testSupplierID,
		QuantityReceived: 100,
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, 100, batch.CurrentQuantity)
	assert.NotEmpty(t, batch.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateBatch_OpeningQuantityBelowReceived(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT EXISTS(SELECT 1 FROM medicines WHERE id = $1)`).
		WithArgs(testMedicineID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1)`).
		WithArgs(testSupplierID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	mockDB.ExpectBegin()
	mockDB.Mock.ExpectQuery("INSERT INTO batches").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now().UTC(), time.Now().UTC()))
	// Receipt for the full received quantity, then the opening adjustment.
	mockDB.Mock.ExpectQuery("INSERT INTO stock_ledger_entries").
		WillReturnRows(testutil.MockRows("seq", "created_at").
			AddRow(int64(1), time.Now().UTC()))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_ledger_entries").
		WillReturnRows(testutil.MockRows("seq", "created_at").
			AddRow(int64(2), time.Now().UTC()))
	mockDB.ExpectCommit()

	opening := 80
	batch, err := svc.CreateBatch(context.Background(), &service.CreateBatchInput{
		BatchNumber:      "BATCH-0002",
		MedicineID:       testMedicineID,
		SupplierID:       testSupplierID,
		QuantityReceived: 100,
		CurrentQuantity:  &opening,
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 80, batch.CurrentQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateBatch_ValidationFailures(t *testing.T) {
	svc, _ := newTestService(t, true)
	expiry := time.Now().AddDate(1, 0, 0)

	tests := []struct {
		name  string
		input *service.CreateBatchInput
		field string
	}{
		{
			name: "missing batch number",
			input: &service.CreateBatchInput{
				MedicineID:       testMedicineID,
				SupplierID:       testSupplierID,
				QuantityReceived: 100,
				ExpiryDate:       expiry,
			},
			field: "batch_number",
		},
		{
			name: "zero quantity received",
			input: &service.CreateBatchInput{
				BatchNumber: "B-1",
				MedicineID:  testMedicineID,
				SupplierID:  testSupplierID,
				ExpiryDate:  expiry,
			},
			field: "quantity_received",
		},
		{
			name: "current quantity exceeds received",
			input: &service.CreateBatchInput{
				BatchNumber:      "B-1",
				MedicineID:       testMedicineID,
				SupplierID:       testSupplierID,
				QuantityReceived: 100,
				CurrentQuantity:  testutil.PtrInt(150),
				ExpiryDate:       expiry,
			},
			field: "current_quantity",
		},
		{
			name: "negative current quantity",
			input: &service.CreateBatchInput{
				BatchNumber:      "B-1",
				MedicineID:       testMedicineID,
				SupplierID:       testSupplierID,
				QuantityReceived: 100,
				CurrentQuantity:  testutil.PtrInt(-5),
				ExpiryDate:       expiry,
			},
			field: "current_quantity",
		},
		{
			name: "manufacture date after expiry",
			input: &service.CreateBatchInput{
				BatchNumber:      "B-1",
				MedicineID:       testMedicineID,
				SupplierID:       testSupplierID,
				QuantityReceived: 100,
				ManufactureDate:  testutil.PtrTime(expiry.AddDate(0, 1, 0)),
				ExpiryDate:       expiry,
			},
			field: "manufacture_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := svc.CreateBatch(context.Background(), tt.input)
			assert.Nil(t, batch)
			require.Error(t, err)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestCreateBatch_UnknownMedicine(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT EXISTS(SELECT 1 FROM medicines WHERE id = $1)`).
		WithArgs(testMedicineID).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))

	batch, err := svc.CreateBatch(context.Background(), &service.CreateBatchInput{
		BatchNumber:      "B-1",
		MedicineID:       testMedicineID,
		SupplierID:       testSupplierID,
		QuantityReceived: 100,
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
	})
	assert.Nil(t, batch)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_REFERENCE", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateBatch_Forbidden(t *testing.T) {
	svc, mockDB := newTestService(t, false)

	batch, err := svc.CreateBatch(context.Background(), &service.CreateBatchInput{
		BatchNumber:      "B-1",
		MedicineID:       testMedicineID,
		SupplierID:       testSupplierID,
		QuantityReceived: 100,
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
	})
	assert.Nil(t, batch)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	// Authorization fails before any database work.
	mockDB.ExpectationsWereMet(t)
}

// --- AppendEntry Tests ---

func TestAppendEntry_Dispense(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_ledger_entries").
		WillReturnRows(testutil.MockRows("seq", "created_at").
			AddRow(int64(7), time.Now().UTC()))
	mockDB.ExpectExec(`UPDATE batches SET current_quantity = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	entry, err := svc.AppendEntry(context.Background(), testBatchID, &service.AppendEntryInput{
		QuantityChange: -10,
		Kind:           repository.KindDispense,
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 50, entry.ResultingQuantity)
	assert.Equal(t, int64(7), entry.Seq)

	mockDB.ExpectationsWereMet(t)
}

func TestAppendEntry_RejectsNegativeResult(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 5, time.Now().AddDate(1, 0, 0)))
	// No insert, no quantity update: the transaction rolls back untouched.
	mockDB.ExpectRollback()

	entry, err := svc.AppendEntry(context.Background(), testBatchID, &service.AppendEntryInput{
		QuantityChange: -10,
		Kind:           repository.KindDispense,
	})
	assert.Nil(t, entry)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVARIANT_VIOLATION", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestAppendEntry_ExactDepletion(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 10, time.Now().AddDate(1, 0, 0)))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_ledger_entries").
		WillReturnRows(testutil.MockRows("seq", "created_at").
			AddRow(int64(8), time.Now().UTC()))
	mockDB.ExpectExec(`UPDATE batches SET current_quantity = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	// Draining to exactly zero is allowed.
	entry, err := svc.AppendEntry(context.Background(), testBatchID, &service.AppendEntryInput{
		QuantityChange: -10,
		Kind:           repository.KindDisposal,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, entry.ResultingQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestAppendEntry_UnknownBatch(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(testBatchID).
		WillReturnRows(testutil.MockRows(batchColumns...))
	mockDB.ExpectRollback()

	entry, err := svc.AppendEntry(context.Background(), testBatchID, &service.AppendEntryInput{
		QuantityChange: 10,
		Kind:           repository.KindReceipt,
	})
	assert.Nil(t, entry)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestAppendEntry_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t, true)

	tests := []struct {
		name  string
		input *service.AppendEntryInput
	}{
		{"zero quantity change", &service.AppendEntryInput{Kind: repository.KindDispense}},
		{"unknown kind", &service.AppendEntryInput{QuantityChange: -5, Kind: "shrinkage"}},
		{"missing kind", &service.AppendEntryInput{QuantityChange: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := svc.AppendEntry(context.Background(), testBatchID, tt.input)
			assert.Nil(t, entry)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}

	// An unrecognized kind names the offending field and value.
	_, err := svc.AppendEntry(context.Background(), testBatchID, &service.AppendEntryInput{
		QuantityChange: -5,
		Kind:           "shrinkage",
	})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "kind")
	assert.Contains(t, appErr.Details["kind"], "shrinkage")
}

func TestAppendEntry_Forbidden(t *testing.T) {
	svc, mockDB := newTestService(t, false)

	entry, err := svc.AppendEntry(context.Background(), testBatchID, &service.AppendEntryInput{
		QuantityChange: -10,
		Kind:           repository.KindDispense,
	})
	assert.Nil(t, entry)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

// --- DeleteBatch / RestoreBatch Tests ---

func TestDeleteBatch(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))
	mockDB.ExpectExec(`UPDATE batches SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.DeleteBatch(context.Background(), testBatchID)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestDeleteBatch_AlreadyDeleted(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	// A tombstoned batch is invisible to the default read.
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnRows(testutil.MockRows(batchColumns...))

	err := svc.DeleteBatch(context.Background(), testBatchID)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestRestoreBatch(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1`).
		WithArgs(testBatchID).
		WillReturnRows(deletedBatchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))
	mockDB.ExpectExec(`UPDATE batches SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`).
		WithArgs(testBatchID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))

	batch, err := svc.RestoreBatch(context.Background(), testBatchID)
	require.NoError(t, err)
	assert.Equal(t, testBatchID, batch.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestRestoreBatch_NotDeleted(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	// The batch exists but carries no tombstone, so there is nothing to restore.
	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))

	batch, err := svc.RestoreBatch(context.Background(), testBatchID)
	assert.Nil(t, batch)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestRestoreBatch_Unknown(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1`).
		WithArgs(testBatchID).
		WillReturnRows(testutil.MockRows(batchColumns...))

	batch, err := svc.RestoreBatch(context.Background(), testBatchID)
	assert.Nil(t, batch)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

// --- Verify Tests ---

func TestVerifyBatch_Consistent(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))
	mockDB.ExpectQuery(`SELECT COALESCE(SUM(quantity_change), 0) FROM stock_ledger_entries WHERE batch_id = $1`).
		WithArgs(testBatchID).
		WillReturnRows(testutil.MockRows("coalesce").AddRow(60))

	report, err := svc.VerifyBatch(context.Background(), testBatchID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 60, report.CachedQuantity)
	assert.Equal(t, 60, report.DerivedQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestVerifyBatch_Drift(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))
	mockDB.ExpectQuery(`SELECT COALESCE(SUM(quantity_change), 0) FROM stock_ledger_entries WHERE batch_id = $1`).
		WithArgs(testBatchID).
		WillReturnRows(testutil.MockRows("coalesce").AddRow(55))

	report, err := svc.VerifyBatch(context.Background(), testBatchID)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Consistent)
	assert.Equal(t, 60, report.CachedQuantity)
	assert.Equal(t, 55, report.DerivedQuantity)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVARIANT_VIOLATION", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestReconstructQuantity(t *testing.T) {
	svc, mockDB := newTestService(t, true)

	mockDB.ExpectQuery(`SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`).
		WithArgs(testBatchID).
		WillReturnRows(batchRow(testBatchID, 100, 60, time.Now().AddDate(1, 0, 0)))
	mockDB.ExpectQuery(`SELECT COALESCE(SUM(quantity_change), 0) FROM stock_ledger_entries WHERE batch_id = $1`).
		WithArgs(testBatchID).
		WillReturnRows(testutil.MockRows("coalesce").AddRow(60))

	derived, err := svc.ReconstructQuantity(context.Background(), testBatchID)
	require.NoError(t, err)
	assert.Equal(t, 60, derived)

	mockDB.ExpectationsWereMet(t)
}
