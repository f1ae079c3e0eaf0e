package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	"github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/service"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier captures every expiry notification for assertions.
type recordingNotifier struct {
	batchIDs []string
	daysLeft []int
}

func (n *recordingNotifier) PublishBatchExpiring(ctx context.Context, batch *repository.Batch, daysLeft int) {
	n.batchIDs = append(n.batchIDs, batch.ID)
	n.daysLeft = append(n.daysLeft, daysLeft)
}

func newExpiryScanner(t *testing.T) (*service.ExpiryScanner, *recordingNotifier, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromDB(mockDB.DB, log)

	notifier := &recordingNotifier{}
	scanner := service.NewExpiryScanner(
		repository.NewBatchRepository(db),
		notifier,
		classify.DefaultThresholds(),
		log,
	)
	return scanner, notifier, mockDB
}

func TestExpiryScan_NotifiesBatchesInWindow(t *testing.T) {
	scanner, notifier, mockDB := newExpiryScanner(t)

	now := time.Now().UTC()
	rows := testutil.MockRows(batchColumns...).
		AddRow("b-1", "BATCH-0001", testMedicineID, testSupplierID, 100, 40,
			nil, nil, nil, now.AddDate(0, 0, 5), now, now, nil).
		AddRow("b-2", "BATCH-0002", testMedicineID, testSupplierID, 50, 50,
			nil, nil, nil, now.AddDate(0, 0, 29), now, now, nil)

	mockDB.ExpectQuery(`SELECT * FROM batches`).
		WithArgs(classify.DefaultExpiringSoonWindowDays).
		WillReturnRows(rows)

	count, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, notifier.batchIDs, 2)
	assert.Equal(t, []string{"b-1", "b-2"}, notifier.batchIDs)
	// Days left is computed against the wall clock, so allow the truncation slack.
	assert.InDelta(t, 5, notifier.daysLeft[0], 1)
	assert.InDelta(t, 29, notifier.daysLeft[1], 1)

	mockDB.ExpectationsWereMet(t)
}

func TestExpiryScan_NothingExpiring(t *testing.T) {
	scanner, notifier, mockDB := newExpiryScanner(t)

	mockDB.ExpectQuery(`SELECT * FROM batches`).
		WithArgs(classify.DefaultExpiringSoonWindowDays).
		WillReturnRows(testutil.MockRows(batchColumns...))

	count, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, notifier.batchIDs)

	mockDB.ExpectationsWereMet(t)
}
