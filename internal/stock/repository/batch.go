package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Batch is a single received lot of a medicine. Its identity (batch number,
// medicine, supplier, quantity received) is immutable after creation; only
// current_quantity changes, and only through ledger appends.
type Batch struct {
	ID               string               `db:"id" json:"id"`
	BatchNumber      string               `db:"batch_number" json:"batch_number"`
	MedicineID       string               `db:"medicine_id" json:"medicine_id"`
	SupplierID       string               `db:"supplier_id" json:"supplier_id"`
	QuantityReceived int                  `db:"quantity_received" json:"quantity_received"`
	CurrentQuantity  int                  `db:"current_quantity" json:"current_quantity"`
	CostPrice        *decimal.Decimal     `db:"cost_price" json:"cost_price,omitempty"`
	SellingPrice     *decimal.Decimal     `db:"selling_price" json:"selling_price,omitempty"`
	ManufactureDate  *time.Time           `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate       time.Time            `db:"expiry_date" json:"expiry_date"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time           `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ListOptions controls listing of active batches.
type ListOptions struct {
	Page       int
	PerPage    int
	SortBy     string
	SortDir    string
	MedicineID string
}

// Normalize clamps paging to valid bounds. Both the query and the
// pagination meta derive from the same normalized values.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 || o.PerPage > 100 {
		o.PerPage = 10
	}
}

// Sortable columns for batch listings. Anything else falls back to expiry date.
var batchSortColumns = map[string]string{
	"expiry_date":      "expiry_date",
	"current_quantity": "current_quantity",
	"batch_number":     "batch_number",
	"created_at":       "created_at",
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch within the given transaction. Creation shares a
// transaction with the synthetic receipt ledger entry, so the caller owns
// the transaction boundary.
func (r *BatchRepository) Create(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (
			id, batch_number, medicine_id, supplier_id, quantity_received,
			current_quantity, cost_price, selling_price, manufacture_date, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		batch.ID, batch.BatchNumber, batch.MedicineID, batch.SupplierID,
		batch.QuantityReceived, batch.CurrentQuantity, batch.CostPrice,
		batch.SellingPrice, batch.ManufactureDate, batch.ExpiryDate,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an active batch by ID. Tombstoned batches are excluded.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIDIncludingDeleted gets a batch regardless of its tombstone. Restore
// uses it to tell a missing batch apart from one that is not deleted.
func (r *BatchRepository) GetByIDIncludingDeleted(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// LockForUpdate reads a batch inside the transaction, taking a row lock.
// Serializes concurrent ledger appends against the same batch; appends
// against different batches do not contend.
func (r *BatchRepository) LockForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// UpdateQuantity writes the cached quantity projection within the
// transaction that appended the corresponding ledger entry.
func (r *BatchRepository) UpdateQuantity(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	query := `UPDATE batches SET current_quantity = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// List lists active batches with pagination, sorting and optional medicine filter.
func (r *BatchRepository) List(ctx context.Context, opts ListOptions) ([]*Batch, int64, error) {
	opts.Normalize()

	sortCol, ok := batchSortColumns[opts.SortBy]
	if !ok {
		sortCol = "expiry_date"
	}
	sortDir := "ASC"
	if opts.SortDir == "desc" {
		sortDir = "DESC"
	}

	where := "deleted_at IS NULL"
	args := []interface{}{}
	if opts.MedicineID != "" {
		where += fmt.Sprintf(" AND medicine_id = $%d", len(args)+1)
		args = append(args, opts.MedicineID)
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM batches WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (opts.Page - 1) * opts.PerPage
	listQuery := fmt.Sprintf(
		"SELECT * FROM batches WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, sortCol, sortDir, len(args)+1, len(args)+2,
	)
	args = append(args, opts.PerPage, offset)

	var batches []*Batch
	if err := r.db.SelectContext(ctx, &batches, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// ListAllActive lists every active batch, ordered by expiry. Used by the
// dashboard aggregation, which classifies all batches against one reference time.
func (r *BatchRepository) ListAllActive(ctx context.Context) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches WHERE deleted_at IS NULL ORDER BY expiry_date`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// GetExpiringBatches gets active batches whose expiry falls within the window.
func (r *BatchRepository) GetExpiringBatches(ctx context.Context, withinDays int) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE deleted_at IS NULL AND current_quantity > 0
		AND expiry_date > NOW() AND expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// SoftDelete tombstones a batch. The row is never physically erased.
func (r *BatchRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE batches SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// Restore clears the tombstone, re-admitting the batch to default queries.
func (r *BatchRepository) Restore(ctx context.Context, id string) error {
	query := `UPDATE batches SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}
	return nil
}
