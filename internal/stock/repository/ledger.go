package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
)

// Ledger entry kinds
const (
	KindReceipt    = "receipt"
	KindDispense   = "dispense"
	KindAdjustment = "adjustment"
	KindDisposal   = "disposal"
	KindReturn     = "return"
)

// LedgerEntry is one immutable, signed quantity adjustment against a batch.
// Entries are append-only; once written they are never mutated or deleted.
// Replay order is (created_at, seq), with seq the monotonic tie-breaker so
// replay stays deterministic even when timestamps collide.
type LedgerEntry struct {
	ID                string    `db:"id" json:"id"`
	Seq               int64     `db:"seq" json:"seq"`
	BatchID           string    `db:"batch_id" json:"batch_id"`
	QuantityChange    int       `db:"quantity_change" json:"quantity_change"`
	Kind              string    `db:"kind" json:"kind"`
	ResultingQuantity int       `db:"resulting_quantity" json:"resulting_quantity"`
	PerformedBy       *string   `db:"performed_by" json:"performed_by,omitempty"`
	PerformedByName   *string   `db:"performed_by_name" json:"performed_by_name,omitempty"`
	Note              *string   `db:"note" json:"note,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ValidKind reports whether kind is one of the known ledger entry kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindReceipt, KindDispense, KindAdjustment, KindDisposal, KindReturn:
		return true
	}
	return false
}

// LedgerRepository handles stock ledger persistence
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts a ledger entry within the given transaction. The caller
// holds the batch row lock and has already computed ResultingQuantity; the
// cached quantity update must commit in the same transaction.
func (r *LedgerRepository) Append(ctx context.Context, tx *sqlx.Tx, entry *LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_ledger_entries (
			id, batch_id, quantity_change, kind, resulting_quantity,
			performed_by, performed_by_name, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq, created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		entry.ID, entry.BatchID, entry.QuantityChange, entry.Kind,
		entry.ResultingQuantity, entry.PerformedBy, entry.PerformedByName, entry.Note,
	).Scan(&entry.Seq, &entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListByBatch lists all entries for a batch in replay order.
func (r *LedgerRepository) ListByBatch(ctx context.Context, batchID string) ([]*LedgerEntry, error) {
	var entries []*LedgerEntry
	query := `
		SELECT * FROM stock_ledger_entries
		WHERE batch_id = $1
		ORDER BY created_at, seq
	`
	if err := r.db.SelectContext(ctx, &entries, query, batchID); err != nil {
		return nil, err
	}
	return entries, nil
}

// SumDeltas returns the signed sum of all quantity changes for a batch.
// Because creation emits a receipt entry for the full received quantity,
// the replay base is zero and this sum alone reconstructs the quantity.
func (r *LedgerRepository) SumDeltas(ctx context.Context, batchID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity_change), 0) FROM stock_ledger_entries WHERE batch_id = $1`
	if err := r.db.GetContext(ctx, &total, query, batchID); err != nil {
		return 0, err
	}
	return total, nil
}
