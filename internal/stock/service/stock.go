package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/pharmstock/pharmstock-backend/internal/catalog/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	stockrepo "github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/events"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/permissions"
)

// Authorizer decides whether the caller may mutate batch state. It is
// consulted at the boundary of every mutating operation, decoupled from
// the ledger invariants themselves.
type Authorizer interface {
	CanMutateBatch(ctx context.Context) bool
}

// PermissionAuthorizer checks the permission list carried in the request context.
type PermissionAuthorizer struct{}

// CanMutateBatch reports whether the context's permissions allow batch mutation.
func (PermissionAuthorizer) CanMutateBatch(ctx context.Context) bool {
	return permissions.CanMutateBatch(httputil.GetPermissions(ctx))
}

// StockService handles batch and ledger business logic
type StockService struct {
	db           *database.DB
	batchRepo    *stockrepo.BatchRepository
	ledgerRepo   *stockrepo.LedgerRepository
	medicineRepo *repository.MedicineRepository
	supplierRepo *repository.SupplierRepository
	publisher    *events.StockEventPublisher
	authz        Authorizer
	thresholds   classify.Thresholds
	logger       *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	batchRepo *stockrepo.BatchRepository,
	ledgerRepo *stockrepo.LedgerRepository,
	medicineRepo *repository.MedicineRepository,
	supplierRepo *repository.SupplierRepository,
	publisher *events.StockEventPublisher,
	authz Authorizer,
	thresholds classify.Thresholds,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:           db,
		batchRepo:    batchRepo,
		ledgerRepo:   ledgerRepo,
		medicineRepo: medicineRepo,
		supplierRepo: supplierRepo,
		publisher:    publisher,
		authz:        authz,
		thresholds:   thresholds,
		logger:       log,
	}
}

// CreateBatchInput is the intake form for a received lot
type CreateBatchInput struct {
	BatchNumber      string           `json:"batch_number" validate:"required,max=100"`
	MedicineID       string           `json:"medicine_id" validate:"required,uuid"`
	SupplierID       string           `json:"supplier_id" validate:"required,uuid"`
	QuantityReceived int              `json:"quantity_received" validate:"required,min=1"`
	CurrentQuantity  *int             `json:"current_quantity,omitempty"`
	CostPrice        *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice     *decimal.Decimal `json:"selling_price,omitempty"`
	ManufactureDate  *time.Time       `json:"manufacture_date,omitempty"`
	ExpiryDate       time.Time        `json:"expiry_date" validate:"required"`
}

// validate applies the cross-field rules the struct tags cannot express.
func (in *CreateBatchInput) validate() error {
	details := make(map[string]string)

	if in.CurrentQuantity != nil {
		if *in.CurrentQuantity < 0 {
			details["current_quantity"] = "must not be negative"
		} else if *in.CurrentQuantity > in.QuantityReceived {
			details["current_quantity"] = "must not exceed the received quantity"
		}
	}
	if in.ManufactureDate != nil && !in.ManufactureDate.Before(in.ExpiryDate) {
		details["manufacture_date"] = "must be before the expiry date"
	}
	if in.CostPrice != nil && in.CostPrice.IsNegative() {
		details["cost_price"] = "must not be negative"
	}
	if in.SellingPrice != nil && in.SellingPrice.IsNegative() {
		details["selling_price"] = "must not be negative"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// CreateBatch records a received lot. The batch row, a synthetic receipt
// ledger entry for the full received quantity, and (when the opening
// quantity differs) an opening adjustment entry commit in one transaction,
// so the ledger fully explains the cached quantity from the start.
func (s *StockService) CreateBatch(ctx context.Context, input *CreateBatchInput) (*stockrepo.Batch, error) {
	if !s.authz.CanMutateBatch(ctx) {
		return nil, errors.Forbidden("not allowed to create batches")
	}

	if err := httputil.Validate(input); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, input.MedicineID, input.SupplierID); err != nil {
		return nil, err
	}

	current := input.QuantityReceived
	if input.CurrentQuantity != nil {
		current = *input.CurrentQuantity
	}

	batch := &stockrepo.Batch{
		BatchNumber:      input.BatchNumber,
		MedicineID:       input.MedicineID,
		SupplierID:       input.SupplierID,
		QuantityReceived: input.QuantityReceived,
		CurrentQuantity:  current,
		CostPrice:        input.CostPrice,
		SellingPrice:     input.SellingPrice,
		ManufactureDate:  input.ManufactureDate,
		ExpiryDate:       input.ExpiryDate,
	}

	performedBy, performedByName := actorRef(ctx)

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.batchRepo.Create(ctx, tx, batch); err != nil {
			return err
		}

		receipt := &stockrepo.LedgerEntry{
			BatchID:           batch.ID,
			QuantityChange:    batch.QuantityReceived,
			Kind:              stockrepo.KindReceipt,
			ResultingQuantity: batch.QuantityReceived,
			PerformedBy:       performedBy,
			PerformedByName:   performedByName,
		}
		if err := s.ledgerRepo.Append(ctx, tx, receipt); err != nil {
			return err
		}

		// An opening quantity below the received quantity is recorded as an
		// adjustment so replaying the ledger still reproduces the cache.
		if batch.CurrentQuantity != batch.QuantityReceived {
			note := "opening balance correction"
			adjustment := &stockrepo.LedgerEntry{
				BatchID:           batch.ID,
				QuantityChange:    batch.CurrentQuantity - batch.QuantityReceived,
				Kind:              stockrepo.KindAdjustment,
				ResultingQuantity: batch.CurrentQuantity,
				PerformedBy:       performedBy,
				PerformedByName:   performedByName,
				Note:              &note,
			}
			if err := s.ledgerRepo.Append(ctx, tx, adjustment); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishBatchCreated(ctx, batch)

	return batch, nil
}

// checkReferences verifies both catalog references exist before accepting a batch.
func (s *StockService) checkReferences(ctx context.Context, medicineID, supplierID string) error {
	exists, err := s.medicineRepo.Exists(ctx, medicineID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Reference("medicine")
	}

	exists, err = s.supplierRepo.Exists(ctx, supplierID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Reference("supplier")
	}
	return nil
}

// GetBatch gets an active batch by ID
func (s *StockService) GetBatch(ctx context.Context, id string) (*stockrepo.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// DeleteBatch tombstones a batch; subsequent reads exclude it by default.
func (s *StockService) DeleteBatch(ctx context.Context, id string) error {
	if !s.authz.CanMutateBatch(ctx) {
		return errors.Forbidden("not allowed to delete batches")
	}

	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.batchRepo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.publisher.PublishBatchDeleted(ctx, batch, actorID(ctx))
	return nil
}

// RestoreBatch clears a batch's tombstone, the inverse of DeleteBatch.
// A batch that was never deleted is a conflict, not a not-found.
func (s *StockService) RestoreBatch(ctx context.Context, id string) (*stockrepo.Batch, error) {
	if !s.authz.CanMutateBatch(ctx) {
		return nil, errors.Forbidden("not allowed to restore batches")
	}

	existing, err := s.batchRepo.GetByIDIncludingDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.DeletedAt == nil {
		return nil, errors.Conflict("batch is not deleted")
	}

	if err := s.batchRepo.Restore(ctx, id); err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishBatchRestored(ctx, batch, actorID(ctx))
	return batch, nil
}

// AppendEntryInput describes a quantity adjustment against a batch
type AppendEntryInput struct {
	QuantityChange int     `json:"quantity_change" validate:"required"`
	Kind           string  `json:"kind" validate:"required"`
	Note           *string `json:"note,omitempty"`
}

// validate applies the kind check the struct tags leave to the repository's
// kind catalog, so the accepted set is defined in exactly one place.
func (in *AppendEntryInput) validate() error {
	if !stockrepo.ValidKind(in.Kind) {
		return errors.Validation(map[string]string{
			"kind": fmt.Sprintf("unknown ledger entry kind %q", in.Kind),
		})
	}
	return nil
}

// AppendEntry applies a signed quantity change to a batch. The row lock,
// the entry insert and the cached quantity update share one transaction:
// either both writes commit or neither is visible. An append that would
// drive the quantity negative is rejected and changes nothing.
func (s *StockService) AppendEntry(ctx context.Context, batchID string, input *AppendEntryInput) (*stockrepo.LedgerEntry, error) {
	if !s.authz.CanMutateBatch(ctx) {
		return nil, errors.Forbidden("not allowed to adjust stock")
	}

	if err := httputil.Validate(input); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	performedBy, performedByName := actorRef(ctx)

	entry := &stockrepo.LedgerEntry{
		BatchID:         batchID,
		QuantityChange:  input.QuantityChange,
		Kind:            input.Kind,
		PerformedBy:     performedBy,
		PerformedByName: performedByName,
		Note:            input.Note,
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.batchRepo.LockForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}

		resulting := batch.CurrentQuantity + input.QuantityChange
		if resulting < 0 {
			return errors.InvariantViolation(fmt.Sprintf(
				"quantity change %d would drive batch %s from %d to %d",
				input.QuantityChange, batch.BatchNumber, batch.CurrentQuantity, resulting,
			))
		}
		entry.ResultingQuantity = resulting

		if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
			return err
		}

		return s.batchRepo.UpdateQuantity(ctx, tx, batchID, resulting)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishLedgerAppended(ctx, entry)

	return entry, nil
}

// ListLedger lists a batch's ledger entries in replay order.
func (s *StockService) ListLedger(ctx context.Context, batchID string) ([]*stockrepo.LedgerEntry, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListByBatch(ctx, batchID)
}

// ReconstructQuantity replays the batch's ledger and returns the derived quantity.
func (s *StockService) ReconstructQuantity(ctx context.Context, batchID string) (int, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return 0, err
	}
	return s.ledgerRepo.SumDeltas(ctx, batchID)
}

// VerifyReport is the result of reconciling a batch's cached quantity
// against its ledger.
type VerifyReport struct {
	BatchID         string `json:"batch_id"`
	CachedQuantity  int    `json:"cached_quantity"`
	DerivedQuantity int    `json:"derived_quantity"`
	Consistent      bool   `json:"consistent"`
}

// VerifyBatch reconciles the cached quantity with the ledger derivation.
// Drift means a defect somewhere; it is surfaced as a hard failure and
// logged, never repaired silently.
func (s *StockService) VerifyBatch(ctx context.Context, batchID string) (*VerifyReport, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	derived, err := s.ledgerRepo.SumDeltas(ctx, batchID)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{
		BatchID:         batch.ID,
		CachedQuantity:  batch.CurrentQuantity,
		DerivedQuantity: derived,
		Consistent:      derived == batch.CurrentQuantity,
	}

	if !report.Consistent {
		s.logger.Error().
			Str("batch_id", batch.ID).
			Int("cached", batch.CurrentQuantity).
			Int("derived", derived).
			Msg("ledger reconciliation mismatch")
		return report, errors.InvariantViolation(fmt.Sprintf(
			"cached quantity %d disagrees with ledger derivation %d for batch %s",
			batch.CurrentQuantity, derived, batch.BatchNumber,
		))
	}

	return report, nil
}

// actorRef extracts the acting user's id and name for the audit trail.
func actorRef(ctx context.Context) (*string, *string) {
	a := actor.FromContext(ctx)
	if a == nil {
		return nil, nil
	}
	id := a.ID
	name := a.Name
	return &id, &name
}

func actorID(ctx context.Context) string {
	a := actor.FromContext(ctx)
	if a == nil {
		return ""
	}
	return a.ID
}
