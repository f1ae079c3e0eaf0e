package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return mapForeignKey(pqErr)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names to domain errors. The
// quantity constraints guard the ledger invariants, so their violation is a
// defect signal rather than plain bad input.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "current_quantity_nonnegative"):
		return errors.InvariantViolation("batch quantity must never be negative")

	case strings.Contains(constraint, "quantity_received_positive"):
		return errors.Validation(map[string]string{
			"quantity_received": "must be at least 1",
		})

	case strings.Contains(constraint, "manufacture_before_expiry"):
		return errors.Validation(map[string]string{
			"manufacture_date": "must be before the expiry date",
		})

	case strings.Contains(constraint, "ledger_kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: receipt, dispense, adjustment, disposal, return",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapForeignKey maps foreign key violations to reference errors naming the
// catalog entity the dangling reference points at.
func mapForeignKey(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "medicine"):
		return errors.Reference("medicine")
	case strings.Contains(constraint, "supplier"):
		return errors.Reference("supplier")
	case strings.Contains(constraint, "batch"):
		return errors.Reference("batch")
	default:
		return errors.BadRequest("referenced record does not exist")
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_number"):
		return "a batch with this batch number already exists"
	case strings.Contains(constraint, "medicines_name"):
		return "a medicine with this name already exists"
	default:
		return "a record with these values already exists"
	}
}
