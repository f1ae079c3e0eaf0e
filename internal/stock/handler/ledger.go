package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmstock/pharmstock-backend/internal/stock/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// LedgerHandler handles stock ledger endpoints
type LedgerHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(svc *service.StockService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: svc,
		logger:  log,
	}
}

// Append applies a quantity change to a batch
func (h *LedgerHandler) Append(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var input service.AppendEntryInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.service.AppendEntry(r.Context(), batchID, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entry)
}

// List lists a batch's ledger entries in replay order
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	entries, err := h.service.ListLedger(r.Context(), batchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// Verify reconciles a batch's cached quantity against its ledger
func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	report, err := h.service.VerifyBatch(r.Context(), batchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
