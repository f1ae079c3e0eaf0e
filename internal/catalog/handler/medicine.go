package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmstock/pharmstock-backend/internal/catalog/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// MedicineHandler handles medicine catalog endpoints
type MedicineHandler struct {
	repo   *repository.MedicineRepository
	logger *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(repo *repository.MedicineRepository, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		repo:   repo,
		logger: log,
	}
}

type medicineRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	GenericName *string `json:"generic_name,omitempty"`
	Form        *string `json:"form,omitempty"`
	Strength    *string `json:"strength,omitempty"`
}

// List lists all medicines
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.repo.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}

// Get gets a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	medicine, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Create creates a new medicine
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine := &repository.Medicine{
		Name:        req.Name,
		GenericName: req.GenericName,
		Form:        req.Form,
		Strength:    req.Strength,
	}

	if err := h.repo.Create(r.Context(), medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, medicine)
}

// Update updates a medicine
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req medicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine := &repository.Medicine{
		ID:          id,
		Name:        req.Name,
		GenericName: req.GenericName,
		Form:        req.Form,
		Strength:    req.Strength,
	}

	if err := h.repo.Update(r.Context(), medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Delete deletes a medicine
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.Delete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
