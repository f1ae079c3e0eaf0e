package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/pharmstock/pharmstock-backend/internal/catalog/handler"
	"github.com/pharmstock/pharmstock-backend/internal/catalog/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

func newCatalogRouter(t *testing.T) (chi.Router, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromDB(mockDB.DB, log)

	medicineHandler := handler.NewMedicineHandler(repository.NewMedicineRepository(db), log)
	supplierHandler := handler.NewSupplierHandler(repository.NewSupplierRepository(db), log)

	r := chi.NewRouter()
	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", medicineHandler.List)
		r.Post("/", medicineHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", medicineHandler.Get)
			r.Put("/", medicineHandler.Update)
			r.Delete("/", medicineHandler.Delete)
		})
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", supplierHandler.List)
		r.Post("/", supplierHandler.Create)
	})

	return r, mockDB
}

var medicineColumns = []string{"id", "name", "generic_name", "form", "strength", "created_at", "updated_at"}

func TestMedicineCreate(t *testing.T) {
	router, mockDB := newCatalogRouter(t)

	mockDB.Mock.ExpectQuery("INSERT INTO medicines").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now().UTC(), time.Now().UTC()))

	body := map[string]interface{}{
		"name":     "Ibuprofen 400mg",
		"form":     "tablet",
		"strength": "400mg",
	}
	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/medicines", body))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertBodyContains(t, rr, "Ibuprofen 400mg")

	mockDB.ExpectationsWereMet(t)
}

func TestMedicineCreate_MissingName(t *testing.T) {
	router, _ := newCatalogRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/medicines",
		map[string]interface{}{"form": "tablet"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "VALIDATION_ERROR")
}

func TestMedicineList(t *testing.T) {
	router, mockDB := newCatalogRouter(t)
	now := time.Now().UTC()

	mockDB.ExpectQuery(`SELECT * FROM medicines ORDER BY name`).
		WillReturnRows(testutil.MockRows(medicineColumns...).
			AddRow("m-1", "Amoxicillin", nil, nil, nil, now, now).
			AddRow("m-2", "Ibuprofen", nil, nil, nil, now, now))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/medicines", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, "Amoxicillin")

	mockDB.ExpectationsWereMet(t)
}

func TestMedicineGet_NotFound(t *testing.T) {
	router, mockDB := newCatalogRouter(t)

	mockDB.ExpectQuery(`SELECT * FROM medicines WHERE id = $1`).
		WithArgs("missing").
		WillReturnRows(testutil.MockRows(medicineColumns...))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/medicines/missing", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestMedicineDelete_StillReferenced(t *testing.T) {
	router, mockDB := newCatalogRouter(t)

	// Postgres rejects the delete while batches still reference the medicine.
	mockDB.ExpectExec(`DELETE FROM medicines WHERE id = $1`).
		WithArgs("m-1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "batches_medicine_id_fkey"})

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodDelete, "/medicines/m-1", nil))
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	testutil.AssertBodyContains(t, rr, "INVALID_REFERENCE")
}

func TestSupplierCreate(t *testing.T) {
	router, mockDB := newCatalogRouter(t)

	mockDB.Mock.ExpectQuery("INSERT INTO suppliers").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now().UTC(), time.Now().UTC()))

	body := map[string]interface{}{
		"name":  "MedSupply GmbH",
		"email": "orders@medsupply.example",
	}
	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/suppliers", body))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertBodyContains(t, rr, "MedSupply GmbH")

	mockDB.ExpectationsWereMet(t)
}
