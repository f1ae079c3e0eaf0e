package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	cataloghandler "github.com/pharmstock/pharmstock-backend/internal/catalog/handler"
	catalogrepo "github.com/pharmstock/pharmstock-backend/internal/catalog/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/classify"
	"github.com/pharmstock/pharmstock-backend/internal/stock/events"
	"github.com/pharmstock/pharmstock-backend/internal/stock/handler"
	"github.com/pharmstock/pharmstock-backend/internal/stock/repository"
	"github.com/pharmstock/pharmstock-backend/internal/stock/service"
	"github.com/pharmstock/pharmstock-backend/pkg/authtoken"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
	"github.com/pharmstock/pharmstock-backend/pkg/permissions"
)

func main() {
	// Load .env for local development; environment wins over file values
	_ = godotenv.Load()

	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	medicineRepo := catalogrepo.NewMedicineRepository(db)
	supplierRepo := catalogrepo.NewSupplierRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Initialize service
	thresholds := classify.Thresholds{
		LowStockThreshold:      cfg.Stock.LowStockThreshold,
		ExpiringSoonWindowDays: cfg.Stock.ExpiringSoonWindowDays,
	}
	stockService := service.NewStockService(
		db, batchRepo, ledgerRepo, medicineRepo, supplierRepo,
		publisher, service.PermissionAuthorizer{}, thresholds, log,
	)

	// Start background expiry scanning
	expiryScanner := service.NewExpiryScanner(batchRepo, publisher, thresholds, log)
	expiryScheduler := service.NewExpiryScheduler(expiryScanner, cfg.Stock.ExpiryScanInterval, log)
	expiryScheduler.Start(context.Background())
	defer expiryScheduler.Stop()

	// Initialize handlers
	batchHandler := handler.NewBatchHandler(stockService, log)
	ledgerHandler := handler.NewLedgerHandler(stockService, log)
	dashboardHandler := handler.NewDashboardHandler(stockService, log)
	medicineHandler := cataloghandler.NewMedicineHandler(medicineRepo, log)
	supplierHandler := cataloghandler.NewSupplierHandler(supplierRepo, log)

	tokenManager := authtoken.NewManager(&cfg.JWT)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.Authenticate(tokenManager))

		r.Route("/stock", func(r chi.Router) {
			r.Route("/batches", func(r chi.Router) {
				r.With(httputil.RequirePermission(permissions.StockRead)).Get("/", batchHandler.List)
				r.Post("/", batchHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.With(httputil.RequirePermission(permissions.StockRead)).Get("/", batchHandler.Get)
					r.Delete("/", batchHandler.Delete)
					r.Post("/restore", batchHandler.Restore)
					r.Post("/ledger", ledgerHandler.Append)
					r.With(httputil.RequirePermission(permissions.StockRead)).Get("/ledger", ledgerHandler.List)
					r.With(httputil.RequirePermission(permissions.StockRead)).Get("/verify", ledgerHandler.Verify)
				})
			})
			r.With(httputil.RequirePermission(permissions.StockRead)).Get("/dashboard", dashboardHandler.Get)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Route("/medicines", func(r chi.Router) {
				r.With(httputil.RequirePermission(permissions.CatalogRead)).Get("/", medicineHandler.List)
				r.With(httputil.RequirePermission(permissions.CatalogWrite)).Post("/", medicineHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.With(httputil.RequirePermission(permissions.CatalogRead)).Get("/", medicineHandler.Get)
					r.With(httputil.RequirePermission(permissions.CatalogWrite)).Put("/", medicineHandler.Update)
					r.With(httputil.RequirePermission(permissions.CatalogWrite)).Delete("/", medicineHandler.Delete)
				})
			})
			r.Route("/suppliers", func(r chi.Router) {
				r.With(httputil.RequirePermission(permissions.CatalogRead)).Get("/", supplierHandler.List)
				r.With(httputil.RequirePermission(permissions.CatalogWrite)).Post("/", supplierHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.With(httputil.RequirePermission(permissions.CatalogRead)).Get("/", supplierHandler.Get)
					r.With(httputil.RequirePermission(permissions.CatalogWrite)).Put("/", supplierHandler.Update)
					r.With(httputil.RequirePermission(permissions.CatalogWrite)).Delete("/", supplierHandler.Delete)
				})
			})
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server stopped")
}
