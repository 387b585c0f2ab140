package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"diarium/internal/config"
	"diarium/internal/database"
	"diarium/internal/database/migration"
	handlers "diarium/internal/http/handler"
	"diarium/internal/http/middleware"
	"diarium/internal/logger"
	appotel "diarium/internal/otel"
	"diarium/internal/repository/postgres"
	"diarium/internal/service"
	"diarium/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	shutdownTracing, err := appotel.Init(ctx, zl)
	if err != nil {
		zl.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migration.EnsureMigrated(migrateCtx, db, zl); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		zl.Fatal("failed to initialize object storage", zap.Error(err))
	}

	// Initialize repositories and services
	revRepo := postgres.NewRevisionPostgres(db)
	seqRepo := postgres.NewSequencePostgres(db)
	typeCatalog := postgres.NewDocumentTypePostgres(db)

	allocator := service.NewAllocator(seqRepo)
	docSvc := service.NewDocumentService(revRepo, typeCatalog, allocator, objStore, zl)
	searchSvc := service.NewSearchService(revRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(zl))
	app.Use(otelfiber.Middleware())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		zl.Fatal("failed to register metrics", zap.Error(err))
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, docSvc, searchSvc)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		zl.Fatal("failed to start server", zap.Error(err))
	}
}
