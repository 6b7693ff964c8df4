package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sloggorm "github.com/orandin/slog-gorm"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/agentwars/arena-api/internal/config"
	"github.com/agentwars/arena-api/internal/logger"
)

var tracer = otel.Tracer("github.com/agentwars/arena-api/internal/database")

// Connect opens the arena database with structured gorm logging, the otel
// plugin, and the configured pool limits, then waits for the database to
// answer a ping before handing the handle back.
func Connect(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	ctx, span := tracer.Start(ctx, "database.Connect")
	defer span.End()

	gormLogger := slog.New(logger.Handler)

	sg := sloggorm.New(
		sloggorm.WithHandler(gormLogger.Handler()),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	)
	if cfg.Logging.Gorm.TraceQueries {
		sg = sloggorm.New(
			sloggorm.WithHandler(gormLogger.Handler()),
			sloggorm.WithTraceAll(),
			sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
		)
	}

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sg, TranslateError: true},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire underlying database connection")
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	span.AddEvent("initialized database connection")

	err = db.Use(gormtracing.NewPlugin())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add otel plugin to gorm")
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	backoff := retry.NewFibonacci(time.Millisecond * 250)
	backoff = retry.WithMaxDuration(time.Second*30, backoff)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database did not become reachable")
		return nil, fmt.Errorf("database did not become reachable: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "connected to database")
	return db, nil
}
