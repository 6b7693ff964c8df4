package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/internal/upload",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Generic object persistence interface used to archive evaluation artifacts.
type Uploader interface {
	// Create / Overwrite object contents at `key`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error
	// Check if an object exists (focused on skipping redundant archive writes, not authoritative existence)
	//
	// May always return false
	Exists(ctx context.Context, key string) (bool, error)
	// Provide an identifier for where objects are being uploaded to. Useful for logging and auditing purposes.
	StoreIdentifier(ctx context.Context) (string, error)
	// Anonymous, readonly, internet accessible URL for downloading the object
	PresignedReadURL(ctx context.Context, key string, duration time.Duration) (string, error)
}

// ArtifactKey builds the deterministic archive key for a per-project tick
// artifact. Re-running the same tick overwrites the same object, matching the
// upsert semantics of the database rows.
func ArtifactKey(tickAt time.Time, projectID uuid.UUID, name string) string {
	return fmt.Sprintf("ticks/%s/%s/%s", tickAt.UTC().Format("2006-01-02T15-04"), projectID, name)
}

// Bytes uploads an in-memory buffer to `key`.
func Bytes(ctx context.Context, u Uploader, data []byte, key string) error {
	ctx, span := tracer.Start(ctx, "UploadBytes", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int("length", len(data)),
	))
	defer span.End()

	err := u.Upload(ctx, bytes.NewReader(data), int64(len(data)), key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload buffer")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded buffer")
	return nil
}
