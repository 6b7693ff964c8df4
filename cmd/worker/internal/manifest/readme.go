package manifest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentwars/arena-api/internal/types"
)

// ReadmeFileName is the required companion file next to the manifest.
const ReadmeFileName = "README.md"

var (
	demoLinkPattern   = regexp.MustCompile(`https?://`)
	runSectionPattern = regexp.MustCompile(`(?i)how to run|setup|install`)
)

// InspectReadme reports whether the repository carries a README and what it
// contains. A missing README returns ok=false with nil findings, it is a
// scored outcome like a missing manifest.
func InspectReadme(
	ctx context.Context,
	repoDir string,
) (*types.ReadmeFindings, bool, error) {
	_, span := tracer.Start(ctx, "manifest.InspectReadme", trace.WithAttributes(
		attribute.String("dir", repoDir),
	))
	defer span.End()

	raw, err := os.ReadFile(filepath.Join(repoDir, ReadmeFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			span.AddEvent("readme missing")
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "readme missing")
			return nil, false, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read readme")
		return nil, false, err
	}

	findings := &types.ReadmeFindings{
		Size:          len(raw),
		HasDemoLink:   demoLinkPattern.Match(raw),
		HasRunSection: runSectionPattern.Match(raw),
	}

	span.AddEvent("readme inspected", trace.WithAttributes(
		attribute.Int("size", findings.Size),
		attribute.Bool("hasDemoLink", findings.HasDemoLink),
		attribute.Bool("hasRunSection", findings.HasRunSection),
	))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "readme inspected")
	return findings, true, nil
}
