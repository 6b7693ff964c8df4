package filetree

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/filetree",
)

const (
	// MaxEntries bounds the stored summary.
	MaxEntries = 400
	// MaxDepth bounds how many path components deep the walk goes.
	MaxDepth = 3
)

// Version-control and dependency-cache directories carry no signal about the
// submission itself.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

// Summary is the capped evidence listing of a fetched repository. Entries
// are slash-separated relative paths, directories suffixed with "/".
// Languages counts files per detected language inside the summarized slice.
type Summary struct {
	Entries   []string
	Languages map[string]int
}

// Summarize walks root breadth-bounded and returns the evidence listing.
func Summarize(ctx context.Context, root string) (*Summary, error) {
	_, span := tracer.Start(ctx, "filetree.Summarize", trace.WithAttributes(
		attribute.String("root", root),
	))
	defer span.End()

	summary := &Summary{
		Entries:   []string{},
		Languages: map[string]int{},
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() && skippedDirs[d.Name()] {
			return fs.SkipDir
		}

		depth := strings.Count(rel, "/") + 1
		if depth > MaxDepth {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if len(summary.Entries) >= MaxEntries {
			return fs.SkipAll
		}

		if d.IsDir() {
			summary.Entries = append(summary.Entries, rel+"/")
			return nil
		}

		summary.Entries = append(summary.Entries, rel)
		if language, ok := enry.GetLanguageByExtension(rel); ok {
			summary.Languages[language]++
		} else if language, ok := enry.GetLanguageByFilename(rel); ok {
			summary.Languages[language]++
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk repository")
		return nil, err
	}

	span.SetAttributes(attribute.Int("entryCount", len(summary.Entries)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "summarized repository")
	return summary, nil
}
