package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentwars/arena-api/internal/types"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/manifest",
)

// FileName is the manifest every submission declares at its repository root.
const FileName = "hackathon.json"

//go:embed hackathon.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString(FileName, schemaJSON)

type Status string

const (
	StatusMissing       Status = "missing"
	StatusMalformed     Status = "malformed"
	StatusSchemaInvalid Status = "schema_invalid"
	StatusValid         Status = "valid"
)

type Demo struct {
	Type  types.DemoType `json:"type"`
	URL   string         `json:"url"`
	Notes *string        `json:"notes,omitempty"`
}

type Setup struct {
	Requirements []string `json:"requirements,omitempty"`
	Commands     []string `json:"commands,omitempty"`
}

type AgentUsage struct {
	WhatAgentsDid []string `json:"what_agents_did,omitempty"`
	Proof         []string `json:"proof,omitempty"`
}

// Declaration is the `agentwars` block of a valid manifest.
type Declaration struct {
	Season     string         `json:"season"`
	Name       string         `json:"name"`
	Team       string         `json:"team"`
	Category   types.Category `json:"category"`
	Repo       string         `json:"repo"`
	Demo       Demo           `json:"demo"`
	Setup      *Setup         `json:"setup,omitempty"`
	Features   []string       `json:"features,omitempty"`
	AgentUsage *AgentUsage    `json:"agent_usage,omitempty"`
}

type Manifest struct {
	Agentwars Declaration `json:"agentwars"`
}

// SetupCommands returns the declared setup commands, defaulting to an empty
// list when the setup block or its commands are absent.
func (m *Manifest) SetupCommands() []string {
	if m.Agentwars.Setup == nil || m.Agentwars.Setup.Commands == nil {
		return []string{}
	}
	return m.Agentwars.Setup.Commands
}

// Report classifies one repository's manifest. Manifest is only set when
// Status is StatusValid. Errors carries human readable diagnostics for the
// malformed and schema-invalid cases.
type Report struct {
	Status   Status
	Manifest *Manifest
	Errors   []string
}

func (r *Report) Valid() bool {
	return r.Status == StatusValid
}

// Inspect classifies the manifest inside repoDir. Bad submissions are a
// scored outcome, not an error: Inspect only fails on filesystem trouble
// unrelated to the manifest's content.
func Inspect(ctx context.Context, repoDir string) (*Report, error) {
	_, span := tracer.Start(ctx, "manifest.Inspect", trace.WithAttributes(
		attribute.String("dir", repoDir),
	))
	defer span.End()

	raw, err := os.ReadFile(filepath.Join(repoDir, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			span.AddEvent("manifest missing")
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "manifest missing")
			return &Report{Status: StatusMissing}, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read manifest")
		return nil, err
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		span.AddEvent("manifest malformed")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "manifest malformed")
		return &Report{
			Status: StatusMalformed,
			Errors: []string{"hackathon.json is not valid JSON: " + err.Error()},
		}, nil
	}

	if err := schema.Validate(value); err != nil {
		var validationErr *jsonschema.ValidationError
		if !errors.As(err, &validationErr) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to validate manifest")
			return nil, err
		}

		basicErrs := validationErr.BasicOutput().Errors
		messages := make([]string, 0, len(basicErrs))
		for _, e := range basicErrs {
			if e.Error == "" {
				continue
			}
			messages = append(messages, e.InstanceLocation+": "+e.Error)
		}

		span.AddEvent("manifest schema invalid", trace.WithAttributes(
			attribute.Int("errorCount", len(messages)),
		))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "manifest schema invalid")
		return &Report{Status: StatusSchemaInvalid, Errors: messages}, nil
	}

	var parsed Manifest
	if err := json.Unmarshal(raw, &parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode schema-valid manifest")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "manifest valid")
	return &Report{Status: StatusValid, Manifest: &parsed}, nil
}
