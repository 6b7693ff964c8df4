package tick

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	cp "github.com/otiai10/copy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agentwars/arena-api/cmd/worker/internal/filetree"
	"github.com/agentwars/arena-api/cmd/worker/internal/gitfetch"
	"github.com/agentwars/arena-api/cmd/worker/internal/manifest"
	"github.com/agentwars/arena-api/cmd/worker/internal/probe"
	"github.com/agentwars/arena-api/cmd/worker/internal/scoring"
	"github.com/agentwars/arena-api/cmd/worker/internal/setup"
	"github.com/agentwars/arena-api/internal/logger"
	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/store"
	"github.com/agentwars/arena-api/internal/types"
	"github.com/agentwars/arena-api/internal/upload"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/tick",
)

// Options tunes one orchestrator. The zero value evaluates projects one at a
// time, in the OS temp dir, with no per-project deadline and no archiving.
type Options struct {
	// Archiver receives a copy of every evaluation artifact when set.
	Archiver upload.Uploader
	// TempDir hosts the ephemeral per-project workspaces.
	TempDir string
	// Workers bounds concurrent project evaluations.
	Workers int
	// ProjectDeadline aborts a single project's pipeline when positive.
	ProjectDeadline time.Duration
}

// Orchestrator drives one evaluation round over every active project. All
// collaborators are injected; the orchestrator holds no ambient state.
type Orchestrator struct {
	gateway store.Gateway
	fetcher gitfetch.Fetcher
	prober  probe.Prober
	runner  setup.Runner
	options Options
}

func NewOrchestrator(
	gateway store.Gateway,
	fetcher gitfetch.Fetcher,
	prober probe.Prober,
	runner setup.Runner,
	options Options,
) *Orchestrator {
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.TempDir == "" {
		options.TempDir = os.TempDir()
	}

	return &Orchestrator{
		gateway: gateway,
		fetcher: fetcher,
		prober:  prober,
		runner:  runner,
		options: options,
	}
}

// RunTick evaluates every active project for the tick window containing now.
// One project's failure never blocks another's, and the tick always reaches
// done once the fan-out joins, even if every project failed.
func (o *Orchestrator) RunTick(ctx context.Context, now time.Time) error {
	tickAt := types.FloorToTick(now)

	ctx, span := tracer.Start(ctx, "Orchestrator.RunTick", trace.WithAttributes(
		attribute.String("tickAt", tickAt.Format(time.RFC3339)),
	))
	defer span.End()

	tick, err := o.gateway.UpsertTick(ctx, tickAt, types.TickStatusRunning)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert tick")
		return err
	}

	defer func() {
		if err := o.gateway.SetTickStatus(ctx, tick.ID, types.TickStatusDone); err != nil {
			logger.Logger.ErrorContext(ctx, "failed to mark tick done",
				"tickId", tick.ID, "error", err)
			span.RecordError(err)
		}
	}()

	projects, err := o.gateway.ListActiveProjects(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list active projects")
		return err
	}

	span.SetAttributes(attribute.Int("projectCount", len(projects)))
	logger.Logger.InfoContext(ctx, "starting tick",
		"tickAt", tickAt, "projects", len(projects), "workers", o.options.Workers)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.options.Workers)
	for _, project := range projects {
		group.Go(func() error {
			o.evaluateProject(groupCtx, tick, tickAt, project)
			return nil
		})
	}
	// Join errors are impossible by construction, each task isolates its own.
	_ = group.Wait()

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "ran tick")
	return nil
}

// RunEvery evaluates the current window immediately and then re-runs once
// per interval until the context is cancelled. A failed round is logged and
// the loop keeps going; the next window gets a fresh attempt.
func (o *Orchestrator) RunEvery(ctx context.Context, every time.Duration) error {
	if err := o.RunTick(ctx, time.Now()); err != nil {
		logger.Logger.ErrorContext(ctx, "tick failed", "error", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := o.RunTick(ctx, now); err != nil {
				logger.Logger.ErrorContext(ctx, "tick failed", "error", err)
			}
		}
	}
}

// evaluateProject wraps one project's pipeline so that any failure is
// narrated into the event feed instead of escaping.
func (o *Orchestrator) evaluateProject(
	ctx context.Context,
	tick *models.Tick,
	tickAt time.Time,
	project models.Project,
) {
	ctx, span := tracer.Start(ctx, "Orchestrator.evaluateProject", trace.WithAttributes(
		attribute.String("project.id", project.ID.String()),
		attribute.String("repo.url", project.RepoURL),
	))
	defer span.End()

	if o.options.ProjectDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.options.ProjectDeadline)
		defer cancel()
	}

	err := o.evaluate(ctx, tick, tickAt, project)
	if err == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "evaluated project")
		return
	}

	logger.Logger.ErrorContext(ctx, "project pipeline failed",
		"projectId", project.ID, "repoUrl", project.RepoURL, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "project pipeline failed")

	payload := types.PipelineFailedPayload{Error: err.Error()}
	if appendErr := o.gateway.AppendArenaEvent(ctx, project.ID, tick.ID, payload); appendErr != nil {
		logger.Logger.ErrorContext(ctx, "failed to append pipeline failure event",
			"projectId", project.ID, "error", appendErr)
		span.RecordError(appendErr)
	}
}

func (o *Orchestrator) evaluate(
	ctx context.Context,
	tick *models.Tick,
	tickAt time.Time,
	project models.Project,
) error {
	ctx, span := tracer.Start(ctx, "Orchestrator.evaluate")
	defer span.End()

	started := time.Now()

	workspace, err := os.MkdirTemp(o.options.TempDir, "arena-tick-*")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create workspace")
		return err
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Logger.WarnContext(ctx, "failed to remove workspace",
				"workspace", workspace, "error", err)
		}
	}()

	commitSHA, err := o.fetcher.ResolveHead(ctx, project.RepoURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve head")
		return err
	}
	span.SetAttributes(attribute.String("commitSha", commitSHA))

	if err := o.gateway.UpsertRepoSnapshot(ctx, project.ID, tick.ID, commitSHA); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert repo snapshot")
		return err
	}

	repoDir := filepath.Join(workspace, "repo")
	if err := o.fetcher.FetchAt(ctx, project.RepoURL, commitSHA, repoDir); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch repo")
		return err
	}

	report, err := manifest.Inspect(ctx, repoDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to inspect manifest")
		return err
	}

	readmeFindings, readmeOk, err := manifest.InspectReadme(ctx, repoDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to inspect readme")
		return err
	}

	setupCommands := []string{}
	if report.Valid() {
		setupCommands = report.Manifest.SetupCommands()
		err := o.gateway.UpdateProjectMeta(
			ctx,
			project.ID,
			report.Manifest.Agentwars.Name,
			report.Manifest.Agentwars.Team,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to write back project meta")
			return err
		}
	}

	// The submitted demo URL is authoritative, the manifest's repo/demo
	// fields are declarations only.
	demoOutcome := o.prober.Probe(ctx, project.DemoURL)

	// Setup commands run in a scratch copy so the summarized tree reflects
	// the commit as fetched, not its build artifacts.
	buildDir := repoDir
	if len(setupCommands) > 0 {
		buildDir = filepath.Join(workspace, "build")
		if err := cp.Copy(repoDir, buildDir, cp.Options{}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to stage build copy")
			return err
		}
	}

	setupOutcome := o.runner.RunAll(ctx, buildDir, setupCommands)

	summary, err := filetree.Summarize(ctx, repoDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to summarize file tree")
		return err
	}

	// Required files are a presence check only. A present but invalid
	// manifest still counts as present; validity is scored separately
	// through HackathonJSONOk.
	manifestPresent := report.Status != manifest.StatusMissing
	checks := types.Checks{
		RequiredFilesOk: manifestPresent && readmeOk,
		HackathonJSONOk: report.Valid(),
		ReadmeOk:        readmeOk,
		DemoOk:          demoOutcome.Reachable,
		SetupAttempted:  setupOutcome.Attempted,
		SetupOk:         setupOutcome.AllOk,
	}

	checkErrors := types.CheckErrors{}
	var manifestErrors *string
	if len(report.Errors) > 0 {
		manifestErrors = strPtr(strings.Join(report.Errors, "\n"))
		checkErrors.HackathonJSONErrors = manifestErrors
	}
	if demoOutcome.Err != "" {
		checkErrors.DemoErr = strPtr(demoOutcome.Err)
	}

	artifact := types.EvaluationArtifact{
		TickAt:          tickAt,
		RepoURL:         project.RepoURL,
		CommitSHA:       commitSHA,
		Checks:          checks,
		Errors:          checkErrors,
		ReadmeFindings:  readmeFindings,
		FileTreeSummary: summary.Entries,
		Languages:       summary.Languages,
		TimingMS:        types.TimingMS{Total: time.Since(started).Milliseconds()},
	}

	evaluation := &models.Evaluation{
		ProjectID:           project.ID,
		TickID:              tick.ID,
		CommitSHA:           commitSHA,
		ReadmeFindings:      readmeFindings,
		ArtifactJSON:        artifact,
		HackathonJSONErrors: manifestErrors,
		DemoError:           checkErrors.DemoErr,
		FileTreeSummary:     summary.Entries,
		RequiredFilesOk:     checks.RequiredFilesOk,
		HackathonJSONOk:     checks.HackathonJSONOk,
		ReadmeOk:            checks.ReadmeOk,
		DemoReachable:       checks.DemoOk,
		SetupAttempted:      checks.SetupAttempted,
		SetupOk:             checks.SetupOk,
	}
	if setupOutcome.Attempted {
		evaluation.SetupLogTruncated = strPtr(setupOutcome.Log)
	}

	if err := o.gateway.UpsertEvaluation(ctx, evaluation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert evaluation")
		return err
	}

	penalties, total := scoring.Evaluate(checks)

	previous, err := o.gateway.FindLatestScore(ctx, project.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find latest score")
		return err
	}
	delta := total
	if previous != nil {
		delta = total - previous.TotalScore
	}

	score := &models.Score{
		ProjectID:     project.ID,
		TickID:        tick.ID,
		CommitSHA:     commitSHA,
		TotalScore:    total,
		DeltaVsPrev:   delta,
		BreakdownJSON: scoring.Breakdown(),
		PenaltiesJSON: models.PenaltyList{Penalties: penalties},
	}
	if err := o.gateway.UpsertScore(ctx, score); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert score")
		return err
	}

	payload := types.CheckSummaryPayload{
		CommitSHA:       commitSHA,
		RequiredFilesOk: checks.RequiredFilesOk,
		ManifestOk:      checks.HackathonJSONOk,
		ReadmeOk:        checks.ReadmeOk,
		DemoOk:          checks.DemoOk,
		SetupOk:         checks.SetupOk,
		TotalScore:      total,
	}
	if err := o.gateway.AppendArenaEvent(ctx, project.ID, tick.ID, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to append arena event")
		return err
	}

	o.archiveArtifact(ctx, tickAt, project, artifact)

	span.AddEvent("evaluated", trace.WithAttributes(
		attribute.Int("totalScore", total),
		attribute.Int("penaltyCount", len(penalties)),
	))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "evaluated project")
	return nil
}

// archiveArtifact mirrors the artifact into object storage. Best effort, a
// failed archive never fails the evaluation the database already holds.
func (o *Orchestrator) archiveArtifact(
	ctx context.Context,
	tickAt time.Time,
	project models.Project,
	artifact types.EvaluationArtifact,
) {
	if o.options.Archiver == nil {
		return
	}

	ctx, span := tracer.Start(ctx, "Orchestrator.archiveArtifact")
	defer span.End()

	raw, err := json.Marshal(artifact)
	if err != nil {
		logger.Logger.ErrorContext(ctx, "failed to encode artifact for archive",
			"projectId", project.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode artifact")
		return
	}

	key := upload.ArtifactKey(tickAt, project.ID, "artifact.json")
	if err := upload.Bytes(ctx, o.options.Archiver, raw, key); err != nil {
		logger.Logger.ErrorContext(ctx, "failed to archive artifact",
			"projectId", project.ID, "key", key, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to archive artifact")
		return
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived artifact")
}

func strPtr(s string) *string {
	return &s
}
