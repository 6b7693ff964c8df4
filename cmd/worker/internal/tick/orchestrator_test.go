package tick_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/agentwars/arena-api/cmd/worker/internal/gitfetch"
	mockfetch "github.com/agentwars/arena-api/cmd/worker/internal/gitfetch/mock"
	"github.com/agentwars/arena-api/cmd/worker/internal/probe"
	mockprobe "github.com/agentwars/arena-api/cmd/worker/internal/probe/mock"
	"github.com/agentwars/arena-api/cmd/worker/internal/setup"
	mocksetup "github.com/agentwars/arena-api/cmd/worker/internal/setup/mock"
	"github.com/agentwars/arena-api/cmd/worker/internal/tick"
	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/store"
	"github.com/agentwars/arena-api/internal/types"
)

// fakeGateway records every write in memory so tests can assert on exactly
// what a tick persisted.
type fakeGateway struct {
	mu          sync.Mutex
	tick        *models.Tick
	tickUpserts int
	tickStatus  types.TickStatus
	projects    []models.Project
	snapshots   map[uuid.UUID]string
	evaluations map[uuid.UUID]*models.Evaluation
	scores      map[uuid.UUID]*models.Score
	history     map[uuid.UUID]*models.Score
	events      []recordedEvent
	meta        map[uuid.UUID][2]string
}

type recordedEvent struct {
	projectID uuid.UUID
	payload   types.ArenaEventPayload
}

var _ store.Gateway = (*fakeGateway)(nil)

func newFakeGateway(projects ...models.Project) *fakeGateway {
	return &fakeGateway{
		projects:    projects,
		snapshots:   map[uuid.UUID]string{},
		evaluations: map[uuid.UUID]*models.Evaluation{},
		scores:      map[uuid.UUID]*models.Score{},
		history:     map[uuid.UUID]*models.Score{},
		meta:        map[uuid.UUID][2]string{},
	}
}

func (f *fakeGateway) UpsertTick(
	_ context.Context,
	tickAt time.Time,
	status types.TickStatus,
) (*models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickUpserts++
	if f.tick == nil {
		f.tick = &models.Tick{TickAt: tickAt, Status: status}
		f.tick.ID = uuid.New()
	}
	f.tickStatus = status
	return f.tick, nil
}

func (f *fakeGateway) ListActiveProjects(_ context.Context) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, nil
}

func (f *fakeGateway) UpsertRepoSnapshot(
	_ context.Context,
	projectID, _ uuid.UUID,
	commitSHA string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[projectID] = commitSHA
	return nil
}

func (f *fakeGateway) UpsertEvaluation(_ context.Context, evaluation *models.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluations[evaluation.ProjectID] = evaluation
	return nil
}

func (f *fakeGateway) UpsertScore(_ context.Context, score *models.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[score.ProjectID] = score
	return nil
}

func (f *fakeGateway) FindLatestScore(
	_ context.Context,
	projectID uuid.UUID,
) (*models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[projectID], nil
}

func (f *fakeGateway) UpdateProjectMeta(
	_ context.Context,
	projectID uuid.UUID,
	name, team string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[projectID] = [2]string{name, team}
	return nil
}

func (f *fakeGateway) AppendArenaEvent(
	_ context.Context,
	projectID, _ uuid.UUID,
	payload types.ArenaEventPayload,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{projectID: projectID, payload: payload})
	return nil
}

func (f *fakeGateway) SetTickStatus(
	_ context.Context,
	_ uuid.UUID,
	status types.TickStatus,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickStatus = status
	return nil
}

func activeProject(repoURL, demoURL string) models.Project {
	project := models.Project{
		OwnerID:  uuid.New(),
		Category: types.CategoryDevtoolsAgents,
		RepoURL:  repoURL,
		DemoURL:  demoURL,
		DemoType: types.DemoTypeLive,
		Status:   types.ProjectStatusActive,
	}
	project.ID = uuid.New()
	return project
}

// fetchAtWrites makes the mocked fetch materialize the given files, so the
// manifest, readme, and file tree stages run against a real directory.
func fetchAtWrites(files map[string]string) func(context.Context, string, string, string) error {
	return func(_ context.Context, _, _, dir string) error {
		for rel, content := range files {
			path := filepath.Join(dir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return err
			}
		}
		return nil
	}
}

const conformingManifest = `{
  "agentwars": {
    "season": "s1",
    "name": "Invoice Copilot",
    "team": "Night Shift",
    "category": "ai-sales-automation",
    "repo": "https://github.com/example/invoice-copilot",
    "demo": {"type": "live", "url": "https://demo.example.com"}
  }
}`

const manifestWithSetup = `{
  "agentwars": {
    "season": "s1",
    "name": "Invoice Copilot",
    "team": "Night Shift",
    "category": "ai-sales-automation",
    "repo": "https://github.com/example/invoice-copilot",
    "demo": {"type": "live", "url": "https://demo.example.com"},
    "setup": {"commands": ["npm ci", "npm run build"]}
  }
}`

func TestRunTick(t *testing.T) {
	t.Run("MissingManifestAndReadme", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)

		project := activeProject("https://github.com/example/empty", "https://demo.example.com")
		gateway := newFakeGateway(project)

		fetcher := mockfetch.NewMockFetcher(ctrl)
		fetcher.EXPECT().ResolveHead(gomock.Any(), project.RepoURL).Return("aaaaaaa", nil)
		fetcher.EXPECT().
			FetchAt(gomock.Any(), project.RepoURL, "aaaaaaa", gomock.Any()).
			DoAndReturn(fetchAtWrites(map[string]string{"main.py": "print('hi')\n"}))

		prober := mockprobe.NewMockProber(ctrl)
		prober.EXPECT().
			Probe(gomock.Any(), project.DemoURL).
			Return(probe.Outcome{Reachable: false, Err: "HTTP 503"})

		runner := mocksetup.NewMockRunner(ctrl)
		runner.EXPECT().
			RunAll(gomock.Any(), gomock.Any(), []string{}).
			Return(setup.Outcome{Attempted: false, AllOk: true})

		orchestrator := tick.NewOrchestrator(gateway, fetcher, prober, runner, tick.Options{
			TempDir: t.TempDir(),
		})
		require.NoError(t, orchestrator.RunTick(ctx, time.Now()))

		evaluation := gateway.evaluations[project.ID]
		require.NotNil(t, evaluation, "expected an evaluation row")
		assert.False(t, evaluation.RequiredFilesOk)
		assert.False(t, evaluation.HackathonJSONOk)
		assert.False(t, evaluation.ReadmeOk)
		assert.False(t, evaluation.DemoReachable)
		require.NotNil(t, evaluation.DemoError)
		assert.Equal(t, "HTTP 503", *evaluation.DemoError)

		score := gateway.scores[project.ID]
		require.NotNil(t, score, "expected a score row")
		assert.Equal(t, 0, score.TotalScore, "base 0 minus penalties clamps at 0")

		keys := make([]string, 0, len(score.PenaltiesJSON.Penalties))
		for _, p := range score.PenaltiesJSON.Penalties {
			keys = append(keys, p.Key)
		}
		assert.Equal(
			t,
			[]string{"missing_hackathon_json", "missing_readme", "demo_unreachable"},
			keys,
		)

		require.Len(t, gateway.events, 1)
		payload, ok := gateway.events[0].payload.(types.CheckSummaryPayload)
		require.True(t, ok, "expected a check summary event")
		assert.Equal(t, types.EventRequirementsMissing, payload.EventType())

		assert.Equal(t, types.TickStatusDone, gateway.tickStatus)
	})

	t.Run("FullyConformingProject", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)

		project := activeProject("https://github.com/example/ok", "https://demo.example.com")
		gateway := newFakeGateway(project)
		previous := &models.Score{ProjectID: project.ID, TotalScore: 10}
		gateway.history[project.ID] = previous

		fetcher := mockfetch.NewMockFetcher(ctrl)
		fetcher.EXPECT().ResolveHead(gomock.Any(), project.RepoURL).Return("bbbbbbb", nil)
		fetcher.EXPECT().
			FetchAt(gomock.Any(), project.RepoURL, "bbbbbbb", gomock.Any()).
			DoAndReturn(fetchAtWrites(map[string]string{
				"hackathon.json": conformingManifest,
				"README.md":      "# Invoice Copilot\n\n## How to run\n\nhttps://demo.example.com\n",
			}))

		prober := mockprobe.NewMockProber(ctrl)
		prober.EXPECT().
			Probe(gomock.Any(), project.DemoURL).
			Return(probe.Outcome{Reachable: true})

		runner := mocksetup.NewMockRunner(ctrl)
		runner.EXPECT().
			RunAll(gomock.Any(), gomock.Any(), []string{}).
			Return(setup.Outcome{Attempted: false, AllOk: true})

		orchestrator := tick.NewOrchestrator(gateway, fetcher, prober, runner, tick.Options{
			TempDir: t.TempDir(),
		})
		require.NoError(t, orchestrator.RunTick(ctx, time.Now()))

		evaluation := gateway.evaluations[project.ID]
		require.NotNil(t, evaluation)
		assert.True(t, evaluation.RequiredFilesOk)
		assert.True(t, evaluation.HackathonJSONOk)
		assert.True(t, evaluation.ReadmeOk)
		assert.True(t, evaluation.DemoReachable)
		assert.False(t, evaluation.SetupAttempted)
		assert.True(t, evaluation.SetupOk)

		score := gateway.scores[project.ID]
		require.NotNil(t, score)
		assert.Empty(t, score.PenaltiesJSON.Penalties)
		assert.Equal(t, 0, score.TotalScore)
		assert.Equal(t, -10, score.DeltaVsPrev, "delta is against the previous total")

		assert.Equal(t, [2]string{"Invoice Copilot", "Night Shift"}, gateway.meta[project.ID],
			"valid manifest writes back name and team")

		require.Len(t, gateway.events, 1)
		payload, ok := gateway.events[0].payload.(types.CheckSummaryPayload)
		require.True(t, ok)
		assert.Equal(t, types.EventScoreUpdated, payload.EventType())
	})

	t.Run("InvalidManifestStillCountsAsPresent", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)

		project := activeProject("https://github.com/example/sloppy", "https://demo.example.com")
		gateway := newFakeGateway(project)

		fetcher := mockfetch.NewMockFetcher(ctrl)
		fetcher.EXPECT().ResolveHead(gomock.Any(), project.RepoURL).Return("fffffff", nil)
		fetcher.EXPECT().
			FetchAt(gomock.Any(), project.RepoURL, "fffffff", gomock.Any()).
			DoAndReturn(fetchAtWrites(map[string]string{
				"hackathon.json": `{"agentwars": {"season": "s1"}}`,
				"README.md":      "# sloppy\n",
			}))

		prober := mockprobe.NewMockProber(ctrl)
		prober.EXPECT().
			Probe(gomock.Any(), project.DemoURL).
			Return(probe.Outcome{Reachable: true})

		runner := mocksetup.NewMockRunner(ctrl)
		runner.EXPECT().
			RunAll(gomock.Any(), gomock.Any(), []string{}).
			Return(setup.Outcome{Attempted: false, AllOk: true})

		orchestrator := tick.NewOrchestrator(gateway, fetcher, prober, runner, tick.Options{
			TempDir: t.TempDir(),
		})
		require.NoError(t, orchestrator.RunTick(ctx, time.Now()))

		evaluation := gateway.evaluations[project.ID]
		require.NotNil(t, evaluation)
		assert.True(t, evaluation.RequiredFilesOk,
			"presence is what counts; validity is a separate check")
		assert.False(t, evaluation.HackathonJSONOk)
		assert.True(t, evaluation.ReadmeOk)
		require.NotNil(t, evaluation.HackathonJSONErrors)

		score := gateway.scores[project.ID]
		require.NotNil(t, score)
		require.Len(t, score.PenaltiesJSON.Penalties, 1)
		assert.Equal(t, "missing_hackathon_json", score.PenaltiesJSON.Penalties[0].Key)

		assert.Empty(t, gateway.meta[project.ID], "invalid manifest must not write back meta")

		require.Len(t, gateway.events, 1)
		payload, ok := gateway.events[0].payload.(types.CheckSummaryPayload)
		require.True(t, ok)
		assert.Equal(t, types.EventScoreUpdated, payload.EventType(),
			"required files were present, so the event narrates the score")
	})

	t.Run("SetupFailureIsPenalized", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)

		project := activeProject("https://github.com/example/flaky", "https://demo.example.com")
		gateway := newFakeGateway(project)

		fetcher := mockfetch.NewMockFetcher(ctrl)
		fetcher.EXPECT().ResolveHead(gomock.Any(), project.RepoURL).Return("ccccccc", nil)
		fetcher.EXPECT().
			FetchAt(gomock.Any(), project.RepoURL, "ccccccc", gomock.Any()).
			DoAndReturn(fetchAtWrites(map[string]string{
				"hackathon.json": manifestWithSetup,
				"README.md":      "# Invoice Copilot\n",
			}))

		prober := mockprobe.NewMockProber(ctrl)
		prober.EXPECT().
			Probe(gomock.Any(), project.DemoURL).
			Return(probe.Outcome{Reachable: true})

		runner := mocksetup.NewMockRunner(ctrl)
		runner.EXPECT().
			RunAll(gomock.Any(), gomock.Any(), []string{"npm ci", "npm run build"}).
			Return(setup.Outcome{
				Attempted: true,
				AllOk:     false,
				Log:       "$ npm ci\nexit status 1\n---\n$ npm run build\nok\n---\n",
			})

		orchestrator := tick.NewOrchestrator(gateway, fetcher, prober, runner, tick.Options{
			TempDir: t.TempDir(),
		})
		require.NoError(t, orchestrator.RunTick(ctx, time.Now()))

		evaluation := gateway.evaluations[project.ID]
		require.NotNil(t, evaluation)
		assert.True(t, evaluation.SetupAttempted)
		assert.False(t, evaluation.SetupOk)
		require.NotNil(t, evaluation.SetupLogTruncated)
		assert.Contains(t, *evaluation.SetupLogTruncated, "npm ci")
		assert.Contains(t, *evaluation.SetupLogTruncated, "npm run build")

		score := gateway.scores[project.ID]
		require.NotNil(t, score)
		require.Len(t, score.PenaltiesJSON.Penalties, 1)
		assert.Equal(t, "setup_failed", score.PenaltiesJSON.Penalties[0].Key)
		assert.Equal(t, 5, score.PenaltiesJSON.Penalties[0].Points)
	})

	t.Run("OneFailingProjectDoesNotBlockOthers", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)

		broken := activeProject("https://github.com/example/broken", "https://demo.example.com")
		healthy := activeProject("https://github.com/example/ok", "https://demo.example.com")
		gateway := newFakeGateway(broken, healthy)

		fetcher := mockfetch.NewMockFetcher(ctrl)
		fetcher.EXPECT().
			ResolveHead(gomock.Any(), broken.RepoURL).
			Return("", gitfetch.ErrUnresolvableRef)
		fetcher.EXPECT().ResolveHead(gomock.Any(), healthy.RepoURL).Return("ddddddd", nil)
		fetcher.EXPECT().
			FetchAt(gomock.Any(), healthy.RepoURL, "ddddddd", gomock.Any()).
			DoAndReturn(fetchAtWrites(map[string]string{
				"hackathon.json": conformingManifest,
				"README.md":      "# ok\n",
			}))

		prober := mockprobe.NewMockProber(ctrl)
		prober.EXPECT().
			Probe(gomock.Any(), healthy.DemoURL).
			Return(probe.Outcome{Reachable: true})

		runner := mocksetup.NewMockRunner(ctrl)
		runner.EXPECT().
			RunAll(gomock.Any(), gomock.Any(), []string{}).
			Return(setup.Outcome{Attempted: false, AllOk: true})

		orchestrator := tick.NewOrchestrator(gateway, fetcher, prober, runner, tick.Options{
			TempDir: t.TempDir(),
		})
		require.NoError(t, orchestrator.RunTick(ctx, time.Now()))

		assert.Nil(t, gateway.evaluations[broken.ID], "failed pipeline must not produce an evaluation")
		assert.Nil(t, gateway.scores[broken.ID], "failed pipeline must not produce a score")
		assert.NotNil(t, gateway.evaluations[healthy.ID])
		assert.NotNil(t, gateway.scores[healthy.ID])

		var failure *types.PipelineFailedPayload
		for _, event := range gateway.events {
			if event.projectID != broken.ID {
				continue
			}
			payload, ok := event.payload.(types.PipelineFailedPayload)
			require.True(t, ok, "broken project must only emit a pipeline failure")
			failure = &payload
		}
		require.NotNil(t, failure, "expected a pipeline failure event")
		assert.Contains(t, failure.Error, "could not resolve HEAD")

		assert.Equal(t, types.TickStatusDone, gateway.tickStatus,
			"tick reaches done even when projects fail")
	})

	t.Run("RunEveryLoopsUntilCancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
		defer cancel()
		ctrl := gomock.NewController(t)

		gateway := newFakeGateway()

		orchestrator := tick.NewOrchestrator(
			gateway,
			mockfetch.NewMockFetcher(ctrl),
			mockprobe.NewMockProber(ctrl),
			mocksetup.NewMockRunner(ctrl),
			tick.Options{TempDir: t.TempDir()},
		)

		require.NoError(t, orchestrator.RunEvery(ctx, 25*time.Millisecond),
			"context cancellation is a clean shutdown")

		gateway.mu.Lock()
		defer gateway.mu.Unlock()
		assert.GreaterOrEqual(t, gateway.tickUpserts, 2,
			"loop mode must keep re-running the tick")
		assert.Equal(t, types.TickStatusDone, gateway.tickStatus)
	})

	t.Run("WorkspaceIsCleanedUp", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)

		project := activeProject("https://github.com/example/tidy", "https://demo.example.com")
		gateway := newFakeGateway(project)
		tempDir := t.TempDir()

		fetcher := mockfetch.NewMockFetcher(ctrl)
		fetcher.EXPECT().ResolveHead(gomock.Any(), project.RepoURL).Return("eeeeeee", nil)
		fetcher.EXPECT().
			FetchAt(gomock.Any(), project.RepoURL, "eeeeeee", gomock.Any()).
			Return(errors.New("boom"))

		prober := mockprobe.NewMockProber(ctrl)
		runner := mocksetup.NewMockRunner(ctrl)

		orchestrator := tick.NewOrchestrator(gateway, fetcher, prober, runner, tick.Options{
			TempDir: tempDir,
		})
		require.NoError(t, orchestrator.RunTick(ctx, time.Now()))

		entries, err := os.ReadDir(tempDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "workspace must be removed even on failure")
	})
}
