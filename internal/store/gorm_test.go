package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/agentwars/arena-api/internal/migrations"
	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/types"
)

func TestGormGateway(t *testing.T) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16.4-alpine",
		postgres.WithDatabase("arena"),
		postgres.WithUsername("arena"),
		postgres.WithPassword("arena"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	defer func() {
		err = testcontainers.TerminateContainer(postgresContainer)
		assert.NoError(t, err, "failed to terminate container")
	}()
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get connection string to container")

	db, err := gorm.Open(gormpostgres.Open(dsn))
	require.NoError(t, err, "failed to connect to the database")

	err = migrations.Up(ctx, db)
	require.NoError(t, err, "failed to migrate db")

	gateway := NewGormGateway(db)

	owner := &models.User{Email: "mvp-owner@agentwars.local", PasswordHash: "MVP_NO_AUTH", Role: "admin"}
	require.NoError(t, db.Create(owner).Error, "failed to create owner")

	project := &models.Project{
		OwnerID:  owner.ID,
		Category: types.CategoryDevtoolsAgents,
		RepoURL:  "https://github.com/example/demo",
		DemoURL:  "https://demo.example.com",
		DemoType: types.DemoTypeLive,
		Status:   types.ProjectStatusActive,
	}
	require.NoError(t, db.Create(project).Error, "failed to create project")

	tickAt := types.FloorToTick(time.Now())

	t.Run("UpsertTickIsIdempotent", func(t *testing.T) {
		first, err := gateway.UpsertTick(ctx, tickAt, types.TickStatusRunning)
		require.NoError(t, err, "failed to upsert tick")

		second, err := gateway.UpsertTick(ctx, tickAt, types.TickStatusRunning)
		require.NoError(t, err, "failed to upsert tick twice")

		assert.Equal(t, first.ID, second.ID, "same tickAt must map to one row")

		var count int64
		require.NoError(t, db.Model(&models.Tick{}).Count(&count).Error)
		assert.EqualValues(t, 1, count, "duplicate tick row created")
	})

	tick, err := gateway.UpsertTick(ctx, tickAt, types.TickStatusRunning)
	require.NoError(t, err, "failed to upsert tick")

	t.Run("UpsertRepoSnapshotOverwrites", func(t *testing.T) {
		require.NoError(t, gateway.UpsertRepoSnapshot(ctx, project.ID, tick.ID, "aaaaaaa"))
		require.NoError(t, gateway.UpsertRepoSnapshot(ctx, project.ID, tick.ID, "bbbbbbb"))

		var snapshots []models.RepoSnapshot
		require.NoError(t, db.Find(&snapshots).Error)
		require.Len(t, snapshots, 1, "expected a single snapshot per (project, tick)")
		assert.Equal(t, "bbbbbbb", snapshots[0].CommitSHA, "second upsert must win")
	})

	t.Run("UpsertEvaluationOverwrites", func(t *testing.T) {
		evaluation := &models.Evaluation{
			ProjectID: project.ID,
			TickID:    tick.ID,
			CommitSHA: "aaaaaaa",
			ReadmeOk:  false,
			ArtifactJSON: types.EvaluationArtifact{
				TickAt:    tickAt,
				RepoURL:   project.RepoURL,
				CommitSHA: "aaaaaaa",
			},
		}
		require.NoError(t, gateway.UpsertEvaluation(ctx, evaluation))

		evaluation.ID = [16]byte{}
		evaluation.ReadmeOk = true
		require.NoError(t, gateway.UpsertEvaluation(ctx, evaluation))

		var rows []models.Evaluation
		require.NoError(t, db.Find(&rows).Error)
		require.Len(t, rows, 1, "expected a single evaluation per (project, tick)")
		assert.True(t, rows[0].ReadmeOk, "second upsert must win")
	})

	t.Run("FindLatestScoreEmpty", func(t *testing.T) {
		score, err := gateway.FindLatestScore(ctx, project.ID)
		require.NoError(t, err, "missing score must not be an error")
		assert.Nil(t, score, "expected no score for fresh project")
	})

	t.Run("UpsertScoreOverwrites", func(t *testing.T) {
		score := &models.Score{
			ProjectID:     project.ID,
			TickID:        tick.ID,
			CommitSHA:     "bbbbbbb",
			TotalScore:    0,
			DeltaVsPrev:   0,
			BreakdownJSON: types.ScoreBreakdown{Base: 0, Note: "MVP deterministic-only"},
			PenaltiesJSON: models.PenaltyList{Penalties: []types.Penalty{}},
		}
		require.NoError(t, gateway.UpsertScore(ctx, score))

		score.ID = [16]byte{}
		score.TotalScore = 10
		require.NoError(t, gateway.UpsertScore(ctx, score))

		var rows []models.Score
		require.NoError(t, db.Find(&rows).Error)
		require.Len(t, rows, 1, "expected a single score per (project, tick)")
		assert.Equal(t, 10, rows[0].TotalScore, "second upsert must win")

		latest, err := gateway.FindLatestScore(ctx, project.ID)
		require.NoError(t, err)
		require.NotNil(t, latest, "expected a latest score")
		assert.Equal(t, 10, latest.TotalScore)
	})

	t.Run("UpdateProjectMeta", func(t *testing.T) {
		require.NoError(t, gateway.UpdateProjectMeta(ctx, project.ID, "Demo", "Team Demo"))

		updated, err := models.ByID[models.Project](ctx, db, project.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.Name)
		require.NotNil(t, updated.Team)
		assert.Equal(t, "Demo", *updated.Name)
		assert.Equal(t, "Team Demo", *updated.Team)
	})

	t.Run("AppendArenaEventIsAppendOnly", func(t *testing.T) {
		payload := types.PipelineFailedPayload{Error: "could not resolve HEAD"}
		require.NoError(t, gateway.AppendArenaEvent(ctx, project.ID, tick.ID, payload))
		require.NoError(t, gateway.AppendArenaEvent(ctx, project.ID, tick.ID, payload))

		var count int64
		require.NoError(t, db.Model(&models.ArenaEvent{}).Count(&count).Error)
		assert.EqualValues(t, 2, count, "events must append, never upsert")
	})

	t.Run("SetTickStatus", func(t *testing.T) {
		require.NoError(t, gateway.SetTickStatus(ctx, tick.ID, types.TickStatusDone))

		updated, err := models.ByID[models.Tick](ctx, db, tick.ID)
		require.NoError(t, err)
		assert.Equal(t, types.TickStatusDone, updated.Status)
	})

	t.Run("ListActiveProjectsOrdersByCreation", func(t *testing.T) {
		second := &models.Project{
			OwnerID:  owner.ID,
			Category: types.CategorySupportOps,
			RepoURL:  "https://github.com/example/later",
			DemoURL:  "https://later.example.com",
			DemoType: types.DemoTypeVideo,
			Status:   types.ProjectStatusActive,
		}
		require.NoError(t, db.Create(second).Error)

		retired := &models.Project{
			OwnerID:  owner.ID,
			Category: types.CategorySupportOps,
			RepoURL:  "https://github.com/example/retired",
			DemoURL:  "https://retired.example.com",
			DemoType: types.DemoTypeVideo,
			Status:   types.ProjectStatusRetired,
		}
		require.NoError(t, db.Create(retired).Error)

		projects, err := gateway.ListActiveProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 2, "retired projects must be excluded")
		assert.Equal(t, project.ID, projects[0].ID, "oldest submission first")
		assert.Equal(t, second.ID, projects[1].ID)
	})
}
