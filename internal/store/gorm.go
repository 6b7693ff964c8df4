package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/types"
)

var tracer = otel.Tracer("github.com/agentwars/arena-api/internal/store")

// Ensure GormGateway implements Gateway interface.
var _ Gateway = (*GormGateway)(nil)

type GormGateway struct {
	db *gorm.DB
}

func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) UpsertTick(
	ctx context.Context,
	tickAt time.Time,
	status types.TickStatus,
) (*models.Tick, error) {
	ctx, span := tracer.Start(ctx, "GormGateway.UpsertTick", trace.WithAttributes(
		attribute.String("tickAt", tickAt.Format(time.RFC3339)),
		attribute.String("status", string(status)),
	))
	defer span.End()

	tick := models.Tick{TickAt: tickAt, Status: status}
	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tick_at"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(&tick)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to upsert tick")
		return nil, result.Error
	}

	// On conflict the create does not report the existing row's id back, so
	// fetch by the natural key.
	err := g.db.WithContext(ctx).Where("tick_at = ?", tickAt).First(&tick).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch upserted tick")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "upserted tick")
	return &tick, nil
}

func (g *GormGateway) ListActiveProjects(ctx context.Context) ([]models.Project, error) {
	ctx, span := tracer.Start(ctx, "GormGateway.ListActiveProjects")
	defer span.End()

	var projects []models.Project
	err := g.db.WithContext(ctx).
		Where("status = ?", types.ProjectStatusActive).
		Order("created_at ASC").
		Find(&projects).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list active projects")
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(projects)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed active projects")
	return projects, nil
}

func (g *GormGateway) UpsertRepoSnapshot(
	ctx context.Context,
	projectID, tickID uuid.UUID,
	commitSHA string,
) error {
	ctx, span := tracer.Start(ctx, "GormGateway.UpsertRepoSnapshot", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("tick.id", tickID.String()),
		attribute.String("commitSha", commitSHA),
	))
	defer span.End()

	snapshot := models.RepoSnapshot{
		ProjectID: projectID,
		TickID:    tickID,
		CommitSHA: commitSHA,
	}
	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "tick_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"commit_sha"}),
	}).Create(&snapshot)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to upsert repo snapshot")
		return result.Error
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "upserted repo snapshot")
	return nil
}

func (g *GormGateway) UpsertEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	ctx, span := tracer.Start(ctx, "GormGateway.UpsertEvaluation", trace.WithAttributes(
		attribute.String("project.id", evaluation.ProjectID.String()),
		attribute.String("tick.id", evaluation.TickID.String()),
	))
	defer span.End()

	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "tick_id"}},
		UpdateAll: true,
	}).Create(evaluation)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to upsert evaluation")
		return result.Error
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "upserted evaluation")
	return nil
}

func (g *GormGateway) UpsertScore(ctx context.Context, score *models.Score) error {
	ctx, span := tracer.Start(ctx, "GormGateway.UpsertScore", trace.WithAttributes(
		attribute.String("project.id", score.ProjectID.String()),
		attribute.String("tick.id", score.TickID.String()),
		attribute.Int("totalScore", score.TotalScore),
	))
	defer span.End()

	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "tick_id"}},
		UpdateAll: true,
	}).Create(score)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to upsert score")
		return result.Error
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "upserted score")
	return nil
}

func (g *GormGateway) FindLatestScore(
	ctx context.Context,
	projectID uuid.UUID,
) (*models.Score, error) {
	ctx, span := tracer.Start(ctx, "GormGateway.FindLatestScore", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
	))
	defer span.End()

	var score models.Score
	err := g.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		First(&score).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "no previous score")
			return nil, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find latest score")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found latest score")
	return &score, nil
}

func (g *GormGateway) UpdateProjectMeta(
	ctx context.Context,
	projectID uuid.UUID,
	name, team string,
) error {
	ctx, span := tracer.Start(ctx, "GormGateway.UpdateProjectMeta", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("name", name),
		attribute.String("team", team),
	))
	defer span.End()

	result := g.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{"name": name, "team": team})
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to update project meta")
		return result.Error
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "updated project meta")
	return nil
}

func (g *GormGateway) AppendArenaEvent(
	ctx context.Context,
	projectID, tickID uuid.UUID,
	payload types.ArenaEventPayload,
) error {
	ctx, span := tracer.Start(ctx, "GormGateway.AppendArenaEvent", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("tick.id", tickID.String()),
		attribute.String("type", string(payload.EventType())),
	))
	defer span.End()

	raw, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize event payload")
		return err
	}

	event := models.ArenaEvent{
		ProjectID:   projectID,
		TickID:      tickID,
		Type:        payload.EventType(),
		PayloadJSON: datatypes.JSON(raw),
	}
	result := g.db.WithContext(ctx).Create(&event)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to append arena event")
		return result.Error
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "appended arena event")
	return nil
}

func (g *GormGateway) SetTickStatus(
	ctx context.Context,
	tickID uuid.UUID,
	status types.TickStatus,
) error {
	ctx, span := tracer.Start(ctx, "GormGateway.SetTickStatus", trace.WithAttributes(
		attribute.String("tick.id", tickID.String()),
		attribute.String("status", string(status)),
	))
	defer span.End()

	result := g.db.WithContext(ctx).
		Model(&models.Tick{}).
		Where("id = ?", tickID).
		Update("status", status)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to set tick status")
		return result.Error
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "set tick status")
	return nil
}
