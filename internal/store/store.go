package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/types"
)

// Gateway is the persistence contract consumed by the tick worker. The tick
// tables are keyed so that every write is idempotent per (project, tick)
// except AppendArenaEvent, which is append-only.
type Gateway interface {
	// UpsertTick creates or revives the tick row for a 15-minute boundary.
	UpsertTick(ctx context.Context, tickAt time.Time, status types.TickStatus) (*models.Tick, error)
	// ListActiveProjects returns active projects in creation order, oldest
	// submission first.
	ListActiveProjects(ctx context.Context) ([]models.Project, error)
	UpsertRepoSnapshot(ctx context.Context, projectID, tickID uuid.UUID, commitSHA string) error
	UpsertEvaluation(ctx context.Context, evaluation *models.Evaluation) error
	UpsertScore(ctx context.Context, score *models.Score) error
	// FindLatestScore returns the project's most recent score by creation
	// time, or nil if the project has never been scored.
	FindLatestScore(ctx context.Context, projectID uuid.UUID) (*models.Score, error)
	UpdateProjectMeta(ctx context.Context, projectID uuid.UUID, name, team string) error
	AppendArenaEvent(ctx context.Context, projectID, tickID uuid.UUID, payload types.ArenaEventPayload) error
	SetTickStatus(ctx context.Context, tickID uuid.UUID, status types.TickStatus) error
}
