package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/agentwars/arena-api/internal/types"
)

type (
	// The artifact of one tick's checks for one project. Exactly one row per
	// (project, tick); later runs in the same window overwrite it.
	Evaluation struct {
		ReadmeFindings *types.ReadmeFindings    `gorm:"type:jsonb;serializer:json"`
		ArtifactJSON   types.EvaluationArtifact `gorm:"type:jsonb;serializer:json;column:artifact_json"`
		Model
		ProjectID           uuid.UUID `gorm:"uniqueIndex:idx_evaluations_project_tick"`
		TickID              uuid.UUID `gorm:"uniqueIndex:idx_evaluations_project_tick"`
		CommitSHA           string    `gorm:"column:commit_sha"`
		HackathonJSONErrors *string   `gorm:"column:hackathon_json_errors"`
		DemoError           *string
		SetupLogTruncated   *string
		FileTreeSummary     datatypes.JSONSlice[string]
		RequiredFilesOk     bool `gorm:"column:required_files_ok"`
		HackathonJSONOk     bool `gorm:"column:hackathon_json_ok"`
		ReadmeOk            bool `gorm:"column:readme_ok"`
		DemoReachable       bool
		SetupAttempted      bool
		SetupOk             bool `gorm:"column:setup_ok"`
	}

	PenaltyList struct {
		Penalties []types.Penalty `json:"penalties"`
	}

	// The numeric outcome for one (project, tick). TotalScore is clamped at
	// zero; DeltaVsPrev is relative to this project's own score history.
	Score struct {
		BreakdownJSON types.ScoreBreakdown `gorm:"type:jsonb;serializer:json;column:breakdown_json"`
		PenaltiesJSON PenaltyList          `gorm:"type:jsonb;serializer:json;column:penalties_json"`
		Model
		ProjectID   uuid.UUID `gorm:"uniqueIndex:idx_scores_project_tick"`
		TickID      uuid.UUID `gorm:"uniqueIndex:idx_scores_project_tick"`
		CommitSHA   string    `gorm:"column:commit_sha"`
		TotalScore  int
		DeltaVsPrev int `gorm:"column:delta_vs_prev"`
	}

	// Append-only narrative feed entry. Never updated.
	ArenaEvent struct {
		Model
		ProjectID   uuid.UUID
		TickID      uuid.UUID
		Type        types.ArenaEventType
		PayloadJSON datatypes.JSON `gorm:"column:payload_json"`
	}
)

func (Evaluation) TableName() string {
	return "evaluations"
}

func (e Evaluation) GetID() uuid.UUID {
	return e.ID
}

func (Score) TableName() string {
	return "scores"
}

func (s Score) GetID() uuid.UUID {
	return s.ID
}

func (ArenaEvent) TableName() string {
	return "arena_events"
}

func (a ArenaEvent) GetID() uuid.UUID {
	return a.ID
}
