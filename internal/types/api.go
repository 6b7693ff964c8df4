package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	// Request body for submitting a project to the arena.
	ProjectSubmission struct {
		RepoURL  string   `json:"repo_url"  validate:"required,url"`
		DemoURL  string   `json:"demo_url"  validate:"required,url"`
		DemoType DemoType `json:"demo_type" validate:"required,oneof=video live"`
		Category Category `json:"category"  validate:"required,oneof=ai-sales-automation ai-support-ops ai-marketing-systems devtools-agents"`
	}

	ProjectResponse struct {
		ID        uuid.UUID     `json:"id"`
		Name      *string       `json:"name"`
		Team      *string       `json:"team"`
		Category  Category      `json:"category"`
		RepoURL   string        `json:"repo_url"`
		DemoURL   string        `json:"demo_url"`
		DemoType  DemoType      `json:"demo_type"`
		Status    ProjectStatus `json:"status"`
		CreatedAt time.Time     `json:"created_at"`
	}

	// One row of the leaderboard. Name and team are nil until the project's
	// manifest has been read by a tick.
	LeaderboardEntry struct {
		ProjectID   uuid.UUID `json:"project_id"`
		Name        *string   `json:"name"`
		Team        *string   `json:"team"`
		Category    Category  `json:"category"`
		RepoURL     string    `json:"repo_url"`
		DemoURL     string    `json:"demo_url"`
		TotalScore  int       `json:"total_score"`
		DeltaVsPrev int       `json:"delta_vs_prev"`
		CommitSHA   string    `json:"commit_sha"`
		ScoredAt    time.Time `json:"scored_at"`
	}

	ArenaEventResponse struct {
		ID        uuid.UUID       `json:"id"`
		ProjectID uuid.UUID       `json:"project_id"`
		TickID    uuid.UUID       `json:"tick_id"`
		Type      ArenaEventType  `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		CreatedAt time.Time       `json:"created_at"`
	}
)
