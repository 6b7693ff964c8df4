package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentwars/arena-api/internal/types"
)

type (
	// One evaluation round. TickAt is floored to the 15-minute boundary and
	// unique, so re-running inside the same window upserts the same row.
	Tick struct {
		Model
		TickAt time.Time `gorm:"column:tick_at;uniqueIndex"`
		Status types.TickStatus
	}

	// The commit resolved for a (project, tick) pair.
	RepoSnapshot struct {
		Model
		ProjectID uuid.UUID `gorm:"uniqueIndex:idx_repo_snapshots_project_tick"`
		TickID    uuid.UUID `gorm:"uniqueIndex:idx_repo_snapshots_project_tick"`
		CommitSHA string    `gorm:"column:commit_sha"`
	}
)

func (Tick) TableName() string {
	return "ticks"
}

func (t Tick) GetID() uuid.UUID {
	return t.ID
}

func (RepoSnapshot) TableName() string {
	return "repo_snapshots"
}

func (r RepoSnapshot) GetID() uuid.UUID {
	return r.ID
}
