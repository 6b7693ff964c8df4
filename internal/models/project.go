package models

import (
	"github.com/google/uuid"

	"github.com/agentwars/arena-api/internal/types"
)

type (
	// Placeholder account that owns submissions until real auth exists.
	User struct {
		Model
		Email        string `gorm:"uniqueIndex"`
		PasswordHash string
		Role         string
	}

	// A hackathon submission. Name and team stay nil until a tick extracts
	// them from the project's manifest.
	Project struct {
		Model
		OwnerID  uuid.UUID
		Name     *string
		Team     *string
		Category types.Category
		RepoURL  string `gorm:"column:repo_url"`
		DemoURL  string `gorm:"column:demo_url"`
		DemoType types.DemoType
		Status   types.ProjectStatus
	}
)

func (User) TableName() string {
	return "users"
}

func (u User) GetID() uuid.UUID {
	return u.ID
}

func (Project) TableName() string {
	return "projects"
}

func (p Project) GetID() uuid.UUID {
	return p.ID
}
