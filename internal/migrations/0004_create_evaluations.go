package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0004, Down0004)
}

func Up0004(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE evaluations (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    project_id UUID NOT NULL REFERENCES projects (id),
    tick_id UUID NOT NULL REFERENCES ticks (id),
    commit_sha TEXT NOT NULL,
    required_files_ok BOOLEAN NOT NULL DEFAULT FALSE,
    hackathon_json_ok BOOLEAN NOT NULL DEFAULT FALSE,
    hackathon_json_errors TEXT,
    readme_ok BOOLEAN NOT NULL DEFAULT FALSE,
    readme_findings JSONB,
    demo_reachable BOOLEAN NOT NULL DEFAULT FALSE,
    demo_error TEXT,
    setup_attempted BOOLEAN NOT NULL DEFAULT FALSE,
    setup_ok BOOLEAN NOT NULL DEFAULT FALSE,
    setup_log_truncated TEXT,
    file_tree_summary JSONB,
    artifact_json JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT idx_evaluations_project_tick UNIQUE (project_id, tick_id)
);
`)

	return err
}

func Down0004(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE evaluations;`)
	return err
}
