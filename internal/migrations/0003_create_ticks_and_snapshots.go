package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0003, Down0003)
}

func Up0003(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE ticks (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    tick_at TIMESTAMP WITH TIME ZONE NOT NULL UNIQUE,
    status TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
CREATE TABLE repo_snapshots (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    project_id UUID NOT NULL REFERENCES projects (id),
    tick_id UUID NOT NULL REFERENCES ticks (id),
    commit_sha TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT idx_repo_snapshots_project_tick UNIQUE (project_id, tick_id)
);
`)
	if err != nil {
		return err
	}

	return nil
}

func Down0003(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE repo_snapshots;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE ticks;`)
	if err != nil {
		return err
	}

	return nil
}
