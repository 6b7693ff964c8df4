package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0005, Down0005)
}

func Up0005(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE scores (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    project_id UUID NOT NULL REFERENCES projects (id),
    tick_id UUID NOT NULL REFERENCES ticks (id),
    commit_sha TEXT NOT NULL,
    total_score INTEGER NOT NULL DEFAULT 0,
    delta_vs_prev INTEGER NOT NULL DEFAULT 0,
    breakdown_json JSONB NOT NULL,
    penalties_json JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT idx_scores_project_tick UNIQUE (project_id, tick_id)
);
`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX scores_project_id_created_at_index ON scores (project_id, created_at DESC);`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
CREATE TABLE arena_events (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    project_id UUID NOT NULL REFERENCES projects (id),
    tick_id UUID NOT NULL REFERENCES ticks (id),
    type TEXT NOT NULL,
    payload_json JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX arena_events_created_at_index ON arena_events (created_at DESC);`)
	if err != nil {
		return err
	}

	return nil
}

func Down0005(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP INDEX arena_events_created_at_index;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE arena_events;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP INDEX scores_project_id_created_at_index;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE scores;`)
	if err != nil {
		return err
	}

	return nil
}
