package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0006, Down0006)
}

var tables = []string{
	"users",
	"projects",
	"ticks",
	"repo_snapshots",
	"evaluations",
	"scores",
	"arena_events",
}

func Up0006(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE FUNCTION touch_updated_at()
RETURNS TRIGGER AS $$
BEGIN
NEW.updated_at = current_timestamp;
RETURN NEW;
END;
$$ language 'plpgsql';
`)
	if err != nil {
		return err
	}

	for _, table := range tables {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
CREATE TRIGGER touch_updated_at_trigger
BEFORE UPDATE ON %s
FOR EACH ROW EXECUTE PROCEDURE touch_updated_at();`,
			table))
		if err != nil {
			return err
		}
	}

	return nil
}

func Down0006(ctx context.Context, tx *sql.Tx) error {
	for _, table := range reverse(tables) {
		_, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(`DROP TRIGGER touch_updated_at_trigger ON %s;`, table),
		)
		if err != nil {
			return err
		}
	}

	_, err := tx.ExecContext(ctx, `DROP FUNCTION touch_updated_at();`)
	if err != nil {
		return err
	}

	return nil
}

func reverse[T any](list []T) []T {
	for i, j := 0, len(list)-1; i < j; {
		list[i], list[j] = list[j], list[i]
		i++
		j--
	}
	return list
}
