package history

import (
	"context"

	"github.com/jackc/pgx/v4"
)

func scanAttempt(rows pgx.Rows) (*Attempt, error) {
	attempt := &Attempt{}

	err := rows.Scan(
		&attempt.ID,
		&attempt.Workflow,
		&attempt.Host,
		&attempt.Ref,
		&attempt.Database,
		&attempt.Backup,
		&attempt.State,
		&attempt.Created,
	)

	return attempt, err
}

func (db *Database) WriteAttempt(ctx context.Context, attempt Attempt) error {
	query := `
INSERT INTO deployment_attempt (id, workflow, host, ref, database_name, backup, state, created)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET backup = EXCLUDED.backup, state = EXCLUDED.state;
`
	_, err := db.conn.Exec(ctx, query,
		attempt.ID,
		attempt.Workflow,
		attempt.Host,
		attempt.Ref,
		attempt.Database,
		attempt.Backup,
		attempt.State,
		attempt.Created,
	)

	return err
}

func (db *Database) SetState(ctx context.Context, id, state string) error {
	query := `UPDATE deployment_attempt SET state = $2 WHERE id = $1;`
	_, err := db.conn.Exec(ctx, query, id, state)
	return err
}

func (db *Database) SetBackup(ctx context.Context, id, backup string) error {
	query := `UPDATE deployment_attempt SET backup = $2 WHERE id = $1;`
	_, err := db.conn.Exec(ctx, query, id, backup)
	return err
}

func (db *Database) Attempts(ctx context.Context, host string, limit int) ([]*Attempt, error) {
	query := `
SELECT id, workflow, host, ref, database_name, backup, state, created
FROM deployment_attempt
WHERE ($1 = '' OR host = $1)
ORDER BY created DESC
LIMIT $2;
`
	rows, err := db.conn.Query(ctx, query, host, limit)
	if err != nil {
		return nil, err
	}

	attempts := make([]*Attempt, 0)
	defer rows.Close()
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}

		attempts = append(attempts, attempt)
	}

	return attempts, nil
}
