// Package history persists deployment attempts and their outcomes to
// PostgreSQL. The store is optional; deployments run fine without it, and
// write failures never abort a deployment.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
)

const (
	StateInProgress = "in_progress"
	StateSuccess    = "success"
	StateRolledBack = "rolled_back"
	StateError      = "error"
)

// Attempt is one deployment run against a host/database pair.
type Attempt struct {
	ID       string    `json:"id"`
	Workflow string    `json:"workflow"`
	Host     string    `json:"host"`
	Ref      string    `json:"ref"`
	Database string    `json:"database"`
	Backup   string    `json:"backup"`
	State    string    `json:"state"`
	Created  time.Time `json:"created"`
}

type Store interface {
	WriteAttempt(ctx context.Context, attempt Attempt) error
	SetState(ctx context.Context, id, state string) error
	SetBackup(ctx context.Context, id, backup string) error
	Attempts(ctx context.Context, host string, limit int) ([]*Attempt, error)
}

type Database struct {
	conn *pgxpool.Pool
}

var _ Store = &Database{}

func New(ctx context.Context, dsn string) (*Database, error) {
	conn, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &Database{
		conn: conn,
	}, nil
}

func (db *Database) Migrate(ctx context.Context) error {
	var version int

	query := `SELECT MAX(version) FROM migrations`
	row := db.conn.QueryRow(ctx, query)
	err := row.Scan(&version)

	if err != nil {
		// error might be due to no schema.
		// no way to detect this, so log error and continue with migrations.
		log.Warnf("unable to get current migration version: %s", err)
	}

	for version < len(migrations) {
		log.Infof("migrating history schema to version %d", version+1)

		_, err = db.conn.Exec(ctx, migrations[version])
		if err != nil {
			return fmt.Errorf("migrating to version %d: %s", version+1, err)
		}

		version++
	}

	return nil
}

func (db *Database) Close() {
	db.conn.Close()
}
