// Package database dumps, restores and upgrades the application database
// through the command executor. All PostgreSQL access goes through the
// client tools installed on the target host; the password travels as an
// environment value scoped to the one command that needs it.
package database

import (
	"context"
	"fmt"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
)

const (
	timestampFormat = "20060102_150405"
	backupFormat    = "%s_%s.dump"

	// Modules loaded for the in-place upgrade run; web is required for the
	// upgrade entry point to boot.
	upgradeModules = "web,smile_upgrade"
)

type Manager struct {
	BackupDir  string
	SourcesDir string
	Privileged bool

	Host     string
	Port     int
	User     string
	Password string

	// The application's own service account and launcher; the upgrade runs
	// as this account against the new sources.
	ServiceAccount string
	Launcher       string
	ConfigFile     string

	Remote executor.Executor

	// Now is overridable in tests.
	Now func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// connFlags are appended to every pg_dump/pg_restore invocation. The -w
// (never prompt) flag is only meaningful when a password is configured, and
// is omitted otherwise.
func (m *Manager) connFlags() string {
	flags := fmt.Sprintf("--host=%s --port=%d --username=%s", m.Host, m.Port, m.User)
	if len(m.Password) > 0 {
		flags += " -w"
	}
	return flags
}

func (m *Manager) env() map[string]string {
	if len(m.Password) == 0 {
		return nil
	}
	return map[string]string{"PGPASSWORD": m.Password}
}

// Dump writes a timestamped logical dump of the database into the backup
// directory and returns the backup filename.
func (m *Manager) Dump(ctx context.Context, db string) (string, error) {
	filename := fmt.Sprintf(backupFormat, db, m.now().Format(timestampFormat))
	log.Infof("Dumping database '%s' to %s", db, filename)

	_, err := m.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("pg_dump -f %s -F c -O %s %s", filename, db, m.connFlags()),
		Dir:        m.BackupDir,
		Env:        m.env(),
		Privileged: m.Privileged,
	})
	if err != nil {
		return "", err
	}
	return filename, nil
}

// Restore loads a backup into the database, dropping conflicting objects
// first. Restores run warn-only: pg_restore reports routine noise through
// its exit code ("object does not exist" on the implied drops), so every
// code is tolerated and surfaced in the logs instead.
func (m *Manager) Restore(ctx context.Context, db, backup string) error {
	log.Infof("Restoring database '%s' from %s", db, backup)

	res, err := m.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("pg_restore -v -c -d %s %s %s", db, backup, m.connFlags()),
		Dir:        m.BackupDir,
		Env:        m.env(),
		Privileged: m.Privileged,
		Policy:     executor.Policy{WarnOnly: true},
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		log.Warnf("pg_restore exited with code %d; continuing", res.ExitCode)
	}
	return nil
}

// DumpOrRestore is the single staging entry point for a deployment attempt:
// with a known backup it restores and returns it unchanged, otherwise it
// dumps fresh. A retried deployment that already holds a backup therefore
// never dumps again.
func (m *Manager) DumpOrRestore(ctx context.Context, db, backup string) (string, error) {
	if len(backup) > 0 {
		return backup, m.Restore(ctx, db, backup)
	}
	return m.Dump(ctx, db)
}

// Upgrade runs the application's own migration entry point against the
// database, as the application service account, from the freshly deployed
// sources. The exit code is the success signal for the whole deployment
// attempt and is captured, never raised.
func (m *Manager) Upgrade(ctx context.Context, db string) (executor.Result, error) {
	log.Infof("Upgrading database '%s'", db)

	inner := fmt.Sprintf("%s -c %s -d %s --load=%s", m.Launcher, m.ConfigFile, db, upgradeModules)
	return m.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("su %s -c %s", m.ServiceAccount, executor.Quote(inner)),
		Dir:        m.SourcesDir,
		Privileged: m.Privileged,
		Policy:     executor.Policy{WarnOnly: true},
	})
}

// BackupPath returns the absolute location of a backup on the target host.
func (m *Manager) BackupPath(backup string) string {
	return path.Join(m.BackupDir, backup)
}
