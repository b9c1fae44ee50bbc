package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smile-sa/odoo-deploy/pkg/database"
	"github.com/smile-sa/odoo-deploy/pkg/executor"
	"github.com/smile-sa/odoo-deploy/pkg/executor/executortest"
)

var frozen = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func testManager(fake *executortest.Fake) *database.Manager {
	return &database.Manager{
		BackupDir:      "/home/postgres",
		SourcesDir:     "/opt/openerp",
		Host:           "localhost",
		Port:           5432,
		User:           "openerp",
		Password:       "s3cret",
		ServiceAccount: "openerp",
		Launcher:       "openerp-server",
		ConfigFile:     "/etc/openerp-server.conf",
		Remote:         fake,
		Now:            func() time.Time { return frozen },
	}
}

func TestDumpFilenameAndCredentials(t *testing.T) {
	fake := &executortest.Fake{}
	m := testManager(fake)

	backup, err := m.Dump(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo_20230101_000000.dump", backup)

	require.Len(t, fake.Calls, 1)
	cmd := fake.Calls[0]
	assert.Equal(t, "pg_dump -f demo_20230101_000000.dump -F c -O demo --host=localhost --port=5432 --username=openerp -w", cmd.Line)
	assert.Equal(t, "/home/postgres", cmd.Dir)
	assert.Equal(t, map[string]string{"PGPASSWORD": "s3cret"}, cmd.Env)
}

// Without a configured password the -w flag makes no sense and nothing is
// exported into the command environment.
func TestDumpWithoutPassword(t *testing.T) {
	fake := &executortest.Fake{}
	m := testManager(fake)
	m.Password = ""

	_, err := m.Dump(context.Background(), "demo")
	require.NoError(t, err)

	cmd := fake.Calls[0]
	assert.NotContains(t, cmd.Line, "-w")
	assert.Empty(t, cmd.Env)
}

func TestRestoreToleratesAnyExitCode(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Hook = func(cmd executor.Command) *executor.Result {
		return &executor.Result{ExitCode: 2, Stderr: "pg_restore: warning: errors ignored on restore: 3\n"}
	}
	m := testManager(fake)

	err := m.Restore(context.Background(), "demo", "demo_20230101_000000.dump")
	require.NoError(t, err)

	cmd := fake.Calls[0]
	assert.Equal(t, "pg_restore -v -c -d demo demo_20230101_000000.dump --host=localhost --port=5432 --username=openerp -w", cmd.Line)
	assert.True(t, cmd.Policy.WarnOnly)
}

func TestDumpOrRestoreWithoutBackupDumps(t *testing.T) {
	fake := &executortest.Fake{}
	m := testManager(fake)

	backup, err := m.DumpOrRestore(context.Background(), "demo", "")
	require.NoError(t, err)

	assert.Equal(t, "demo_20230101_000000.dump", backup)
	assert.Equal(t, -1, fake.Find("pg_restore"))
}

func TestDumpOrRestoreWithBackupRestores(t *testing.T) {
	fake := &executortest.Fake{}
	m := testManager(fake)

	backup, err := m.DumpOrRestore(context.Background(), "demo", "demo_20230101_000000.dump")
	require.NoError(t, err)

	assert.Equal(t, "demo_20230101_000000.dump", backup)
	assert.Equal(t, -1, fake.Find("pg_dump"))
	assert.NotEqual(t, -1, fake.Find("pg_restore"))
}

func TestUpgradeCapturesFailureAsData(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Hook = func(cmd executor.Command) *executor.Result {
		return &executor.Result{ExitCode: 1}
	}
	m := testManager(fake)

	res, err := m.Upgrade(context.Background(), "demo")
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 1, res.ExitCode)

	cmd := fake.Calls[0]
	assert.Equal(t, "su openerp -c 'openerp-server -c /etc/openerp-server.conf -d demo --load=web,smile_upgrade'", cmd.Line)
	assert.Equal(t, "/opt/openerp", cmd.Dir)
}

func TestBackupPath(t *testing.T) {
	m := testManager(&executortest.Fake{})
	assert.Equal(t, "/home/postgres/demo_20230101_000000.dump", m.BackupPath("demo_20230101_000000.dump"))
}
