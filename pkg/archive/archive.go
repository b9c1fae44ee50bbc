// Package archive packs, transfers and unpacks release artifacts, and
// manages the per-attempt savepoint of the sources directory.
package archive

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
)

// Timestamps embedded in filenames. Kept bit-for-bit compatible with
// existing artifacts, including the legacy `.tag.gz` suffix.
const (
	timestampFormat = "20060102_150405"
	archiveFormat   = "odoo-%s.tag.gz"
	savepointFormat = "savepoint_%s.tag.gz"
)

type Manager struct {
	BackupDir  string // on the remote host
	SourcesDir string // on the remote host
	TagDir     string // local staging directory
	Privileged bool

	Remote      executor.Executor
	Local       executor.Executor
	Transferrer executor.FileTransferrer

	// Clean wipes the sources directory before an unpack. Injected by the
	// caller so this package stays independent of the SCM layer.
	Clean func(ctx context.Context) error

	// Now is overridable in tests.
	Now func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Compress packs a local tag export into its release archive. Packing is
// skipped when the artifact already exists; force rebuilds it.
func (m *Manager) Compress(ctx context.Context, tag string, force bool) (string, error) {
	name := fmt.Sprintf(archiveFormat, tag)

	if force {
		if _, err := m.Local.Run(ctx, executor.Command{
			Line: "rm -f " + executor.Quote(name),
			Dir:  m.TagDir,
		}); err != nil {
			return "", err
		}
	}

	exists, err := executor.Exists(ctx, m.Local, filepath.Join(m.TagDir, name))
	if err != nil {
		return "", err
	}
	if exists {
		log.Infof("Archive %s already built; skipping", name)
		return name, nil
	}

	log.Infof("Building archive %s from tag export '%s'", name, tag)
	_, err = m.Local.Run(ctx, executor.Command{
		Line: fmt.Sprintf("tar -zcf %s -C %s . --exclude-vcs", executor.Quote(name), executor.Quote(tag)),
		Dir:  m.TagDir,
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Transfer copies a local archive into the remote backup directory. When
// running privileged, the file is staged through /tmp since the SFTP
// session runs as the unprivileged SSH user.
func (m *Manager) Transfer(ctx context.Context, name string) error {
	local := filepath.Join(m.TagDir, name)
	log.Infof("Transferring %s to %s", local, m.BackupDir)

	if !m.Privileged {
		return m.Transferrer.Put(ctx, local, m.BackupDir)
	}

	if err := m.Transferrer.Put(ctx, local, "/tmp"); err != nil {
		return err
	}
	_, err := m.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("mv %s %s", executor.Quote(path.Join("/tmp", name)), executor.Quote(m.BackupDir)),
		Privileged: true,
	})
	return err
}

// Uncompress wipes the sources directory and unpacks the named archive from
// the backup directory into it.
func (m *Manager) Uncompress(ctx context.Context, name string) error {
	if m.Clean != nil {
		if err := m.Clean(ctx); err != nil {
			return err
		}
	}

	log.Infof("Unpacking %s into %s", name, m.SourcesDir)
	_, err := m.Remote.Run(ctx, executor.Command{
		Line:       "tar -zxf " + executor.Quote(path.Join(m.BackupDir, name)),
		Dir:        m.SourcesDir,
		Privileged: m.Privileged,
	})
	return err
}

// CreateSavepoint archives the current sources directory, in place, into
// the backup directory. The tree is packed relative to its root so that a
// later Uncompress restores it exactly where it was.
func (m *Manager) CreateSavepoint(ctx context.Context) (string, error) {
	name := fmt.Sprintf(savepointFormat, m.now().Format(timestampFormat))
	log.Infof("Creating savepoint %s", name)

	_, err := m.Remote.Run(ctx, executor.Command{
		Line: fmt.Sprintf("tar -zcf %s -C %s . --exclude-vcs",
			executor.Quote(name), executor.Quote(m.SourcesDir)),
		Dir:        m.BackupDir,
		Privileged: m.Privileged,
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// DropSavepoint deletes a savepoint archive. Deleting an absent savepoint
// is not an error.
func (m *Manager) DropSavepoint(ctx context.Context, name string) error {
	log.Infof("Dropping savepoint %s", name)
	_, err := m.Remote.Run(ctx, executor.Command{
		Line:       "rm -f " + executor.Quote(name),
		Dir:        m.BackupDir,
		Privileged: m.Privileged,
	})
	return err
}
