// Package scm retrieves source revisions from the Subversion repository,
// either as a live checkout on the target host or as a local tag export.
package scm

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
)

// archivePattern matches completed release artifacts, the only files
// CleanSourcesDir leaves behind. A freshly transferred archive must survive
// the wipe that precedes its own unpacking.
const archivePattern = "*.tag.gz"

type Provider struct {
	Repository string // SVN repository root URL
	SourcesDir string // checkout target on the remote host
	TagDir     string // local export staging directory
	Privileged bool

	Remote executor.Executor
	Local  executor.Executor
}

// CreateBranch copies trunk into a new branch.
func (p *Provider) CreateBranch(ctx context.Context, name string) error {
	log.Infof("Creating branch '%s' from trunk", name)
	_, err := p.Remote.Run(ctx, executor.Command{
		Line: fmt.Sprintf("svn cp %s/trunk %s/branches/%s -m %s",
			p.Repository, p.Repository, name,
			executor.Quote(fmt.Sprintf("[ADD] Create new branch %s", name))),
		Privileged: p.Privileged,
	})
	return err
}

// CheckoutBranch wipes the sources directory and replaces it with a fresh
// checkout of the named branch.
func (p *Provider) CheckoutBranch(ctx context.Context, name string) error {
	if err := p.CleanSourcesDir(ctx); err != nil {
		return err
	}
	log.Infof("Checking out branch '%s' into %s", name, p.SourcesDir)
	_, err := p.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("svn co %s/branches/%s .", p.Repository, name),
		Dir:        p.SourcesDir,
		Privileged: p.Privileged,
	})
	return err
}

// UpdateBranch updates the already-checked-out sources directory in place.
func (p *Provider) UpdateBranch(ctx context.Context) error {
	_, err := p.Remote.Run(ctx, executor.Command{
		Line:       "svn up",
		Dir:        p.SourcesDir,
		Privileged: p.Privileged,
	})
	return err
}

// ExportTag exports the named tag into the local tag directory. The export
// is skipped when the target path already exists; passing force deletes any
// previous export first. Idempotence is by path existence only, not by
// content.
func (p *Provider) ExportTag(ctx context.Context, name string, force bool) error {
	target := filepath.Join(p.TagDir, name)

	if force {
		if _, err := p.Local.Run(ctx, executor.Command{
			Line: "rm -Rf " + executor.Quote(name),
			Dir:  p.TagDir,
		}); err != nil {
			return err
		}
	}

	exists, err := executor.Exists(ctx, p.Local, target)
	if err != nil {
		return err
	}
	if exists {
		log.Infof("Tag export %s already present; skipping", target)
		return nil
	}

	log.Infof("Exporting tag '%s' into %s", name, target)
	_, err = p.Local.Run(ctx, executor.Command{
		Line: fmt.Sprintf("svn export %s/tags/%s %s", p.Repository, name, name),
		Dir:  p.TagDir,
	})
	return err
}

// CleanSourcesDir removes everything in the sources directory, version
// control metadata included, keeping only completed archives.
func (p *Provider) CleanSourcesDir(ctx context.Context) error {
	log.Infof("Cleaning sources directory %s", p.SourcesDir)
	lines := []string{
		"rm -Rf */",
		"rm -Rf .svn",
		fmt.Sprintf("find . -maxdepth 1 -type f ! -name '%s' -exec rm -f {} +", archivePattern),
	}
	for _, line := range lines {
		if _, err := p.Remote.Run(ctx, executor.Command{
			Line:       line,
			Dir:        p.SourcesDir,
			Privileged: p.Privileged,
		}); err != nil {
			return err
		}
	}
	return nil
}
