// Package orchestrator sequences the deployment workflows: stop the
// service, snapshot the current state, replace the sources, upgrade the
// database, and roll back to the snapshot when the upgrade fails.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
	"github.com/smile-sa/odoo-deploy/pkg/history"
	"github.com/smile-sa/odoo-deploy/pkg/metrics"
)

const (
	WorkflowInternalTesting = "internal_testing"
	WorkflowCustomerTesting = "customer_testing"
)

type SourceProvider interface {
	CreateBranch(ctx context.Context, name string) error
	CheckoutBranch(ctx context.Context, name string) error
	ExportTag(ctx context.Context, name string, force bool) error
	CleanSourcesDir(ctx context.Context) error
}

type ArchiveManager interface {
	Compress(ctx context.Context, tag string, force bool) (string, error)
	Transfer(ctx context.Context, name string) error
	Uncompress(ctx context.Context, name string) error
	CreateSavepoint(ctx context.Context) (string, error)
	DropSavepoint(ctx context.Context, name string) error
}

type DatabaseManager interface {
	DumpOrRestore(ctx context.Context, db, backup string) (string, error)
	Upgrade(ctx context.Context, db string) (executor.Result, error)
}

type ServiceController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Orchestrator composes the component managers into the two end-to-end
// workflows. Execution is strictly sequential; the caller must ensure at
// most one orchestration runs against a given host and database at a time.
type Orchestrator struct {
	Sources  SourceProvider
	Archives ArchiveManager
	Database DatabaseManager
	Service  ServiceController

	// History is optional; nil disables persistence.
	History history.Store

	// Host is only used for log and history annotation.
	Host string
}

// InternalRequest deploys a development branch on the internal testing host.
type InternalRequest struct {
	Branch             string
	Database           string
	Backup             string
	SkipBranchCreation bool
}

// CustomerRequest deploys a released tag on the customer testing host.
type CustomerRequest struct {
	Tag         string
	Database    string
	Backup      string
	ForceExport bool
}

func (o *Orchestrator) DeployForInternalTesting(ctx context.Context, req InternalRequest) error {
	run := o.begin(WorkflowInternalTesting, req.Branch, req.Database, req.Backup)
	defer run.finish()

	if !req.SkipBranchCreation {
		if err := o.Sources.CreateBranch(ctx, req.Branch); err != nil {
			return run.fatal(err)
		}
	}

	return run.result(o.deploy(ctx, run, req.Database, req.Backup, func(ctx context.Context) error {
		return o.Sources.CheckoutBranch(ctx, req.Branch)
	}))
}

func (o *Orchestrator) DeployForCustomerTesting(ctx context.Context, req CustomerRequest) error {
	run := o.begin(WorkflowCustomerTesting, req.Tag, req.Database, req.Backup)
	defer run.finish()

	if err := o.Sources.ExportTag(ctx, req.Tag, req.ForceExport); err != nil {
		return run.fatal(err)
	}
	name, err := o.Archives.Compress(ctx, req.Tag, req.ForceExport)
	if err != nil {
		return run.fatal(err)
	}
	if err := o.Archives.Transfer(ctx, name); err != nil {
		return run.fatal(err)
	}

	return run.result(o.deploy(ctx, run, req.Database, req.Backup, func(ctx context.Context) error {
		return o.Archives.Uncompress(ctx, name)
	}))
}

// deploy is the shared workflow tail: stop, savepoint, stage the database,
// replace the sources, upgrade, and either commit or roll back. The
// savepoint drop and service start run on every non-fatal path.
//
// A fatal error before the upgrade step aborts immediately and leaves the
// host as-is: service stopped, savepoint on disk. That state is logged so
// the operator can recover by hand; see DESIGN.md for the rationale.
func (o *Orchestrator) deploy(ctx context.Context, run *run, db, backup string, replaceSources func(ctx context.Context) error) error {
	if err := o.Service.Stop(ctx); err != nil {
		return run.fatal(err)
	}

	savepoint, err := o.Archives.CreateSavepoint(ctx)
	if err != nil {
		return run.fatal(err)
	}

	backup, err = o.Database.DumpOrRestore(ctx, db, backup)
	if err != nil {
		run.log.Errorf("Aborting with savepoint %s left in place", savepoint)
		return run.fatal(err)
	}
	run.setBackup(ctx, backup)

	if err := replaceSources(ctx); err != nil {
		run.log.Errorf("Aborting with savepoint %s left in place", savepoint)
		return run.fatal(err)
	}

	result, err := o.Database.Upgrade(ctx, db)
	if err != nil {
		run.log.Errorf("Aborting with savepoint %s left in place", savepoint)
		return run.fatal(err)
	}

	rolledBack := !result.Success()
	if rolledBack {
		run.log.Errorf("Upgrade of database '%s' exited with code %d; rolling back", db, result.ExitCode)
		if err := o.rollback(ctx, db, backup, savepoint); err != nil {
			return run.fatal(err)
		}
		metrics.Rollback(run.workflow)
	}

	if err := o.Archives.DropSavepoint(ctx, savepoint); err != nil {
		return run.fatal(err)
	}
	if err := o.Service.Start(ctx); err != nil {
		return run.fatal(err)
	}

	if rolledBack {
		return Errorf(ExitRolledBack, "upgrade of database '%s' failed with exit code %d; host rolled back to its previous state", db, result.ExitCode)
	}

	run.log.Infof("Deployment succeeded")
	return nil
}

// rollback restores the database from the attempt's backup and puts the
// savepoint back in place of the freshly deployed sources. The backup is
// known by now, so DumpOrRestore always takes the restore path.
func (o *Orchestrator) rollback(ctx context.Context, db, backup, savepoint string) error {
	if _, err := o.Database.DumpOrRestore(ctx, db, backup); err != nil {
		return err
	}
	return o.Archives.Uncompress(ctx, savepoint)
}

// run tracks one deployment attempt across logs, metrics and history.
type run struct {
	id       string
	workflow string
	store    history.Store
	log      *log.Entry
	status   string
	started  time.Time
}

func (o *Orchestrator) begin(workflow, ref, db, backup string) *run {
	r := &run{
		id:       uuid.NewString(),
		workflow: workflow,
		store:    o.History,
		status:   metrics.StatusError,
		started:  time.Now(),
	}
	r.log = log.WithFields(log.Fields{
		"correlation_id": r.id,
		"workflow":       workflow,
	})
	r.log.Infof("Deploying '%s' against database '%s' on %s", ref, db, o.Host)

	metrics.Started(workflow)

	if r.store != nil {
		err := r.store.WriteAttempt(context.Background(), history.Attempt{
			ID:       r.id,
			Workflow: workflow,
			Host:     o.Host,
			Ref:      ref,
			Database: db,
			Backup:   backup,
			State:    history.StateInProgress,
			Created:  r.started,
		})
		if err != nil {
			r.log.Warnf("Unable to record deployment attempt: %s", err)
		}
	}

	return r
}

func (r *run) setBackup(ctx context.Context, backup string) {
	r.log.Infof("Database staged with backup %s", backup)
	if r.store == nil {
		return
	}
	if err := r.store.SetBackup(ctx, r.id, backup); err != nil {
		r.log.Warnf("Unable to record backup filename: %s", err)
	}
}

// fatal tags an error with the execution failure exit code unless it is
// already classified.
func (r *run) fatal(err error) error {
	if _, ok := err.(*Error); ok {
		return err
	}
	return ErrorWrap(ExitExecutionFailure, err)
}

// result records the final state before handing the error back.
func (r *run) result(err error) error {
	switch ErrorExitCode(err) {
	case ExitSuccess:
		r.status = metrics.StatusSuccess
	case ExitRolledBack:
		r.status = metrics.StatusRolledBack
	default:
		r.status = metrics.StatusError
	}
	return err
}

func (r *run) finish() {
	metrics.Finished(r.workflow, r.status)

	if r.store == nil {
		return
	}
	state := map[string]string{
		metrics.StatusSuccess:    history.StateSuccess,
		metrics.StatusRolledBack: history.StateRolledBack,
		metrics.StatusError:      history.StateError,
	}[r.status]
	if err := r.store.SetState(context.Background(), r.id, state); err != nil {
		r.log.Warnf("Unable to record deployment state: %s", err)
	}
}
