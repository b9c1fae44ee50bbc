package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/smile-sa/odoo-deploy/pkg/archive"
	"github.com/smile-sa/odoo-deploy/pkg/config"
	"github.com/smile-sa/odoo-deploy/pkg/database"
	"github.com/smile-sa/odoo-deploy/pkg/executor"
	"github.com/smile-sa/odoo-deploy/pkg/history"
	"github.com/smile-sa/odoo-deploy/pkg/logging"
	"github.com/smile-sa/odoo-deploy/pkg/metrics"
	"github.com/smile-sa/odoo-deploy/pkg/orchestrator"
	"github.com/smile-sa/odoo-deploy/pkg/scm"
	"github.com/smile-sa/odoo-deploy/pkg/service"
	"github.com/smile-sa/odoo-deploy/pkg/version"
)

const (
	cmdInternalTesting = "internal-testing"
	cmdCustomerTesting = "customer-testing"
	cmdHistory         = "history"
)

// historyLimit caps the attempt listing of the history command.
const historyLimit = 20

var help = fmt.Sprintf(`
deploy replaces the application sources and upgrades the database on a
remote host, rolling back to the previous state when the upgrade fails.

usage: deploy %s|%s|%s [flags]
`, cmdInternalTesting, cmdCustomerTesting, cmdHistory)

func main() {
	err := run()
	if err == nil {
		return
	}
	code := orchestrator.ErrorExitCode(err)
	if code == orchestrator.ExitInvocationFailure {
		flag.Usage()
	}
	log.Errorf("fatal: %s", err)
	os.Exit(int(code))
}

func run() error {
	flag.ErrHelp = fmt.Errorf(help)

	cfg, err := config.Load()
	if err != nil {
		return orchestrator.ErrorWrap(orchestrator.ExitInvocationFailure, err)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return orchestrator.ErrorWrap(orchestrator.ExitInvocationFailure, err)
	}

	log.Infof("odoo-deploy %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Infof("This version was built %s", ts.Local())
	}
	for _, line := range config.Format() {
		log.Debug(line)
	}

	workflow := flag.Arg(0)
	switch workflow {
	case cmdInternalTesting, cmdCustomerTesting, cmdHistory:
	default:
		return orchestrator.Errorf(orchestrator.ExitInvocationFailure, "specify a command: %s, %s or %s", cmdInternalTesting, cmdCustomerTesting, cmdHistory)
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return orchestrator.Errorf(orchestrator.ExitInvocationFailure, "invalid timeout: %s", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if workflow == cmdHistory {
		if len(cfg.HistoryDSN) == 0 {
			return orchestrator.Errorf(orchestrator.ExitInvocationFailure, "history store DSN required")
		}
		store, err := history.New(ctx, cfg.HistoryDSN)
		if err != nil {
			return orchestrator.ErrorWrap(orchestrator.ExitExecutionFailure, fmt.Errorf("connect to history store: %w", err))
		}
		defer store.Close()
		if err := listAttempts(ctx, store, cfg.Host, os.Stdout); err != nil {
			return orchestrator.ErrorWrap(orchestrator.ExitExecutionFailure, err)
		}
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return orchestrator.ErrorWrap(orchestrator.ExitInvocationFailure, err)
	}

	remote, err := executor.NewSSHRunner(cfg.Host, cfg.SSHPort, cfg.SSHUser, cfg.SSHPassword, cfg.SSHKeyFile)
	if err != nil {
		return orchestrator.ErrorWrap(orchestrator.ExitInvocationFailure, err)
	}
	if err := remote.Connect(); err != nil {
		return orchestrator.ErrorWrap(orchestrator.ExitExecutionFailure, err)
	}
	defer func() {
		if err := remote.Close(); err != nil {
			log.Error(err)
		}
	}()

	orch := wire(cfg, remote)

	if len(cfg.HistoryDSN) > 0 {
		store, err := history.New(ctx, cfg.HistoryDSN)
		if err != nil {
			return orchestrator.ErrorWrap(orchestrator.ExitExecutionFailure, fmt.Errorf("connect to history store: %w", err))
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return orchestrator.ErrorWrap(orchestrator.ExitExecutionFailure, err)
		}
		orch.History = store
	}

	if len(cfg.PushgatewayURL) > 0 {
		defer func() {
			if err := metrics.Push(cfg.PushgatewayURL); err != nil {
				log.Warnf("Unable to push metrics: %s", err)
			}
		}()
	}

	switch workflow {
	case cmdInternalTesting:
		if len(cfg.Branch) == 0 {
			return orchestrator.Errorf(orchestrator.ExitInvocationFailure, "branch required")
		}
		return orch.DeployForInternalTesting(ctx, orchestrator.InternalRequest{
			Branch:             cfg.Branch,
			Database:           cfg.Database,
			Backup:             cfg.Backup,
			SkipBranchCreation: cfg.SkipBranchCreation,
		})
	default:
		if len(cfg.Tag) == 0 {
			return orchestrator.Errorf(orchestrator.ExitInvocationFailure, "tag required")
		}
		return orch.DeployForCustomerTesting(ctx, orchestrator.CustomerRequest{
			Tag:         cfg.Tag,
			Database:    cfg.Database,
			Backup:      cfg.Backup,
			ForceExport: cfg.ForceExport,
		})
	}
}

// listAttempts prints the most recent deployment attempts, newest first,
// filtered by target host when one is configured.
func listAttempts(ctx context.Context, store history.Store, host string, w io.Writer) error {
	attempts, err := store.Attempts(ctx, host, historyLimit)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		fmt.Fprintf(w, "%s  %-17s %-11s %s  %s -> %s  backup=%s\n",
			a.Created.Format(time.RFC3339), a.Workflow, a.State, a.Host, a.Ref, a.Database, a.Backup)
	}
	return nil
}

func wire(cfg *config.Config, remote *executor.SSHRunner) *orchestrator.Orchestrator {
	local := executor.LocalRunner{}

	sources := &scm.Provider{
		Repository: cfg.SvnRepository,
		SourcesDir: cfg.SourcesDir,
		TagDir:     cfg.TagDir,
		Privileged: cfg.UseSudo,
		Remote:     remote,
		Local:      local,
	}

	archives := &archive.Manager{
		BackupDir:   cfg.BackupDir,
		SourcesDir:  cfg.SourcesDir,
		TagDir:      cfg.TagDir,
		Privileged:  cfg.UseSudo,
		Remote:      remote,
		Local:       local,
		Transferrer: remote,
		Clean:       sources.CleanSourcesDir,
	}

	db := &database.Manager{
		BackupDir:      cfg.BackupDir,
		SourcesDir:     cfg.SourcesDir,
		Privileged:     cfg.UseSudo,
		Host:           cfg.DBHost,
		Port:           cfg.DBPort,
		User:           cfg.DBUser,
		Password:       cfg.DBPassword,
		ServiceAccount: cfg.OdooUser,
		Launcher:       cfg.OdooLauncher,
		ConfigFile:     cfg.OdooConf,
		Remote:         remote,
	}

	svc := &service.Controller{
		Name:       cfg.ServiceName,
		Privileged: cfg.UseSudo,
		Remote:     remote,
	}

	return &orchestrator.Orchestrator{
		Sources:  sources,
		Archives: archives,
		Database: db,
		Service:  svc,
		Host:     cfg.Host,
	}
}
