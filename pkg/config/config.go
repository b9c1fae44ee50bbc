// Package config resolves the per-environment deployment settings from
// command line flags, environment variables and an optional config file,
// in that order of precedence. The result is one immutable record for the
// whole deployment run; nothing re-reads settings after startup.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults mirror the historical server layout; every field can be
// overridden per environment.
const (
	DefaultSourcesDir  = "/opt/openerp"
	DefaultBackupDir   = "/home/postgres"
	DefaultTagDir      = "/tmp"
	DefaultServiceName = "openerp-server"
	DefaultOdooUser    = "openerp"
	DefaultLauncher    = "openerp-server"
	DefaultConfigFile  = "/etc/openerp-server.conf"
	DefaultDBHost      = "localhost"
	DefaultDBPort      = 5432
	DefaultDBUser      = "openerp"
	DefaultTimeout     = "1h"
)

type Config struct {
	LogFormat string `json:"log-format"`
	LogLevel  string `json:"log-level"`
	Timeout   string `json:"timeout"`

	Host        string `json:"host"`
	SSHPort     int    `json:"ssh-port"`
	SSHUser     string `json:"ssh-user"`
	SSHPassword string `json:"ssh-password"`
	SSHKeyFile  string `json:"ssh-key-file"`
	UseSudo     bool   `json:"use-sudo"`

	SvnRepository string `json:"svn-repository"`
	SourcesDir    string `json:"sources-dir"`
	BackupDir     string `json:"backup-dir"`
	TagDir        string `json:"tag-dir"`

	ServiceName  string `json:"service-name"`
	OdooUser     string `json:"odoo-user"`
	OdooLauncher string `json:"odoo-launcher"`
	OdooConf     string `json:"odoo-conf"`

	DBHost     string `json:"db-host"`
	DBPort     int    `json:"db-port"`
	DBUser     string `json:"db-user"`
	DBPassword string `json:"db-password"`

	Branch             string `json:"branch"`
	Tag                string `json:"tag"`
	Database           string `json:"database"`
	Backup             string `json:"backup"`
	SkipBranchCreation bool   `json:"skip-branch-creation"`
	ForceExport        bool   `json:"force-export"`

	HistoryDSN     string `json:"history-dsn"`
	PushgatewayURL string `json:"pushgateway-url"`
}

// Secret configuration keys, redacted in the startup printout.
var RedactedKeys = []string{
	"ssh-password",
	"db-password",
	"history-dsn",
}

func bindFlags() {
	flag.String("log-format", "text", "Log format, either 'json' or 'text'.")
	flag.String("log-level", "info", "Logging verbosity level.")
	flag.String("timeout", DefaultTimeout, "Give up the whole deployment after this duration.")

	flag.String("host", "", "Address of the target host.")
	flag.Int("ssh-port", 22, "SSH port on the target host.")
	flag.String("ssh-user", "", "SSH user on the target host.")
	flag.String("ssh-password", "", "SSH password; prefer --ssh-key-file.")
	flag.String("ssh-key-file", "", "Path to an SSH private key.")
	flag.Bool("use-sudo", false, "Run remote commands with elevated privileges.")

	flag.String("svn-repository", "", "Subversion repository root URL.")
	flag.String("sources-dir", DefaultSourcesDir, "Application sources directory on the target host.")
	flag.String("backup-dir", DefaultBackupDir, "Backup directory on the target host.")
	flag.String("tag-dir", DefaultTagDir, "Local staging directory for tag exports.")

	flag.String("service-name", DefaultServiceName, "Name of the application init service.")
	flag.String("odoo-user", DefaultOdooUser, "System account the upgrade runs as.")
	flag.String("odoo-launcher", DefaultLauncher, "Application server launcher binary.")
	flag.String("odoo-conf", DefaultConfigFile, "Application server configuration file.")

	flag.String("db-host", DefaultDBHost, "Database host, as seen from the target host.")
	flag.Int("db-port", DefaultDBPort, "Database port.")
	flag.String("db-user", DefaultDBUser, "Database user.")
	flag.String("db-password", "", "Database password; passed to the PostgreSQL tools through the environment, never on the command line.")

	flag.String("branch", "", "Branch to deploy (internal-testing).")
	flag.String("tag", "", "Tag to deploy (customer-testing).")
	flag.String("database", "", "Database to upgrade.")
	flag.String("backup", "", "Existing backup to restore instead of dumping a fresh one.")
	flag.Bool("skip-branch-creation", false, "Do not create the branch before deploying (internal-testing).")
	flag.Bool("force-export", false, "Re-export the tag and rebuild the archive even when present (customer-testing).")

	flag.String("history-dsn", "", "PostgreSQL DSN for the deployment history store; empty disables it.")
	flag.String("pushgateway-url", "", "Prometheus Pushgateway to deliver run metrics to; empty disables it.")
}

func init() {
	// Automatically read configuration options from environment variables.
	viper.AutomaticEnv()
	viper.SetEnvPrefix("DEPLOY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.SetConfigName("odoo-deploy")
	viper.AddConfigPath(".")

	bindFlags()
}

func decoderHook(dc *mapstructure.DecoderConfig) {
	dc.TagName = "json"
	dc.ErrorUnused = true
}

// ignoreNotFound drops the error for a missing config file, which is
// optional. Anything else, a malformed file included, is a real error.
func ignoreNotFound(err error) error {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return err
}

func Load() (*Config, error) {
	var cfg Config

	if err := ignoreNotFound(viper.ReadInConfig()); err != nil {
		return nil, err
	}

	flag.Parse()

	err := viper.BindPFlags(flag.CommandLine)
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&cfg, decoderHook)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Format returns a human-readable printout of all configuration options,
// with secrets redacted.
func Format() []string {
	redacted := func(key string) bool {
		for _, k := range RedactedKeys {
			if k == key {
				return true
			}
		}
		return false
	}

	keys := viper.AllKeys()
	sort.Strings(keys)
	printed := make([]string, 0, len(keys))
	for _, key := range keys {
		if redacted(key) {
			printed = append(printed, fmt.Sprintf("%s: ***REDACTED***", key))
		} else {
			printed = append(printed, fmt.Sprintf("%s: %v", key, viper.Get(key)))
		}
	}

	return printed
}

func (cfg *Config) Validate() error {
	if len(cfg.Host) == 0 {
		return fmt.Errorf("target host required")
	}
	if len(cfg.SSHUser) == 0 {
		return fmt.Errorf("SSH user required")
	}
	if len(cfg.SvnRepository) == 0 {
		return fmt.Errorf("subversion repository required")
	}
	if len(cfg.Database) == 0 {
		return fmt.Errorf("database required")
	}
	return nil
}
