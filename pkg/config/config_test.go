package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smile-sa/odoo-deploy/pkg/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Host:          "testing.example.com",
		SSHUser:       "deploy",
		SvnRepository: "svn://svn.example.com/odoo",
		Database:      "demo",
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Host = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.SSHUser = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.SvnRepository = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Database = ""
	assert.Error(t, cfg.Validate())
}

func TestRedactedKeysCoverSecrets(t *testing.T) {
	assert.Contains(t, config.RedactedKeys, "ssh-password")
	assert.Contains(t, config.RedactedKeys, "db-password")
	assert.Contains(t, config.RedactedKeys, "history-dsn")
}
