package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
	"github.com/smile-sa/odoo-deploy/pkg/executor/executortest"
	"github.com/smile-sa/odoo-deploy/pkg/service"
)

func TestStopToleratesAlreadyStopped(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Hook = func(cmd executor.Command) *executor.Result {
		return &executor.Result{ExitCode: 1}
	}
	c := &service.Controller{Name: "openerp-server", Remote: fake}

	err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "service openerp-server stop", fake.Calls[0].Line)
}

func TestStopFailureIsFatal(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Hook = func(cmd executor.Command) *executor.Result {
		return &executor.Result{ExitCode: 5}
	}
	c := &service.Controller{Name: "openerp-server", Remote: fake}

	assert.Error(t, c.Stop(context.Background()))
}

func TestStartIsStrict(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Hook = func(cmd executor.Command) *executor.Result {
		return &executor.Result{ExitCode: 1}
	}
	c := &service.Controller{Name: "openerp-server", Remote: fake}

	assert.Error(t, c.Start(context.Background()))
}
