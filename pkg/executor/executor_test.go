package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
	"github.com/smile-sa/odoo-deploy/pkg/executor/executortest"
)

func TestPolicyStrictByDefault(t *testing.T) {
	var p executor.Policy

	assert.True(t, p.Accepts(0))
	assert.False(t, p.Accepts(1))
	assert.False(t, p.Accepts(255))
}

func TestPolicyAllowList(t *testing.T) {
	p := executor.Policy{OKExitCodes: []int{1, 3}}

	assert.True(t, p.Accepts(0))
	assert.True(t, p.Accepts(1))
	assert.True(t, p.Accepts(3))
	assert.False(t, p.Accepts(2))
}

func TestPolicyWarnOnly(t *testing.T) {
	p := executor.Policy{WarnOnly: true}

	assert.True(t, p.Accepts(0))
	assert.True(t, p.Accepts(1))
	assert.True(t, p.Accepts(137))
}

func TestExitErrorMessage(t *testing.T) {
	err := &executor.ExitError{
		Command: "svn up",
		Result:  executor.Result{ExitCode: 1, Stderr: "svn: E155007: not a working copy\n"},
	}

	assert.Equal(t, "command 'svn up' exited with code 1: svn: E155007: not a working copy", err.Error())
}

func TestExists(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Touch("/tmp/present")

	found, err := executor.Exists(context.Background(), fake, "/tmp/present")
	assert.NoError(t, err)
	assert.True(t, found)

	found, err = executor.Exists(context.Background(), fake, "/tmp/absent")
	assert.NoError(t, err)
	assert.False(t, found)
}
