package scm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
	"github.com/smile-sa/odoo-deploy/pkg/executor/executortest"
	"github.com/smile-sa/odoo-deploy/pkg/scm"
)

func testProvider(fake *executortest.Fake) *scm.Provider {
	return &scm.Provider{
		Repository: "svn://svn.example.com/odoo",
		SourcesDir: "/opt/openerp",
		TagDir:     "/tmp",
		Remote:     fake,
		Local:      fake,
	}
}

func exportCount(fake *executortest.Fake) int {
	count := 0
	for _, line := range fake.Lines() {
		if line == "svn export svn://svn.example.com/odoo/tags/v3.0 v3.0" {
			count++
		}
	}
	return count
}

func TestExportTagIdempotent(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Hook = func(cmd executor.Command) *executor.Result {
		if cmd.Line == "svn export svn://svn.example.com/odoo/tags/v3.0 v3.0" {
			fake.Touch("/tmp/v3.0")
		}
		return nil
	}
	p := testProvider(fake)

	require.NoError(t, p.ExportTag(context.Background(), "v3.0", false))
	require.NoError(t, p.ExportTag(context.Background(), "v3.0", false))

	assert.Equal(t, 1, exportCount(fake))
}

func TestExportTagForceReexports(t *testing.T) {
	fake := &executortest.Fake{}
	fake.Touch("/tmp/v3.0")
	p := testProvider(fake)

	require.NoError(t, p.ExportTag(context.Background(), "v3.0", true))

	rm := fake.Find("rm -Rf 'v3.0'")
	export := fake.Find("svn export")
	require.NotEqual(t, -1, rm)
	require.NotEqual(t, -1, export)
	assert.Less(t, rm, export)
}

func TestCheckoutBranchCleansFirst(t *testing.T) {
	fake := &executortest.Fake{}
	p := testProvider(fake)

	require.NoError(t, p.CheckoutBranch(context.Background(), "1.2"))

	clean := fake.Find("rm -Rf */")
	checkout := fake.Find("svn co svn://svn.example.com/odoo/branches/1.2 .")
	require.NotEqual(t, -1, clean)
	require.NotEqual(t, -1, checkout)
	assert.Less(t, clean, checkout)

	assert.Equal(t, "/opt/openerp", fake.Calls[checkout].Dir)
}

func TestUpdateBranchInPlace(t *testing.T) {
	fake := &executortest.Fake{}
	p := testProvider(fake)

	require.NoError(t, p.UpdateBranch(context.Background()))

	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "svn up", fake.Calls[0].Line)
	assert.Equal(t, "/opt/openerp", fake.Calls[0].Dir)
}

func TestCleanSourcesDirRetainsArchives(t *testing.T) {
	fake := &executortest.Fake{}
	p := testProvider(fake)

	require.NoError(t, p.CleanSourcesDir(context.Background()))

	lines := fake.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "rm -Rf */", lines[0])
	assert.Equal(t, "rm -Rf .svn", lines[1])
	assert.Contains(t, lines[2], "! -name '*.tag.gz'")
	for _, call := range fake.Calls {
		assert.Equal(t, "/opt/openerp", call.Dir)
	}
}

func TestCreateBranchFromTrunk(t *testing.T) {
	fake := &executortest.Fake{}
	p := testProvider(fake)

	require.NoError(t, p.CreateBranch(context.Background(), "1.2"))

	require.Len(t, fake.Calls, 1)
	assert.Contains(t, fake.Calls[0].Line, "svn cp svn://svn.example.com/odoo/trunk svn://svn.example.com/odoo/branches/1.2")
	assert.Contains(t, fake.Calls[0].Line, "[ADD] Create new branch 1.2")
}
