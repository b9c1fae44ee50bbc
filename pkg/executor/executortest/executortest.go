// Package executortest provides a scripted in-memory Executor for component
// and workflow tests.
package executortest

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
)

// Fake records every command it is asked to run and answers existence
// probes from the Files map. A Hook can inject non-zero exit codes or
// mutate Files to emulate side effects of earlier commands.
type Fake struct {
	// Files emulates the target filesystem for `test -e` probes.
	Files map[string]bool
	// Hook may return a Result for a command; nil falls through to the
	// default behaviour (probe Files, otherwise succeed).
	Hook func(cmd executor.Command) *executor.Result
	// Calls holds every command in execution order. Put transfers are
	// recorded as synthetic `put <local> <dir>` entries to keep ordering
	// observable.
	Calls []executor.Command
}

var (
	_ executor.Executor        = &Fake{}
	_ executor.FileTransferrer = &Fake{}
)

func (f *Fake) Run(ctx context.Context, cmd executor.Command) (executor.Result, error) {
	f.Calls = append(f.Calls, cmd)

	res := f.respond(cmd)
	if !cmd.Policy.Accepts(res.ExitCode) {
		return res, &executor.ExitError{Command: cmd.Line, Result: res}
	}
	return res, nil
}

func (f *Fake) respond(cmd executor.Command) executor.Result {
	if f.Hook != nil {
		if res := f.Hook(cmd); res != nil {
			return *res
		}
	}
	if probe, ok := strings.CutPrefix(cmd.Line, "test -e "); ok {
		if !f.Files[unquote(probe)] {
			return executor.Result{ExitCode: 1}
		}
	}
	return executor.Result{}
}

func (f *Fake) Put(ctx context.Context, localPath, remoteDir string) error {
	f.Calls = append(f.Calls, executor.Command{
		Line: fmt.Sprintf("put %s %s", localPath, remoteDir),
	})
	f.Touch(path.Join(remoteDir, path.Base(localPath)))
	return nil
}

func (f *Fake) Touch(paths ...string) {
	if f.Files == nil {
		f.Files = make(map[string]bool)
	}
	for _, p := range paths {
		f.Files[p] = true
	}
}

// Lines returns the raw command lines in execution order.
func (f *Fake) Lines() []string {
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.Line
	}
	return lines
}

// Find returns the index of the first command line containing substr, or -1.
func (f *Fake) Find(substr string) int {
	for i, c := range f.Calls {
		if strings.Contains(c.Line, substr) {
			return i
		}
	}
	return -1
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return strings.ReplaceAll(s, `'\''`, "'")
}
