package executor

import (
	"context"
	"fmt"
	"strings"
)

// Result carries the outcome of a single command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Policy decides which exit codes abort the calling workflow.
// The zero value is strict: any non-zero exit is an error.
type Policy struct {
	// WarnOnly reports every failure through the Result instead of an error.
	WarnOnly bool
	// OKExitCodes lists additional exit codes treated as acceptable.
	OKExitCodes []int
}

func (p Policy) Accepts(code int) bool {
	if code == 0 || p.WarnOnly {
		return true
	}
	for _, ok := range p.OKExitCodes {
		if code == ok {
			return true
		}
	}
	return false
}

// Command is one shell command bound to its full execution scope: working
// directory, environment, privilege level and exit code tolerance. Scope
// never leaks between calls; each Command carries its own.
type Command struct {
	Line       string
	Dir        string
	Env        map[string]string
	Privileged bool
	Policy     Policy
}

// Executor runs a command on a target host and blocks until it finishes.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// FileTransferrer copies a local file into a directory on the target.
type FileTransferrer interface {
	Put(ctx context.Context, localPath, remoteDir string) error
}

// ExitError is returned when a command exits with a code its Policy does
// not accept.
type ExitError struct {
	Command string
	Result  Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command '%s' exited with code %d", e.Command, e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); len(stderr) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	return msg
}

// Exists reports whether a path exists on the executor's target.
func Exists(ctx context.Context, ex Executor, path string) (bool, error) {
	res, err := ex.Run(ctx, Command{
		Line:   "test -e " + Quote(path),
		Policy: Policy{OKExitCodes: []int{1}},
	})
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}
