package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	osexec "os/exec"

	log "github.com/sirupsen/logrus"
)

// LocalRunner executes commands on the machine running the deployment,
// through /bin/sh. Used for the tag export and archive staging steps.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	line := cmd.Line
	if cmd.Privileged {
		line = "sudo -n sh -c " + Quote(line)
	}

	c := osexec.CommandContext(ctx, "/bin/sh", "-c", line)
	c.Dir = cmd.Dir
	c.Env = os.Environ()
	for k, v := range cmd.Env {
		c.Env = append(c.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	log.Debugf("local: %s", line)

	err := c.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		exitErr, ok := err.(*osexec.ExitError)
		if !ok {
			return res, fmt.Errorf("run local command: %w", err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if !cmd.Policy.Accepts(res.ExitCode) {
		return res, &ExitError{Command: cmd.Line, Result: res}
	}
	if res.ExitCode != 0 {
		log.Warnf("command '%s' exited with tolerated code %d", cmd.Line, res.ExitCode)
	}

	return res, nil
}
