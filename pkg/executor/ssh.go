package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/smile-sa/odoo-deploy/pkg/metrics"
)

const DefaultSSHPort = 22

// SSHRunner executes commands on a remote host over SSH. It holds a single
// connection; commands run in individual sessions, one at a time.
type SSHRunner struct {
	host   string
	port   int
	config *ssh.ClientConfig
	client *ssh.Client
}

func NewSSHRunner(host string, port int, user, password, keyFile string) (*SSHRunner, error) {
	if port == 0 {
		port = DefaultSSHPort
	}

	auth := make([]ssh.AuthMethod, 0, 2)
	if len(keyFile) > 0 {
		buf, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(buf)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(password) > 0 {
		auth = append(auth, ssh.Password(password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH authentication configured; need a password or a key file")
	}

	return &SSHRunner{
		host: host,
		port: port,
		config: &ssh.ClientConfig{
			User: user,
			Auth: auth,
			// Host identity is managed by the surrounding infrastructure.
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         30 * time.Second,
		},
	}, nil
}

func (r *SSHRunner) Connect() error {
	client, err := ssh.Dial("tcp", net.JoinHostPort(r.host, fmt.Sprint(r.port)), r.config)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", r.host, err)
	}
	r.client = client
	return nil
}

func (r *SSHRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *SSHRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	now := time.Now()
	res, err := r.run(ctx, cmd)
	metrics.Command(r.host, now, err)
	return res, err
}

func (r *SSHRunner) run(ctx context.Context, cmd Command) (Result, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := script(cmd)
	log.Debugf("%s: %s", r.host, redacted(cmd))

	if err := session.Start(line); err != nil {
		return Result{}, fmt.Errorf("start command on %s: %w", r.host, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case err = <-done:
	}

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return res, fmt.Errorf("run command on %s: %w", r.host, err)
		}
		res.ExitCode = exitErr.ExitStatus()
	}

	if !cmd.Policy.Accepts(res.ExitCode) {
		return res, &ExitError{Command: cmd.Line, Result: res}
	}
	if res.ExitCode != 0 {
		log.Warnf("command '%s' exited with tolerated code %d", cmd.Line, res.ExitCode)
	}

	return res, nil
}

// Put copies a local file into a directory on the remote host over SFTP.
func (r *SSHRunner) Put(ctx context.Context, localPath, remoteDir string) error {
	client, err := sftp.NewClient(r.client)
	if err != nil {
		return fmt.Errorf("open sftp session: %w", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	target := path.Join(remoteDir, path.Base(localPath))
	dst, err := client.Create(target)
	if err != nil {
		return fmt.Errorf("create %s on %s: %w", target, r.host, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("transfer %s to %s: %w", localPath, r.host, err)
	}

	return nil
}
