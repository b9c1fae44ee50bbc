// Package service starts and stops the application init service on the
// target host.
package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/smile-sa/odoo-deploy/pkg/executor"
)

type Controller struct {
	Name       string
	Privileged bool

	Remote executor.Executor
}

// Start brings the service up. A failure to start is fatal; the whole point
// of the run is a working service at the end.
func (c *Controller) Start(ctx context.Context) error {
	log.Infof("Starting service %s", c.Name)
	_, err := c.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("service %s start", c.Name),
		Privileged: c.Privileged,
	})
	return err
}

// Stop brings the service down. Exit code 1 means the service was already
// stopped, which is fine for our purposes.
func (c *Controller) Stop(ctx context.Context) error {
	log.Infof("Stopping service %s", c.Name)
	_, err := c.Remote.Run(ctx, executor.Command{
		Line:       fmt.Sprintf("service %s stop", c.Name),
		Privileged: c.Privileged,
		Policy:     executor.Policy{OKExitCodes: []int{1}},
	})
	return err
}
