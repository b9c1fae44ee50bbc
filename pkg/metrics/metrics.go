package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "deployment"
	subsystem = "orchestrator"

	StatusSuccess    = "success"
	StatusRolledBack = "rolled_back"
	StatusError      = "error"

	LabelWorkflow = "workflow"
	LabelStatus   = "status"
	LabelHost     = "host"
)

func Started(workflow string) {
	deploymentsStarted.With(prometheus.Labels{
		LabelWorkflow: workflow,
	}).Inc()
}

func Finished(workflow, status string) {
	deployments.With(prometheus.Labels{
		LabelWorkflow: workflow,
		LabelStatus:   status,
	}).Inc()
}

func Rollback(workflow string) {
	rollbacks.With(prometheus.Labels{
		LabelWorkflow: workflow,
	}).Inc()
}

func statusLabel(err error) string {
	if err == nil {
		return StatusSuccess
	}
	return StatusError
}

func Command(host string, t time.Time, err error) {
	elapsed := time.Since(t)
	commandDuration.With(prometheus.Labels{
		LabelHost:   host,
		LabelStatus: statusLabel(err),
	}).Observe(elapsed.Seconds())
}

// Push delivers all collected metrics to a Prometheus Pushgateway. The
// orchestrator is a one-shot process, so pushing at the end of a run is the
// only way its metrics outlive it.
func Push(url string) error {
	return push.New(url, "odoo_deploy").
		Gatherer(prometheus.DefaultGatherer).
		Push()
}

var (
	deploymentsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "deployments_started",
		Help:      "number of deployment attempts started",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelWorkflow,
		},
	)

	deployments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "deployments",
		Help:      "number of deployment attempts finished, by outcome",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelWorkflow,
			LabelStatus,
		},
	)

	rollbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "rollbacks",
		Help:      "number of automatic rollbacks after a failed upgrade",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelWorkflow,
		},
	)

	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "command_duration_seconds",
		Help:      "time to execute remote commands",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	},
		[]string{
			LabelHost,
			LabelStatus,
		},
	)
)

func init() {
	prometheus.MustRegister(deploymentsStarted)
	prometheus.MustRegister(deployments)
	prometheus.MustRegister(rollbacks)
	prometheus.MustRegister(commandDuration)
}
