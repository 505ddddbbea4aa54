package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the deployment counters of a single CLI run. The registry is
// private so repeated runs in one process do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	Deployments   *prometheus.CounterVec
	Actions       *prometheus.CounterVec
	DeployLatency *prometheus.HistogramVec
}

// NewMetrics registers the uxy collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxy_deployments_total",
			Help: "Deployments by stage and result.",
		}, []string{"stage", "result"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxy_chatbot_actions_total",
			Help: "Chat-platform update actions executed.",
		}, []string{"action"}),
		DeployLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uxy_deployment_duration_seconds",
			Help:    "Wall time of a deployment.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
	}
	m.Registry.MustRegister(m.Deployments, m.Actions, m.DeployLatency)
	return m
}

// ObserveDeployment records one finished or cancelled deployment.
func (m *Metrics) ObserveDeployment(stage, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Deployments.WithLabelValues(stage, result).Inc()
	m.DeployLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveAction records one executed chat-platform action.
func (m *Metrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action).Inc()
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil {
		return nil
	}
	if strings.TrimSpace(gatewayURL) == "" {
		return errors.New("telemetry: pushgateway url is required")
	}
	return push.New(gatewayURL, job).Gatherer(m.Registry).PushContext(ctx)
}
