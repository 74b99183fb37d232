// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns the engine's prometheus instruments.
type Collector struct {
	// workflow metrics
	workflowExecutionsTotal *prometheus.CounterVec
	workflowDuration        *prometheus.HistogramVec

	// step metrics
	stepExecutionsTotal *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec
	stepRetriesTotal    *prometheus.CounterVec

	// gate metrics
	gateEvaluationsTotal   *prometheus.CounterVec
	gateEvaluationDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on the given registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.workflowExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"workflow_id", "status"},
	)

	c.workflowDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"workflow_id"},
	)

	c.stepExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_executions_total",
			Help:      "Total number of step executions",
		},
		[]string{"step_type", "status"},
	)

	c.stepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_execution_duration_seconds",
			Help:      "Step execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step_type"},
	)

	c.stepRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Total number of step retry attempts",
		},
		[]string{"step_type"},
	)

	c.gateEvaluationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_evaluations_total",
			Help:      "Total number of gate evaluations",
		},
		[]string{"gate_id", "passed"},
	)

	c.gateEvaluationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_evaluation_duration_seconds",
			Help:      "Gate evaluation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"gate_id"},
	)

	return c
}

// ObserveWorkflowExecution records one finished workflow execution.
func (c *Collector) ObserveWorkflowExecution(workflowID, status string, duration time.Duration) {
	c.workflowExecutionsTotal.WithLabelValues(workflowID, status).Inc()
	c.workflowDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
}

// ObserveStepExecution records one finished step attempt.
func (c *Collector) ObserveStepExecution(stepType, status string, duration time.Duration) {
	c.stepExecutionsTotal.WithLabelValues(stepType, status).Inc()
	c.stepDuration.WithLabelValues(stepType).Observe(duration.Seconds())
}

// ObserveStepRetry records one retry attempt.
func (c *Collector) ObserveStepRetry(stepType string) {
	c.stepRetriesTotal.WithLabelValues(stepType).Inc()
}

// ObserveGateEvaluation records one gate evaluation.
func (c *Collector) ObserveGateEvaluation(gateID string, passed bool, duration time.Duration) {
	outcome := "false"
	if passed {
		outcome = "true"
	}
	c.gateEvaluationsTotal.WithLabelValues(gateID, outcome).Inc()
	c.gateEvaluationDuration.WithLabelValues(gateID).Observe(duration.Seconds())
}
