package corobus

// Metrics for runner activity.
//
// The runner keeps plain counters on its hot path (it is single-threaded, so
// no atomics are needed) and exposes them as an immutable Stats snapshot.
// PrometheusCollector pulls from Stats on scrape; nothing is instrumented on
// the dispatch path itself.

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// runnerStats holds the runner's cumulative counters.
type runnerStats struct {
	Steps               uint64
	TasksPushed         uint64
	TasksCompleted      uint64
	CommandsInterpreted uint64
	MessagesSent        uint64
	MessagesDelivered   uint64
	MessagesDropped     uint64
	HandlerFailures     uint64
}

// Stats is a point-in-time snapshot of runner activity.
type Stats struct {
	// Steps is the number of scheduler steps executed.
	Steps uint64 `json:"steps"`

	// TasksPushed and TasksCompleted count stack activity.
	TasksPushed    uint64 `json:"tasksPushed"`
	TasksCompleted uint64 `json:"tasksCompleted"`

	// CommandsInterpreted counts yielded commands processed.
	CommandsInterpreted uint64 `json:"commandsInterpreted"`

	// MessagesSent counts point-to-point deliveries that found an endpoint;
	// MessagesDelivered counts fan-out deliveries to subscribers;
	// MessagesDropped counts sends to topics without an endpoint.
	MessagesSent      uint64 `json:"messagesSent"`
	MessagesDelivered uint64 `json:"messagesDelivered"`
	MessagesDropped   uint64 `json:"messagesDropped"`

	// HandlerFailures counts coroutines aborted by a panic.
	HandlerFailures uint64 `json:"handlerFailures"`
}

// Stats returns a snapshot of the runner's counters.
func (r *TaskRunner) Stats() Stats {
	return Stats{
		Steps:               r.stats.Steps,
		TasksPushed:         r.stats.TasksPushed,
		TasksCompleted:      r.stats.TasksCompleted,
		CommandsInterpreted: r.stats.CommandsInterpreted,
		MessagesSent:        r.stats.MessagesSent,
		MessagesDelivered:   r.stats.MessagesDelivered,
		MessagesDropped:     r.stats.MessagesDropped,
		HandlerFailures:     r.stats.HandlerFailures,
	}
}

var errNilRunner = fmt.Errorf("corobus: nil runner supplied")

// PrometheusCollector implements prometheus.Collector over a runner's Stats.
//
// Usage:
//
//	collector := corobus.NewPrometheusCollector(runner, "corobus")
//	prometheus.MustRegister(collector)
type PrometheusCollector struct {
	runner *TaskRunner

	stepsDesc     *prometheus.Desc
	pushedDesc    *prometheus.Desc
	completedDesc *prometheus.Desc
	commandsDesc  *prometheus.Desc
	sentDesc      *prometheus.Desc
	deliveredDesc *prometheus.Desc
	droppedDesc   *prometheus.Desc
	failuresDesc  *prometheus.Desc
}

// NewPrometheusCollector builds a collector for runner using the given metric
// namespace.
func NewPrometheusCollector(runner *TaskRunner, namespace string) (*PrometheusCollector, error) {
	if runner == nil {
		return nil, errNilRunner
	}
	if namespace == "" {
		namespace = "corobus"
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "runner", name), help, nil, nil)
	}
	return &PrometheusCollector{
		runner:        runner,
		stepsDesc:     desc("steps_total", "Scheduler steps executed."),
		pushedDesc:    desc("tasks_pushed_total", "Tasks pushed onto the stack."),
		completedDesc: desc("tasks_completed_total", "Tasks popped after completion."),
		commandsDesc:  desc("commands_interpreted_total", "Handler-yielded commands interpreted."),
		sentDesc:      desc("messages_sent_total", "Point-to-point messages that found an endpoint."),
		deliveredDesc: desc("messages_delivered_total", "Fan-out deliveries to subscribers."),
		droppedDesc:   desc("messages_dropped_total", "Sends dropped for lack of an endpoint."),
		failuresDesc:  desc("handler_failures_total", "Coroutines aborted by a panic."),
	}, nil
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stepsDesc
	ch <- c.pushedDesc
	ch <- c.completedDesc
	ch <- c.commandsDesc
	ch <- c.sentDesc
	ch <- c.deliveredDesc
	ch <- c.droppedDesc
	ch <- c.failuresDesc
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.runner.Stats()
	ch <- prometheus.MustNewConstMetric(c.stepsDesc, prometheus.CounterValue, float64(stats.Steps))
	ch <- prometheus.MustNewConstMetric(c.pushedDesc, prometheus.CounterValue, float64(stats.TasksPushed))
	ch <- prometheus.MustNewConstMetric(c.completedDesc, prometheus.CounterValue, float64(stats.TasksCompleted))
	ch <- prometheus.MustNewConstMetric(c.commandsDesc, prometheus.CounterValue, float64(stats.CommandsInterpreted))
	ch <- prometheus.MustNewConstMetric(c.sentDesc, prometheus.CounterValue, float64(stats.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.deliveredDesc, prometheus.CounterValue, float64(stats.MessagesDelivered))
	ch <- prometheus.MustNewConstMetric(c.droppedDesc, prometheus.CounterValue, float64(stats.MessagesDropped))
	ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(stats.HandlerFailures))
}
