package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the bot, scheduler and broadcaster report to.
type Recorder interface {
	RecordUpdate(kind string)
	RecordGeneration(operation, result string)
	RecordBroadcastMessage(result string)
	RecordSchedulerRun(job, result string)
	RecordCharge(result string)
	RecordBusyRefusal()
}

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Collector struct {
	updates           *prometheus.CounterVec
	generations       *prometheus.CounterVec
	broadcastMessages *prometheus.CounterVec
	schedulerRuns     *prometheus.CounterVec
	charges           *prometheus.CounterVec
	busyRefusals      prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitness_bot_updates_total",
			Help: "Inbound chat updates by kind.",
		}, []string{"kind"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitness_bot_generation_requests_total",
			Help: "Generation service calls by operation and result.",
		}, []string{"operation", "result"}),
		broadcastMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitness_bot_broadcast_messages_total",
			Help: "Broadcast deliveries by result.",
		}, []string{"result"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitness_bot_scheduler_runs_total",
			Help: "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitness_bot_subscription_charges_total",
			Help: "Off-session renewal charges by result.",
		}, []string{"result"}),
		busyRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitness_bot_busy_refusals_total",
			Help: "Actions refused because the account was busy.",
		}),
	}

	reg.MustRegister(
		c.updates,
		c.generations,
		c.broadcastMessages,
		c.schedulerRuns,
		c.charges,
		c.busyRefusals,
	)

	return c
}

func (c *Collector) RecordUpdate(kind string) {
	c.updates.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordGeneration(operation, result string) {
	c.generations.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordBroadcastMessage(result string) {
	c.broadcastMessages.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSchedulerRun(job, result string) {
	c.schedulerRuns.WithLabelValues(job, result).Inc()
}

func (c *Collector) RecordCharge(result string) {
	c.charges.WithLabelValues(result).Inc()
}

func (c *Collector) RecordBusyRefusal() {
	c.busyRefusals.Inc()
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordUpdate(string) {}
func (Nop) RecordGeneration(string, string) {}
func (Nop) RecordBroadcastMessage(string) {}
func (Nop) RecordSchedulerRun(string, string) {}
func (Nop) RecordCharge(string) {}
func (Nop) RecordBusyRefusal() {}
