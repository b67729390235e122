package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EntityWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_entity_writes_total",
			Help: "Total number of entity rows written through the repository",
		},
		[]string{"entity", "operation"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_entity_events_published_total",
			Help: "Total number of entity-written events handed to the broker",
		},
		[]string{"entity"},
	)

	MigrationSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_steps_executed_total",
			Help: "Total number of migration steps executed per source and mode",
		},
		[]string{"source", "mode"},
	)

	MigrationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_steps_failed_total",
			Help: "Total number of migration steps that returned an error",
		},
		[]string{"source", "mode"},
	)

	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_entity_events_consumed_total",
			Help: "Total number of entity-written events consumed, by outcome",
		},
		[]string{"entity", "outcome"},
	)

	EventQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dal_entity_event_queue_depth",
			Help: "Current RabbitMQ queue depth of entity-written events per entity",
		},
		[]string{"entity"},
	)

	PluginsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kernel_plugins_active",
			Help: "Number of plugins booted by the kernel",
		},
	)
)

var initOnce sync.Once

// Init registers metrics with Prometheus
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(EntityWrites)
		prometheus.MustRegister(EventsPublished)
		prometheus.MustRegister(MigrationSteps)
		prometheus.MustRegister(MigrationFailures)
		prometheus.MustRegister(EventsConsumed)
		prometheus.MustRegister(EventQueueDepth)
		prometheus.MustRegister(PluginsActive)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
