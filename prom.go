package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// --- Prometheus Metrics ---

// metricsRegistry holds every cogbot collector; /metrics serves it.
var metricsRegistry = prometheus.NewRegistry()

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cogbot_commands_total",
			Help: "Slash command invocations",
		},
		[]string{"command", "status"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cogbot_command_duration_seconds",
			Help:    "Slash command handler latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"command"},
	)
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cogbot_notifications_sent_total",
			Help: "Weekly notification deliveries",
		},
		[]string{"status"},
	)
	notificationJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cogbot_notification_jobs",
			Help: "Notifications with a live scheduled job",
		},
	)
	schedulerJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cogbot_scheduler_jobs",
			Help: "Jobs held by the weekly scheduler",
		},
	)
	cogsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cogbot_cogs_loaded",
			Help: "Loaded cogs",
		},
	)
	gatewayLatency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cogbot_gateway_latency_seconds",
			Help: "Last measured gateway heartbeat latency",
		},
	)
)

func init() {
	metricsRegistry.MustRegister(
		commandsTotal,
		commandDuration,
		notificationsSent,
		notificationJobs,
		schedulerJobs,
		cogsLoaded,
		gatewayLatency,
	)
}

// Command outcome labels.
const (
	statusOK     = "ok"
	statusDenied = "denied"
	statusError  = "error"
)

func recordCommand(command, status string, elapsed time.Duration) {
	commandsTotal.WithLabelValues(command, status).Inc()
	if status != statusDenied {
		commandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}

func recordDelivery(err error) {
	if err != nil {
		notificationsSent.WithLabelValues("failed").Inc()
		return
	}
	notificationsSent.WithLabelValues("sent").Inc()
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}
