package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики engine. Регистрируются в default registry через promauto;
// экспортируются на /metrics endpoint gateway.
var (
	// ActiveCalls — число живых сессий звонков.
	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kommutator_active_calls",
		Help: "Number of live call sessions",
	})

	// QueueDepth — текущая глубина очередей ожидания.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kommutator_queue_depth",
		Help: "Current depth of wait queues",
	}, []string{"queue"})

	// AssignmentsTotal — назначения звонков операторам.
	AssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kommutator_assignments_total",
		Help: "Calls assigned to agents",
	}, []string{"queue"})

	// QueueOverflowsTotal — звонки, ушедшие по overflow
	// (очередь переполнена или истекло время ожидания).
	QueueOverflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kommutator_queue_overflows_total",
		Help: "Calls diverted by queue overflow or wait expiry",
	}, []string{"queue", "reason"})

	// NodeErrorsTotal — ошибки исполнения узлов графа.
	NodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kommutator_node_errors_total",
		Help: "Flow node execution errors",
	}, []string{"node_type"})

	// CallDuration — длительность завершённых звонков.
	CallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kommutator_call_duration_seconds",
		Help:    "Duration of completed calls",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"status"})

	// QueueWaitDuration — время ожидания в очереди до исхода.
	QueueWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kommutator_queue_wait_seconds",
		Help:    "Time spent waiting in queue",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"queue", "outcome"})
)
