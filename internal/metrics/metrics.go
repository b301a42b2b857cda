package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_connections_active",
		Help: "The current number of live websocket connections on this node.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_connections_total",
		Help: "The total number of websocket connections accepted.",
	})
	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_calls_active",
		Help: "The current number of live call sessions on this node.",
	})
	InboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_inbound_events_total",
		Help: "Inbound client events by name.",
	}, []string{"event"})
	DomainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_domain_events_total",
		Help: "Domain events routed by kind and outcome.",
	}, []string{"kind", "outcome"})
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_deliveries_total",
		Help: "Outbound events handed to a connection by event name.",
	}, []string{"event"})
	DroppedDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_dropped_deliveries_total",
		Help: "Outbound events that could not be delivered by reason.",
	}, []string{"reason"})
	SignalRelays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_signal_relays_total",
		Help: "Relayed signaling payloads by direction and kind.",
	}, []string{"direction", "kind"})
	CollaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_collaborator_failures_total",
		Help: "Failed collaborator calls by operation.",
	}, []string{"op"})
	BusPublishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_bus_publish_retries_total",
		Help: "Retries when publishing to the event bus.",
	}, []string{"bus"})
)
