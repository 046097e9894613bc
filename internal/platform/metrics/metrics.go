package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the taskflow services.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionsOpened     prometheus.Counter
	HandshakeRejected  *prometheus.CounterVec
	SubscribeRejected  prometheus.Counter
	EventsConsumed     *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
	Deliveries         prometheus.Counter
	DeliveriesDropped  prometheus.Counter
	UpstreamRequests   *prometheus.CounterVec
	ActivitiesRecorded prometheus.Counter
	EventsPublished    *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_realtime_sessions_active",
			Help: "Websocket sessions currently open",
		}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_realtime_sessions_opened_total",
			Help: "Websocket sessions that completed the handshake",
		}),
		HandshakeRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_realtime_handshake_rejected_total",
			Help: "Websocket handshakes rejected before upgrade",
		}, []string{"reason"}),
		SubscribeRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_realtime_subscribe_rejected_total",
			Help: "In-session subscribe requests that were refused",
		}),
		EventsConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_events_consumed_total",
			Help: "Domain events consumed from the bus",
		}, []string{"consumer", "type"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_events_dropped_total",
			Help: "Bus records that could not be decoded or routed",
		}, []string{"consumer", "reason"}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_realtime_deliveries_total",
			Help: "Envelopes enqueued to websocket subscribers",
		}),
		DeliveriesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_realtime_deliveries_dropped_total",
			Help: "Envelopes dropped because a subscriber queue was full or closed",
		}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_gateway_upstream_requests_total",
			Help: "Requests proxied to downstream services",
		}, []string{"upstream", "outcome"}),
		ActivitiesRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_activities_recorded_total",
			Help: "Activities persisted from task events",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_events_published_total",
			Help: "Domain events published to the bus",
		}, []string{"type", "outcome"}),
	}
}
