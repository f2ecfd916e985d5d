package reporter

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TEENet-io/teleport-bridge/state"
)

const namespace = "bridge"

var _ state.EventSink = (*Metrics)(nil)

// Metrics counts committed bridge events and relayer submissions. Each
// instance has its own registry so that several reporters can coexist.
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	requests    *prometheus.CounterVec
	deposited   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	relayTip    prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Committed events by name",
			},
			[]string{"event"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Processed deposit requests by router and outcome",
			},
			[]string{"router", "outcome"},
		),
		deposited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deposited_sats_total",
				Help:      "Base-chain amount of processed deposits in satoshis",
			},
			[]string{"router"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_submissions_total",
				Help:      "Relayer submissions by route and status code",
			},
			[]string{"route", "code"},
		),
		relayTip: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_tip_height",
			Help:      "Highest base-chain header stored by the relay",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetRelayTip(height uint64) {
	m.relayTip.Set(float64(height))
}

func (m *Metrics) ObserveSubmission(route string, code int) {
	m.submissions.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// HandleEvents implements state.EventSink.
func (m *Metrics) HandleEvents(events []state.Event) {
	for _, ev := range events {
		m.events.WithLabelValues(ev.Name).Inc()

		var router, outcome string
		switch ev.Name {
		case "CCTransfer":
			router, outcome = "ccTransfer", "completed"
		case "CCExchange":
			router, outcome = "ccExchange", "exchanged"
		case "FailedCCExchange":
			router, outcome = "ccExchange", "fallback"
		case "RequestRejected":
			router, _ = ev.Fields["router"].(string)
			outcome = "rejected"
		default:
			continue
		}
		m.requests.WithLabelValues(router, outcome).Inc()

		if s, ok := ev.Fields["inputAmount"].(string); ok {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				m.deposited.WithLabelValues(router).Add(v)
			}
		}
	}
}
