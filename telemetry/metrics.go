// Package telemetry provides Prometheus metrics, OpenTelemetry tracing and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsProcessed   *prometheus.CounterVec // label: kind
	RepliesSent       *prometheus.CounterVec // label: kind
	ReplyErrors       *prometheus.CounterVec // label: kind
	PluginPanics      *prometheus.CounterVec // label: plugin
	SedCorrections    *prometheus.CounterVec // label: outcome
	URLFetches        *prometheus.CounterVec // label: outcome
	ChanlogWriteFails prometheus.Counter

	// Histograms (seconds)
	SedEditorDuration prometheus.Observer

	// Gauges
	SedConversations prometheus.Gauge
	TransportUp      *prometheus.GaugeVec // label: transport; 1=connected,0=down
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "cappuccino_events_processed_total", Help: "Inbound chat events handled by the router"}, []string{"kind"})
		RepliesSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "cappuccino_replies_total", Help: "Replies delivered to a transport"}, []string{"kind"})
		ReplyErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "cappuccino_reply_errors_total", Help: "Replies a transport failed to send"}, []string{"kind"})
		PluginPanics = promauto.NewCounterVec(prometheus.CounterOpts{Name: "cappuccino_plugin_panics_total", Help: "Recovered plugin panics"}, []string{"plugin"})
		SedCorrections = promauto.NewCounterVec(prometheus.CounterOpts{Name: "cappuccino_sed_corrections_total", Help: "Correction commands by outcome"}, []string{"outcome"})
		URLFetches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "cappuccino_url_fetches_total", Help: "Linked pages fetched by the urlinfo plugin, by outcome"}, []string{"outcome"})
		ChanlogWriteFails = promauto.NewCounter(prometheus.CounterOpts{Name: "cappuccino_chanlog_write_failures_total", Help: "Channel log rows that could not be stored"})
		SedEditorDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "cappuccino_sed_editor_duration_seconds", Help: "Wall time of a single sed invocation", Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}})
		SedConversations = promauto.NewGauge(prometheus.GaugeOpts{Name: "cappuccino_sed_conversations", Help: "Conversations with correction history in memory"})
		TransportUp = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "cappuccino_transport_up", Help: "Transport connected=1 disconnected=0"}, []string{"transport"})
	})
}

// IncEvent counts a processed inbound event.
func IncEvent(kind string) {
	if EventsProcessed != nil {
		EventsProcessed.WithLabelValues(kind).Inc()
	}
}

// IncReply counts a delivered reply, or a failed one when err is non-nil.
func IncReply(kind string, err error) {
	if err != nil {
		if ReplyErrors != nil {
			ReplyErrors.WithLabelValues(kind).Inc()
		}
		return
	}
	if RepliesSent != nil {
		RepliesSent.WithLabelValues(kind).Inc()
	}
}

// IncPluginPanic counts a recovered panic in the named plugin.
func IncPluginPanic(plugin string) {
	if PluginPanics != nil {
		PluginPanics.WithLabelValues(plugin).Inc()
	}
}

// IncSedOutcome counts a finished correction command.
func IncSedOutcome(outcome string) {
	if SedCorrections != nil {
		SedCorrections.WithLabelValues(outcome).Inc()
	}
}

// IncURLFetch counts a linked page lookup.
func IncURLFetch(outcome string) {
	if URLFetches != nil {
		URLFetches.WithLabelValues(outcome).Inc()
	}
}

// IncChanlogFailure counts a failed channel log write.
func IncChanlogFailure() {
	if ChanlogWriteFails != nil {
		ChanlogWriteFails.Inc()
	}
}

// SetSedConversations records how many conversations have correction history.
func SetSedConversations(n int) {
	if SedConversations != nil {
		SedConversations.Set(float64(n))
	}
}

// SetTransportUp flips the connection gauge for a transport.
func SetTransportUp(transport string, up bool) {
	if TransportUp == nil {
		return
	}
	if up {
		TransportUp.WithLabelValues(transport).Set(1)
	} else {
		TransportUp.WithLabelValues(transport).Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
