package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()

	if EventsProcessed == nil || RepliesSent == nil || ReplyErrors == nil {
		t.Fatal("event/reply counters not initialized")
	}
	if SedCorrections == nil || SedEditorDuration == nil || SedConversations == nil {
		t.Fatal("sed metrics not initialized")
	}
	if TransportUp == nil || PluginPanics == nil || ChanlogWriteFails == nil || URLFetches == nil {
		t.Fatal("runtime metrics not initialized")
	}

	// second call must not re-register (promauto would panic)
	Init()
}

func TestIncReplyCountsFailuresSeparately(t *testing.T) {
	Init()

	sent := testutil.ToFloat64(RepliesSent.WithLabelValues("notice"))
	failed := testutil.ToFloat64(ReplyErrors.WithLabelValues("notice"))

	IncReply("notice", nil)
	IncReply("notice", errors.New("broken pipe"))
	IncReply("notice", nil)

	if got := testutil.ToFloat64(RepliesSent.WithLabelValues("notice")) - sent; got != 2 {
		t.Errorf("replies sent delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ReplyErrors.WithLabelValues("notice")) - failed; got != 1 {
		t.Errorf("reply errors delta = %v, want 1", got)
	}
}

func TestSedOutcomeCounter(t *testing.T) {
	Init()

	outcomes := []string{"posted", "private", "too_long", "editor_error", "no_match"}
	for _, o := range outcomes {
		t.Run(o, func(t *testing.T) {
			before := testutil.ToFloat64(SedCorrections.WithLabelValues(o))
			IncSedOutcome(o)
			if got := testutil.ToFloat64(SedCorrections.WithLabelValues(o)); got != before+1 {
				t.Errorf("%s = %v, want %v", o, got, before+1)
			}
		})
	}
}

func TestGauges(t *testing.T) {
	Init()

	SetSedConversations(7)
	if got := testutil.ToFloat64(SedConversations); got != 7 {
		t.Errorf("sed conversations = %v, want 7", got)
	}

	SetTransportUp("irc", true)
	if got := testutil.ToFloat64(TransportUp.WithLabelValues("irc")); got != 1 {
		t.Errorf("transport up = %v, want 1", got)
	}
	SetTransportUp("irc", false)
	if got := testutil.ToFloat64(TransportUp.WithLabelValues("irc")); got != 0 {
		t.Errorf("transport up = %v, want 0", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || metric.Histogram.GetSampleCount() == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestTimeFuncNilObserver(t *testing.T) {
	ran := false
	TimeFunc(nil, func() { ran = true })
	if !ran {
		t.Error("TimeFunc with nil observer did not run fn")
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty) = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}

func TestURLFetchCounter(t *testing.T) {
	Init()

	before := testutil.ToFloat64(URLFetches.WithLabelValues("title"))
	IncURLFetch("title")
	IncURLFetch("title")
	if got := testutil.ToFloat64(URLFetches.WithLabelValues("title")) - before; got != 2 {
		t.Errorf("url fetches delta = %v, want 2", got)
	}
}
