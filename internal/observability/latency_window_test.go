package observability

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.Observe("speech/ok", 500)
	w.Observe("speech/ok", 700)
	w.Observe("speech/ok", 900)
	w.ObserveIndicator("elevenlabs:provider_auth")
	w.ObserveIndicator("elevenlabs:provider_auth")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Series) != 1 {
		t.Fatalf("len(Series) = %d, want 1", len(snap.Series))
	}
	s := snap.Series[0]
	if s.Series != "speech/ok" || s.Samples != 3 {
		t.Fatalf("series = %+v", s)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 4000 {
		t.Fatalf("TargetP95MS = %.2f, want 4000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v", snap.Indicators)
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := newLatencyWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Observe("reply/ok", v)
	}
	s := w.Snapshot().Series[0]
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.AvgMS != 4 {
		t.Fatalf("AvgMS = %.2f, want 4", s.AvgMS)
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMetricsUseOwnRegistry(t *testing.T) {
	a := NewMetrics("solace", nil)
	b := NewMetrics("solace", nil)

	a.ObserveGeneration("speech", "fallback", 120*time.Millisecond)
	a.ObserveProviderError("elevenlabs", "provider_auth")
	a.ObserveSwept(3)
	a.ObserveSwept(0)

	out := scrape(t, a)
	for _, want := range []string{
		`solace_generation_results_total{kind="speech",status="fallback"} 1`,
		`solace_provider_errors_total{kind="provider_auth",provider="elevenlabs"} 1`,
		`solace_artifacts_swept_total 3`,
		`solace_generation_latency_ms_count{kind="speech"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(scrape(t, b), `status="fallback"`) {
		t.Fatalf("second registry observed the first one's results")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	buf.Reset()
	l = newLogger(&buf, "production", "warn")
	l.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
}
