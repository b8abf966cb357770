package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type LatencyStats struct {
	Series      string  `json:"series"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Series      []LatencyStats `json:"series"`
	Indicators  []Indicator    `json:"indicators,omitempty"`
}

// latencyWindow keeps the last maxSamples observations per series in a ring
// buffer, plus monotonically increasing indicator counts.
type latencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	series     map[string]*ring
	indicators map[string]int
}

type ring struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func (r *ring) add(v float64) {
	r.values[r.next] = v
	r.last = v
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.filled = true
	}
}

func (r *ring) sorted() []float64 {
	n := r.next
	if r.filled {
		n = len(r.values)
	}
	out := make([]float64, n)
	copy(out, r.values[:n])
	sort.Float64s(out)
	return out
}

func newLatencyWindow(maxSamples int) *latencyWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &latencyWindow{
		maxSamples: maxSamples,
		series:     make(map[string]*ring),
		indicators: make(map[string]int),
	}
}

func (w *latencyWindow) Observe(series string, ms float64) {
	if series == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.series[series]
	if !ok {
		r = &ring{values: make([]float64, w.maxSamples)}
		w.series[series] = r
	}
	r.add(ms)
}

func (w *latencyWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Series:      make([]LatencyStats, 0, len(w.series)),
	}
	for _, name := range sortedKeys(w.series) {
		samples := w.series[name].sorted()
		if len(samples) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		out.Series = append(out.Series, LatencyStats{
			Series:      name,
			Samples:     len(samples),
			LastMS:      round2(w.series[name].last),
			AvgMS:       round2(sum / float64(len(samples))),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: targetP95MS(name),
		})
	}
	for _, name := range sortedKeys(w.indicators) {
		if c := w.indicators[name]; c > 0 {
			out.Indicators = append(out.Indicators, Indicator{Name: name, Count: c})
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// targetP95MS is the latency budget for successful results per kind.
func targetP95MS(series string) float64 {
	switch series {
	case "reply/ok":
		return 2500
	case "speech/ok":
		return 4000
	case "avatar/ok":
		return 45000
	default:
		return 0
	}
}
