// Package metrics tracks provider call latency and outcome per operation.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Window keeps the most recent latency samples of one operation in a ring.
type Window struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	calls   int64
	errors  int64
}

// NewWindow creates a window holding up to size samples.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 500
	}
	return &Window{samples: make([]time.Duration, size)}
}

// Observe records one call.
func (w *Window) Observe(d time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
	w.calls++
	if err != nil {
		w.errors++
	}
}

// Stats summarises the window.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := make([]time.Duration, n)
	copy(sorted, w.samples[:n])
	calls, errs := w.calls, w.errors
	w.mu.Unlock()

	st := Stats{Calls: calls, Errors: errs, Samples: n}
	if n == 0 {
		return st
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	st.Min = sorted[0]
	st.Max = sorted[n-1]
	st.Avg = sum / time.Duration(n)
	st.P50 = sorted[int(float64(n-1)*0.50)]
	st.P95 = sorted[int(float64(n-1)*0.95)]
	st.P99 = sorted[int(float64(n-1)*0.99)]
	return st
}

// Stats holds latency statistics for one operation.
type Stats struct {
	Calls   int64
	Errors  int64
	Samples int
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
}

// ToMap renders the stats with millisecond values for JSON responses.
func (s Stats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"calls":       s.Calls,
		"errors":      s.Errors,
		"sample_size": s.Samples,
		"min_ms":      ms(s.Min),
		"max_ms":      ms(s.Max),
		"avg_ms":      ms(s.Avg),
		"p50_ms":      ms(s.P50),
		"p95_ms":      ms(s.P95),
		"p99_ms":      ms(s.P99),
	}
}

// Registry holds one Window per operation name.
type Registry struct {
	mu      sync.RWMutex
	windows map[string]*Window
	size    int
}

// NewRegistry creates a registry whose windows hold size samples.
func NewRegistry(size int) *Registry {
	return &Registry{windows: make(map[string]*Window), size: size}
}

// Observe records a call for the named operation.
func (r *Registry) Observe(op string, d time.Duration, err error) {
	r.mu.RLock()
	w, ok := r.windows[op]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if w, ok = r.windows[op]; !ok {
			w = NewWindow(r.size)
			r.windows[op] = w
		}
		r.mu.Unlock()
	}
	w.Observe(d, err)
}

// Snapshot returns stats for every operation seen so far.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.windows))
	for op, w := range r.windows {
		out[op] = w.Stats()
	}
	return out
}
