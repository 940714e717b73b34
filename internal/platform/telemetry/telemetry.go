// Package telemetry records HTTP and report metrics and serves them in the
// Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// histogram is a thread-safe histogram with fixed bucket boundaries. Bucket
// counts are non-cumulative in storage and made cumulative at export.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits, updated atomically
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{boundaries: boundaries, bucketCounts: make([]int64, len(boundaries))}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sum)) }

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// labeledHistograms holds one histogram per label set.
type labeledHistograms struct {
	mu         sync.RWMutex
	boundaries []float64
	items      map[string]*histogram
}

func newLabeledHistograms(boundaries []float64) *labeledHistograms {
	return &labeledHistograms{boundaries: boundaries, items: make(map[string]*histogram)}
}

func (s *labeledHistograms) get(key string) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.items[key]; !ok {
		h = newHistogram(s.boundaries)
		s.items[key] = h
	}
	return h
}

// sortedKeys returns label keys in a stable order for export.
func (s *labeledHistograms) sortedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabelsKey joins label values into a map key.
func LabelsKey(values ...string) string {
	return strings.Join(values, "|")
}

// Default histogram boundaries (seconds).
var defaultDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// PoolStatsFunc reports database pool connection counts.
type PoolStatsFunc func() (active, idle int64)

// Metrics holds all recorded metrics.
type Metrics struct {
	requests       *labeledHistograms // method|route|status
	reports        *labeledHistograms // report|outcome
	activeRequests int64
	poolStats      PoolStatsFunc
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: newLabeledHistograms(defaultDurationBuckets),
		reports:  newLabeledHistograms(defaultDurationBuckets),
	}
}

// SetPoolStats registers a source for database pool gauges.
func (m *Metrics) SetPoolStats(fn PoolStatsFunc) { m.poolStats = fn }

// ObserveReport records one report request.
func (m *Metrics) ObserveReport(report, outcome string, elapsed time.Duration) {
	m.reports.get(LabelsKey(report, outcome)).Observe(elapsed.Seconds())
}

// ReportCount returns how many report requests ended with outcome.
func (m *Metrics) ReportCount(report, outcome string) int64 {
	return m.reports.get(LabelsKey(report, outcome)).Count()
}

// RequestCount returns how many requests matched method, route and status.
func (m *Metrics) RequestCount(method, route string, status int) int64 {
	return m.requests.get(LabelsKey(method, route, strconv.Itoa(status))).Count()
}

// Middleware records request duration by method, route and status.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.activeRequests, 1)
			defer atomic.AddInt64(&m.activeRequests, -1)

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.get(LabelsKey(c.Request().Method, route, strconv.Itoa(status))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the metrics in Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeHistograms(&b, "http_server_request_duration_seconds",
			"Duration of HTTP requests in seconds.", m.requests, "method", "route", "status_code")

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&m.activeRequests))

		writeHistograms(&b, "analytics_report_duration_seconds",
			"Duration of report requests in seconds by outcome.", m.reports, "report", "outcome")

		if m.poolStats != nil {
			active, idle := m.poolStats()
			b.WriteString("# HELP db_pool_active_connections Number of active database pool connections.\n")
			b.WriteString("# TYPE db_pool_active_connections gauge\n")
			fmt.Fprintf(&b, "db_pool_active_connections %d\n\n", active)
			b.WriteString("# HELP db_pool_idle_connections Number of idle database pool connections.\n")
			b.WriteString("# TYPE db_pool_idle_connections gauge\n")
			fmt.Fprintf(&b, "db_pool_idle_connections %d\n\n", idle)
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeHistograms(b *strings.Builder, name, help string, store *labeledHistograms, labelNames ...string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	for _, key := range store.sortedKeys() {
		values := strings.Split(key, "|")
		if len(values) != len(labelNames) {
			continue
		}
		pairs := make([]string, len(values))
		for i, v := range values {
			pairs[i] = fmt.Sprintf("%s=%q", labelNames[i], v)
		}
		writeHistogram(b, name, strings.Join(pairs, ","), store.get(key))
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, h.Count())
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, h.Count())
}
