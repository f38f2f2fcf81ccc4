// Package telemetry keeps in-process counters, gauges and request latency
// histograms and serves them in the Prometheus text exposition format.
package telemetry

import (
	"errors"
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

	"github.com/clinic/clinic/internal/platform/apperror"
)

// Request latency buckets, in seconds.
var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// histogram stores non-cumulative bucket counts; the exporter accumulates
// them.
type histogram struct {
	mu      sync.Mutex
	buckets []int64
	count   int64
	sum     uint64 // math.Float64bits
}

func newHistogram() *histogram {
	return &histogram{buckets: make([]int64, len(durationBuckets))}
}

func (h *histogram) observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sum)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&h.sum, old, next) {
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range durationBuckets {
		if v <= b {
			h.buckets[i]++
			return
		}
	}
}

func (h *histogram) cumulative() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.buckets))
	var running int64
	for i, c := range h.buckets {
		running += c
		out[i] = running
	}
	return out
}

type counterDef struct {
	help   string
	labels []string
}

type gaugeDef struct {
	help string
	read func() int64
}

// Registry holds every metric the server exports. The zero value is not
// usable; call NewRegistry.
type Registry struct {
	mu         sync.RWMutex
	requests   map[string]*histogram // method|route|status
	counterDef map[string]counterDef
	counters   map[string]*int64 // name|v1|v2...
	gauges     map[string]gaugeDef
	active     int64
}

func NewRegistry() *Registry {
	return &Registry{
		requests:   make(map[string]*histogram),
		counterDef: make(map[string]counterDef),
		counters:   make(map[string]*int64),
		gauges:     make(map[string]gaugeDef),
	}
}

// RegisterCounter declares a counter and the names of its labels. Inc on an
// undeclared counter panics.
func (r *Registry) RegisterCounter(name, help string, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterDef[name] = counterDef{help: help, labels: labels}
}

// RegisterGauge declares a gauge whose value is read at scrape time.
func (r *Registry) RegisterGauge(name, help string, read func() int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = gaugeDef{help: help, read: read}
}

func counterKey(name string, values []string) string {
	return name + "|" + strings.Join(values, "|")
}

// Inc adds one to the counter series identified by the label values, which
// must be given in registration order.
func (r *Registry) Inc(name string, values ...string) {
	key := counterKey(name, values)

	r.mu.RLock()
	def, declared := r.counterDef[name]
	p, ok := r.counters[key]
	r.mu.RUnlock()
	if !declared {
		panic(fmt.Sprintf("telemetry: counter %q is not registered", name))
	}
	if len(values) != len(def.labels) {
		panic(fmt.Sprintf("telemetry: counter %q takes %d labels, got %d", name, len(def.labels), len(values)))
	}
	if ok {
		atomic.AddInt64(p, 1)
		return
	}

	r.mu.Lock()
	p, ok = r.counters[key]
	if !ok {
		p = new(int64)
		r.counters[key] = p
	}
	r.mu.Unlock()
	atomic.AddInt64(p, 1)
}

// Counter returns the current value of one counter series.
func (r *Registry) Counter(name string, values ...string) int64 {
	r.mu.RLock()
	p, ok := r.counters[counterKey(name, values)]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (r *Registry) requestHistogram(key string) *histogram {
	r.mu.RLock()
	h, ok := r.requests[key]
	r.mu.RUnlock()
	if ok {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.requests[key]; !ok {
		h = newHistogram()
		r.requests[key] = h
	}
	return h
}

// Middleware times every request by method, route pattern and status.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&r.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&r.active, -1)
			status := c.Response().Status
			if err != nil {
				// The error handler has not run yet, so the response still
				// carries the default status.
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = apperror.HTTPStatus(apperror.KindOf(err))
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			key := c.Request().Method + "|" + route + "|" + strconv.Itoa(status)
			r.requestHistogram(key).observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry at /metrics.
func (r *Registry) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder
		r.write(&b)
		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func (r *Registry) write(b *strings.Builder) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
	b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
	for _, key := range sortedKeys(r.requests) {
		parts := strings.SplitN(key, "|", 3)
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
		writeHistogram(b, "http_server_request_duration_seconds", labels, r.requests[key])
	}

	b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
	b.WriteString("# TYPE http_server_active_requests gauge\n")
	fmt.Fprintf(b, "http_server_active_requests %d\n", atomic.LoadInt64(&r.active))

	for _, name := range sortedKeys(r.counterDef) {
		def := r.counterDef[name]
		fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n", name, def.help, name)
		for _, key := range sortedKeys(r.counters) {
			values := strings.Split(key, "|")
			if values[0] != name {
				continue
			}
			fmt.Fprintf(b, "%s%s %d\n", name, labelSet(def.labels, values[1:]), atomic.LoadInt64(r.counters[key]))
		}
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, g.help, name, name, g.read())
	}
}

func labelSet(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	pairs := make([]string, len(names))
	for i, n := range names {
		pairs[i] = fmt.Sprintf("%s=%q", n, values[i])
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulative()
	for i, le := range durationBuckets {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, le, cum[i])
	}
	total := atomic.LoadInt64(&h.count)
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, math.Float64frombits(atomic.LoadUint64(&h.sum)))
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
