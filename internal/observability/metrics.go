package observability

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors shared across the service.
type Metrics struct {
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	errors           *prometheus.CounterVec
	syncRuns         *prometheus.CounterVec
	vendorsCreated   prometheus.Counter
	chatCalls        *prometheus.HistogramVec
	provisioningFail prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendor_desk_http_requests_total",
			Help: "Total count of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendor_desk_http_request_duration_seconds",
			Help:    "Histogram of request durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vendor_desk_http_inflight_requests",
			Help: "Number of requests currently being handled.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendor_desk_http_errors_total",
			Help: "Requests that ended with an error response, by error code.",
		}, []string{"method", "path", "code"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendor_desk_vendor_sync_runs_total",
			Help: "Vendor directory syncs by result.",
		}, []string{"result"}),
		vendorsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vendor_desk_vendors_created_total",
			Help: "Vendors created through sync or manual add.",
		}),
		chatCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendor_desk_chat_request_duration_seconds",
			Help:    "Latency of chat service requests by operation and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		provisioningFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vendor_desk_chat_provisioning_failures_total",
			Help: "Vendor chat identities that could not be created.",
		}),
	}

	reg.MustRegister(m.requests, m.duration, m.inFlight, m.errors, m.syncRuns,
		m.vendorsCreated, m.chatCalls, m.provisioningFail)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, sanitizePath(path), strconv.Itoa(status)}
	m.requests.WithLabelValues(labels...).Inc()
	m.duration.WithLabelValues(labels...).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, sanitizePath(path), code).Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RecordSync counts a sync run and the vendors it created.
func (m *Metrics) RecordSync(result string, created int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(result).Inc()
	m.vendorsCreated.Add(float64(created))
}

// RecordVendorCreated counts a manually added vendor.
func (m *Metrics) RecordVendorCreated() {
	if m == nil {
		return
	}
	m.vendorsCreated.Inc()
}

// RecordProvisioningFailure counts a vendor whose chat identity could not be created.
func (m *Metrics) RecordProvisioningFailure() {
	if m == nil {
		return
	}
	m.provisioningFail.Inc()
}

// ObserveChatCall records one chat service request.
func (m *Metrics) ObserveChatCall(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.chatCalls.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

// sanitizePath keeps label cardinality bounded by collapsing identifiers and
// trimming long paths.
func sanitizePath(p string) string {
	clean := path.Clean(p)
	if clean == "" || clean == "." {
		return "/"
	}

	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		if i > 0 && looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	if len(segments) > 6 {
		segments = append(segments[:6], "...")
	}

	res := strings.Join(segments, "/")
	if !strings.HasPrefix(res, "/") {
		res = "/" + res
	}
	return res
}

func looksLikeID(seg string) bool {
	if strings.HasPrefix(seg, "vendor_") || strings.HasPrefix(seg, "cust_") {
		return true
	}
	digits := 0
	for _, r := range seg {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return len(seg) >= 8 && digits*2 >= len(seg)
}
