package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	browseRequestsTotal *prometheus.CounterVec
	browsePageRows      *prometheus.HistogramVec
	dicomBytesTotal     *prometheus.CounterVec
	dicomNotFoundTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sva",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sva",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sva",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	browseRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sva",
			Subsystem: "browse",
			Name:      "requests_total",
			Help:      "Total successful browse requests by filter shape.",
		},
		[]string{"service", "endpoint", "filter"},
	)
	browsePageRows := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sva",
			Subsystem: "browse",
			Name:      "page_rows",
			Help:      "Distribution of rows returned per study page.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
		[]string{"service"},
	)
	dicomBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sva",
			Subsystem: "dicom",
			Name:      "bytes_streamed_total",
			Help:      "Total DICOM payload bytes streamed to clients.",
		},
		[]string{"service"},
	)
	dicomNotFoundTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sva",
			Subsystem: "dicom",
			Name:      "not_found_total",
			Help:      "Total DICOM retrievals for unknown SOP identifiers.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		browseRequestsTotal,
		browsePageRows,
		dicomBytesTotal,
		dicomNotFoundTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		browseRequestsTotal: browseRequestsTotal,
		browsePageRows:      browsePageRows,
		dicomBytesTotal:     dicomBytesTotal,
		dicomNotFoundTotal:  dicomNotFoundTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses identifier segments so label cardinality stays
// bounded by the route table, not the dataset.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/dicoms/"):
		return "/dicoms/{sop_id}"
	case strings.HasPrefix(path, "/studies/") && strings.HasSuffix(path, "/dicoms"):
		return "/studies/{study_id}/dicoms"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordBrowseRequest(service, endpoint string, nameFiltered, valueFiltered bool) {
	filter := "none"
	switch {
	case nameFiltered && valueFiltered:
		filter = "name_and_value"
	case nameFiltered:
		filter = "name"
	case valueFiltered:
		filter = "value"
	}
	m.browseRequestsTotal.WithLabelValues(service, endpoint, filter).Inc()
}

func (m *HTTPServerMetrics) ObservePageRows(service string, rows int) {
	m.browsePageRows.WithLabelValues(service).Observe(float64(rows))
}

func (m *HTTPServerMetrics) RecordDicomBytes(service string, n int64) {
	if n > 0 {
		m.dicomBytesTotal.WithLabelValues(service).Add(float64(n))
	}
}

func (m *HTTPServerMetrics) RecordDicomNotFound(service string) {
	m.dicomNotFoundTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
