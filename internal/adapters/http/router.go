package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/anakena-lab/study-viewer/internal/config"
	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
	"github.com/anakena-lab/study-viewer/internal/observability/metrics"
)

const (
	serviceName      = "study-viewer-api"
	contentTypeDICOM = "application/dicom"
)

type Router struct {
	cfg     config.Config
	browser ports.StudyBrowser
	source  ports.InstanceSource
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	browser ports.StudyBrowser,
	source ports.InstanceSource,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:     cfg,
		browser: browser,
		source:  source,
		metrics: serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/findings", rt.listFindings)
	mux.HandleFunc("/studies", rt.listStudies)
	mux.HandleFunc("/studies/", rt.studiesSubtree)
	mux.HandleFunc("/dicoms/", rt.getDicom)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = corsMiddleware(rt.cfg.CORSAllowOrigin, handler)
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listFindings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	names, err := rt.browser.ListFindingNames(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// filterFromQuery reads the filter axes. Both are optional; unknown names
// and values are forwarded as-is and simply match nothing.
func filterFromQuery(r *http.Request) domain.StudyFilter {
	return domain.StudyFilter{
		FindingName:  strings.TrimSpace(r.URL.Query().Get("hallazgo")),
		FindingValue: strings.TrimSpace(r.URL.Query().Get("value")),
	}
}

func (rt *Router) listStudies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filter := filterFromQuery(r)
	page := intQueryParam(r, "page", 1)
	pageSize := intQueryParam(r, "page_size", rt.cfg.DefaultPageSize)

	studies, err := rt.browser.ListStudies(r.Context(), filter, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordBrowseRequest(serviceName, "studies", filter.FindingName != "", filter.FindingValue != "")
		rt.metrics.ObservePageRows(serviceName, len(studies))
	}
	writeJSON(w, http.StatusOK, studies)
}

func (rt *Router) countStudies(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	count, err := rt.browser.CountStudies(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordBrowseRequest(serviceName, "studies_count", filter.FindingName != "", filter.FindingValue != "")
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (rt *Router) studiesSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/studies/")
	switch {
	case rest == "count":
		rt.countStudies(w, r)
	case strings.HasSuffix(rest, "/dicoms"):
		studyUID := strings.TrimSuffix(rest, "/dicoms")
		if studyUID == "" || strings.Contains(studyUID, "/") {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		rt.listStudyDicoms(w, r, studyUID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) listStudyDicoms(w http.ResponseWriter, r *http.Request, studyUID string) {
	instances, err := rt.browser.ListInstances(r.Context(), studyUID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": instances})
}

// getDicom streams the stored object verbatim. The bytes on disk are the
// wire payload; interpretation is the viewer's job.
func (rt *Router) getDicom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sopUID := strings.TrimPrefix(r.URL.Path, "/dicoms/")
	if sopUID == "" || strings.Contains(sopUID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	rc, err := rt.source.OpenInstance(r.Context(), sopUID)
	if err != nil {
		if domain.IsKind(err, domain.ErrInstanceNotFound) && rt.metrics != nil {
			rt.metrics.RecordDicomNotFound(serviceName)
		}
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeDICOM)
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, rc)
	if err != nil {
		// Headers are gone; all we can do is log the broken stream.
		slog.WarnContext(r.Context(), "dicom_stream_interrupted", "sop_uid", sopUID, "bytes", n, "error", err)
	}
	if rt.metrics != nil {
		rt.metrics.RecordDicomBytes(serviceName, n)
	}
}

func intQueryParam(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request_failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
