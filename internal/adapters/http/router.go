package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"

	"github.com/outfitlab/outfit-relay/internal/config"
	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/core/ports"
)

const (
	mockHeader     = "X-Mock"
	maxRequestBody = 1 << 20
	serviceName    = "outfit-relay"
)

// MetricsRecorder is the slice of the metrics registry the router needs.
type MetricsRecorder interface {
	Handler() http.Handler
	Middleware(service string, next http.Handler) http.Handler
}

type Router struct {
	recommender ports.OutfitRecommender
	catalog     ports.CatalogReader
	metrics     MetricsRecorder
	assets      fs.FS
	validator   *requestValidator

	apiKey           string
	errorsAs200      bool
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
}

type recommendRequest struct {
	BaseProductID string              `json:"baseProductId"`
	Preferences   *domain.Preferences `json:"preferences"`
}

type errorResponse struct {
	Error string `json:"error"`
	Raw   any    `json:"raw,omitempty"`
}

func NewRouter(
	cfg config.Config,
	recommender ports.OutfitRecommender,
	catalog ports.CatalogReader,
) *Router {
	validator, err := newRequestValidator()
	if err != nil {
		panic(fmt.Sprintf("embedded openapi document is invalid: %v", err))
	}
	return &Router{
		recommender:      recommender,
		catalog:          catalog,
		validator:        validator,
		apiKey:           strings.TrimSpace(cfg.RelayAPIKey),
		errorsAs200:      cfg.APIErrorsAs200,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
	}
}

// WithMetrics exposes /metrics and records per-request metrics.
func (rt *Router) WithMetrics(m MetricsRecorder) *Router {
	rt.metrics = m
	return rt
}

// WithAssets serves the browser client from assets at /.
func (rt *Router) WithAssets(assets fs.FS) *Router {
	rt.assets = assets
	return rt
}

func (rt *Router) Handler() http.Handler {
	relay := func(h http.HandlerFunc) http.Handler {
		return rt.authMiddleware(rt.validator.middleware(rt, h))
	}

	api := http.NewServeMux()
	api.Handle("POST /api", relay(rt.recommend))
	api.Handle("POST /api/recommend", relay(rt.recommend))
	api.Handle("GET /api/products", relay(rt.listProducts))
	api.Handle("POST /api/catalog/reload", relay(rt.reloadCatalog))
	guarded := rateLimitMiddleware(
		backpressureMiddleware(api, rt.maxInFlight, rt.backpressureWait),
		rt.rateLimitRPS,
		rt.rateLimitBurst,
	)

	mux := http.NewServeMux()
	mux.Handle("POST /api", guarded)
	mux.Handle("POST /api/", guarded)
	mux.Handle("GET /api/", guarded)
	mux.HandleFunc("OPTIONS /api", preflight)
	mux.HandleFunc("OPTIONS /api/", preflight)
	mux.HandleFunc("GET /products.json", rt.listProducts)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	if rt.assets != nil {
		mux.Handle("GET /", http.FileServerFS(rt.assets))
	}

	var handler http.Handler = cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", "Authorization", mockHeader, requestIDHeader},
		ExposedHeaders:     []string{requestIDHeader},
		OptionsPassthrough: true,
		MaxAge:             600,
	})(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidRequest, "decode request", err))
		return
	}

	in := domain.OutfitRequest{
		BaseProductID: req.BaseProductID,
		Mock:          isMockRequested(r.Header.Get(mockHeader)),
		RequestID:     requestIDFromContext(r.Context()),
	}
	if req.Preferences != nil {
		in.Preferences = *req.Preferences
	}

	outfit, err := rt.recommender.Recommend(r.Context(), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outfit)
}

func (rt *Router) listProducts(w http.ResponseWriter, r *http.Request) {
	catalog, err := rt.catalog.Products(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if catalog == nil {
		catalog = domain.Catalog{}
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (rt *Router) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := rt.catalog.Reload(r.Context()); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError renders {"error", "raw"?}. With errors-as-200 enabled every failure answers 200.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := errorResponse{Error: err.Error()}
	if raw, ok := domain.RawOf(err); ok && !isEmptyRaw(raw) {
		body.Raw = raw
	}

	kind := domain.KindOf(err)
	recordFailure(r.Context(), kind, status)

	logAttrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"kind", kind,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", logAttrs...)
	} else {
		slog.Warn("request_failed", logAttrs...)
	}

	if rt.errorsAs200 {
		status = http.StatusOK
	}
	writeJSON(w, status, body)
}

func isEmptyRaw(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case json.RawMessage:
		return len(v) == 0
	default:
		return false
	}
}

func isMockRequested(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true":
		return true
	default:
		return false
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
