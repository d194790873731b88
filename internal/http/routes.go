package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/weathersense/weathersense/internal/observability"
)

// NewRouter assembles the dashboard's routes and middleware chain.
// Correlation IDs and metrics wrap everything; rate limiting and the request
// timeout apply only to the API routes that call upstreams.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)

	r.HandleFunc("/", h.GetIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))
	api.HandleFunc("/location/zip", h.PostLocationZip).Methods(http.MethodPost)
	api.HandleFunc("/location/device", h.PostLocationDevice).Methods(http.MethodPost)
	api.HandleFunc("/summary", h.PostSummary).Methods(http.MethodPost)
	api.HandleFunc("/chat", h.PostChat).Methods(http.MethodPost)
	api.HandleFunc("/gemini", h.PostGemini).Methods(http.MethodPost)

	return r
}
