package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/fwi-predictor/internal/observability"
)

// RouterConfig carries the per-route policies applied to the prediction endpoints.
type RouterConfig struct {
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter wires the page, API, health and metrics routes. Rate limiting and the request
// timeout apply to the POST prediction routes only.
func NewRouter(h *Handler, rc RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RecoverMiddleware)

	predictRouter := router.NewRoute().Subrouter()
	predictRouter.Use(RateLimitMiddleware(rc.Limiter))
	if rc.RequestTimeout > 0 {
		predictRouter.Use(TimeoutMiddleware(rc.RequestTimeout))
	}
	predictRouter.HandleFunc("/predictdata", h.PostPredictData).Methods(http.MethodPost)
	predictRouter.HandleFunc("/api/predict", h.PostAPIPredict).Methods(http.MethodPost)

	router.HandleFunc("/", h.GetIndex).Methods(http.MethodGet)
	router.HandleFunc("/predictdata", h.GetPredictForm).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())
	return router
}
