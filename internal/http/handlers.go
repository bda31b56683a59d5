package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/fwi-predictor/internal/lifecycle"
	"github.com/kjstillabower/fwi-predictor/internal/models"
	"github.com/kjstillabower/fwi-predictor/internal/observability"
	"github.com/kjstillabower/fwi-predictor/internal/traffic"
	"github.com/kjstillabower/fwi-predictor/internal/validation"
)

// maxBodyBytes bounds form and JSON bodies; nine numbers fit comfortably.
const maxBodyBytes = 64 << 10

// Predictor produces a prediction for a parsed feature vector.
type Predictor interface {
	Predict(ctx context.Context, v models.FeatureVector) (models.Prediction, error)
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	StartTime            time.Time
	ArtifactFingerprint  string
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	predictor        Predictor
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(predictor Predictor, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		predictor:    predictor,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetIndex handles GET /.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, "index.html", pageData{
		Title:  "Home",
		Fields: formFields(nil),
	})
}

// GetPredictForm handles GET /predictdata. Renders the empty form, no computation.
func (h *Handler) GetPredictForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, "home.html", pageData{
		Title:  "Predict",
		Fields: formFields(nil),
	})
}

// PostPredictData handles POST /predictdata.
func (h *Handler) PostPredictData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		traffic.Record(traffic.Invalid)
		observability.PredictionErrorsTotal.WithLabelValues("invalid_field").Inc()
		renderPage(w, r, http.StatusBadRequest, "home.html", pageData{
			Title:  "Predict",
			Error:  "The form could not be read. Please submit it again.",
			Fields: formFields(nil),
		})
		return
	}

	p, err := h.predictFrom(r.Context(), func() (models.FeatureVector, error) {
		return validation.ParseForm(r.PostForm)
	})
	if err != nil {
		status, message := classifyError(err)
		if status == http.StatusBadRequest {
			renderPage(w, r, status, "home.html", pageData{
				Title:  "Predict",
				Error:  message,
				Fields: formFields(r.PostForm),
			})
			return
		}
		renderErrorPage(w, r, status, message)
		return
	}

	renderPage(w, r, http.StatusOK, "home.html", pageData{
		Title:  "Result",
		Fields: formFields(r.PostForm),
		Result: newResultView(p),
	})
}

// PostAPIPredict handles POST /api/predict. Accepts a JSON object or a form body.
func (h *Handler) PostAPIPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	p, err := h.predictFrom(r.Context(), func() (models.FeatureVector, error) {
		if isJSON(r) {
			return validation.ParseJSON(r.Body)
		}
		if err := r.ParseForm(); err != nil {
			return models.FeatureVector{}, validation.ErrBadBody
		}
		return validation.ParseForm(r.PostForm)
	})
	if err != nil {
		status, message := classifyError(err)
		writeError(w, r, status, errorCode(status), message)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// predictFrom parses input with parse, runs the predictor, and records the traffic outcome.
func (h *Handler) predictFrom(ctx context.Context, parse func() (models.FeatureVector, error)) (models.Prediction, error) {
	logger := observability.LoggerFromContext(ctx)
	v, err := parse()
	if err != nil {
		traffic.Record(traffic.Invalid)
		observability.PredictionErrorsTotal.WithLabelValues("invalid_field").Inc()
		logger.Debug("invalid prediction input", zap.Error(err))
		return models.Prediction{}, err
	}
	p, err := h.predictor.Predict(ctx, v)
	if err != nil {
		traffic.Record(traffic.Error)
		observability.PredictionErrorsTotal.WithLabelValues("inference").Inc()
		logger.Error("prediction failed", zap.Error(err))
		return models.Prediction{}, err
	}
	traffic.Record(traffic.Success)
	return p, nil
}

// classifyError maps a prediction error to an HTTP status and a user-facing message.
func classifyError(err error) (int, string) {
	var fe *validation.FieldError
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest, fe.Error()
	case errors.Is(err, validation.ErrBadBody):
		return http.StatusBadRequest, "Request body must be a JSON object or form with the nine weather fields"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "The prediction timed out. Please try again."
	default:
		return http.StatusInternalServerError, "Unable to compute a prediction"
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_FIELD"
	case http.StatusServiceUnavailable:
		return "TIMEOUT"
	default:
		return "PREDICTION_FAILED"
	}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"artifacts": "healthy"}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "fwi-predictor",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if started, ok := lifecycle.ShutdownStartedAt(); ok {
		resp["drainingSeconds"] = int64(time.Since(started).Seconds())
	}
	if h.healthConfig != nil {
		if h.healthConfig.CachePing != nil {
			if h.healthConfig.CachePing() == nil {
				checks["cache"] = "healthy"
			} else {
				checks["cache"] = "unhealthy"
			}
		}
		if h.healthConfig.ArtifactFingerprint != "" {
			resp["artifacts"] = h.healthConfig.ArtifactFingerprint
		}
		if !h.healthConfig.StartTime.IsZero() {
			resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	// Overload: prediction traffic, denials included, exceeds the configured share of window capacity.
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}
