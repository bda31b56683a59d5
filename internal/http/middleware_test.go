package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/fwi-predictor/internal/observability"
	"github.com/kjstillabower/fwi-predictor/internal/traffic"
)

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	router := NewRouter(NewHandler(&mockPredictor{fwi: 1}, nil, zap.NewNop()), RouterConfig{}, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, postForm("/predictdata", validForm()))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	var gotID string
	var gotLogger *zap.Logger
	core, logs := observer.New(zap.DebugLevel)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		gotID = observability.CorrelationIDFromContext(r.Context())
		gotLogger = observability.LoggerFromContext(r.Context())
		gotLogger.Info("inside")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if gotID != "client-provided-id" {
		t.Errorf("context correlation ID = %q, want client-provided-id", gotID)
	}
	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["correlation_id"] != "client-provided-id" {
		t.Errorf("request logger missing correlation_id field")
	}
}

func TestMiddleware_TimeoutReturns503(t *testing.T) {
	handler := NewHandler(&mockPredictor{block: true}, nil, zap.NewNop())
	router := NewRouter(handler, RouterConfig{RequestTimeout: 20 * time.Millisecond}, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, postForm("/predictdata", validForm()))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d (timeout should cancel the prediction)", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	handler := NewHandler(&mockPredictor{fwi: 1}, nil, zap.NewNop())
	router := NewRouter(handler, RouterConfig{Limiter: rate.NewLimiter(1, 2)}, zap.NewNop())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, postForm("/predictdata", validForm()))

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: status = %d, want 429", i, w.Code)
		}
		var errResp struct {
			Error struct {
				Code      string `json:"code"`
				Message   string `json:"message"`
				RequestID string `json:"requestId"`
			} `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
			t.Fatalf("decode 429 response: %v", err)
		}
		if errResp.Error.Code != "RATE_LIMITED" {
			t.Errorf("error.code = %q, want RATE_LIMITED", errResp.Error.Code)
		}
		if errResp.Error.RequestID == "" {
			t.Error("error.requestId is empty")
		}
	}
	if got := traffic.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
}

func TestRateLimitMiddleware_OnlyPredictionRoutes(t *testing.T) {
	handler := NewHandler(&mockPredictor{fwi: 1}, nil, zap.NewNop())
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	router := NewRouter(handler, RouterConfig{Limiter: limiter}, zap.NewNop())

	for _, path := range []string{"/", "/predictdata", "/health", "/", "/predictdata", "/health"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200 (not rate limited)", path, w.Code)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	handler := NewHandler(&mockPredictor{fwi: 1}, nil, zap.NewNop())
	router := NewRouter(handler, RouterConfig{Limiter: nil}, zap.NewNop())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, postForm("/api/predict", validForm()))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 (nil limiter should allow)", i, w.Code)
		}
	}
}

func TestRecoverMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.Use(RecoverMiddleware)
	router.HandleFunc("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("panic value leaked to the page")
	}
	if logs.FilterMessage("handler panic").Len() != 1 {
		t.Error("panic not logged")
	}
}

func TestRouter_MethodAndNotFound(t *testing.T) {
	router := NewRouter(NewHandler(&mockPredictor{}, nil, zap.NewNop()), RouterConfig{}, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /: status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /nope: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMiddleware_MetricsRoute(t *testing.T) {
	router := NewRouter(NewHandler(&mockPredictor{}, nil, zap.NewNop()), RouterConfig{}, zap.NewNop())
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `httpRequestsTotal{method="GET",route="/",statusCode="2xx"}`) {
		t.Error("metrics output missing httpRequestsTotal for GET /")
	}
}

func TestGetRoute(t *testing.T) {
	tests := map[string]string{
		"/":              "/",
		"/predictdata":   "/predictdata",
		"/api/predict":   "/api/predict",
		"/health":        "/health",
		"/metrics":       "/metrics",
		"/favicon.ico":   "other",
		"/predictdata/x": "other",
	}
	for path, want := range tests {
		if got := getRoute(httptest.NewRequest(http.MethodGet, path, nil)); got != want {
			t.Errorf("getRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestStatusRecorder_FirstWriteWins(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200 after implicit header", rec.statusCode)
	}
	if got := statusCodeString(http.StatusTooManyRequests); got != "4xx" {
		t.Errorf("statusCodeString(429) = %q, want 4xx", got)
	}
}
