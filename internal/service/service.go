package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/fwi-predictor/internal/artifact"
	"github.com/kjstillabower/fwi-predictor/internal/cache"
	"github.com/kjstillabower/fwi-predictor/internal/models"
	"github.com/kjstillabower/fwi-predictor/internal/observability"
)

// ErrInference is returned when the scaler or model fails on a parsed vector.
var ErrInference = errors.New("inference failed")

// PredictionService runs transform then predict over the loaded artifacts, with a
// cache-aside lookup in front.
type PredictionService struct {
	scaler      artifact.Scaler
	model       artifact.Model
	fingerprint string
	cache       cache.Cache
	cacheLabel  string
	ttl         time.Duration
	group       singleflight.Group
}

// NewPredictionService creates a PredictionService. fingerprint identifies the artifact pair
// in cache keys; cacheLabel is the backend name used in metrics. A nil cache disables caching.
func NewPredictionService(scaler artifact.Scaler, model artifact.Model, fingerprint string, c cache.Cache, cacheLabel string, ttl time.Duration) *PredictionService {
	if c == nil {
		c = cache.NopCache{}
		cacheLabel = "none"
	}
	return &PredictionService{
		scaler:      scaler,
		model:       model,
		fingerprint: fingerprint,
		cache:       c,
		cacheLabel:  cacheLabel,
		ttl:         ttl,
	}
}

// Predict returns the FWI prediction and risk band for v. Concurrent calls for the same
// vector share one cache lookup and inference.
func (s *PredictionService) Predict(ctx context.Context, v models.FeatureVector) (models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}
	key := cache.Key(s.fingerprint, v)
	// The shared call must not be cancelled by whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.lookupOrInfer(shared, key, v)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.Prediction{}, res.Err
		}
		p := res.Val.(models.Prediction)
		observability.RecordPrediction(string(p.RiskLevel), p.FWI)
		observability.LoggerFromContext(ctx).Debug("prediction served",
			zap.Float64("fwi", p.FWI),
			zap.String("risk_level", string(p.RiskLevel)),
			zap.Bool("cached", p.Cached),
			zap.Bool("shared", res.Shared))
		return p, nil
	case <-ctx.Done():
		return models.Prediction{}, ctx.Err()
	}
}

// lookupOrInfer is the cache-aside path: cache hit, else inference and a cache fill.
// Cache failures are logged and never fail the prediction.
func (s *PredictionService) lookupOrInfer(ctx context.Context, key string, v models.FeatureVector) (models.Prediction, error) {
	logger := observability.LoggerFromContext(ctx)

	if s.cacheLabel != "none" {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("cache get failed", zap.Error(err))
		case ok:
			observability.CacheRequestsTotal.WithLabelValues(s.cacheLabel, "hit").Inc()
			p := models.NewPrediction(cached)
			p.Cached = true
			return p, nil
		default:
			observability.CacheRequestsTotal.WithLabelValues(s.cacheLabel, "miss").Inc()
		}
	}

	fwi, err := s.infer(v)
	if err != nil {
		return models.Prediction{}, err
	}

	if s.cacheLabel != "none" {
		if err := s.cache.Set(ctx, key, fwi, s.ttl); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("cache set failed", zap.Error(err))
		}
	}
	return models.NewPrediction(fwi), nil
}

// infer runs the scaler and the model. The first (only) output is the prediction.
func (s *PredictionService) infer(v models.FeatureVector) (float64, error) {
	start := time.Now()
	scaled, err := s.scaler.Transform(v)
	if err != nil {
		return 0, fmt.Errorf("%w: transform: %v", ErrInference, err)
	}
	fwi, err := s.model.Predict(scaled)
	if err != nil {
		return 0, fmt.Errorf("%w: predict: %v", ErrInference, err)
	}
	observability.InferenceDuration.Observe(time.Since(start).Seconds())
	return fwi, nil
}
