package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/fwi-predictor/internal/artifact"
	"github.com/kjstillabower/fwi-predictor/internal/cache"
	"github.com/kjstillabower/fwi-predictor/internal/models"
)

type mockScaler struct {
	calls int
	err   error
}

func (m *mockScaler) Transform(v models.FeatureVector) (models.ScaledVector, error) {
	m.calls++
	if m.err != nil {
		return models.ScaledVector{}, m.err
	}
	return models.ScaledVector(v), nil
}

// sumModel predicts intercept + sum of the scaled features.
type sumModel struct {
	intercept float64
	err       error
}

func (m *sumModel) Predict(v models.ScaledVector) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	y := m.intercept
	for _, x := range v {
		y += x
	}
	return y, nil
}

type mockCache struct {
	data   map[string]float64
	getErr error
	setErr error
	sets   int
}

func (m *mockCache) Get(ctx context.Context, key string) (float64, bool, error) {
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string]float64)
	}
	m.data[key] = value
	return nil
}

var sample = models.FeatureVector{1, 2, 0, 0, 0, 0, 0, 0, 0}

func TestPredict_ComposesTransformAndPredict(t *testing.T) {
	svc := NewPredictionService(&mockScaler{}, &sumModel{intercept: 4}, "fp", nil, "", time.Minute)

	p, err := svc.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, 7.0, p.FWI)
	assert.Equal(t, models.RiskModerate, p.RiskLevel)
	assert.False(t, p.Cached)
}

func TestPredict_Deterministic(t *testing.T) {
	scaler, err := artifact.NewStandardScaler(
		[]float64{32, 62, 15, 0.7, 77, 14, 4.7, 0.5, 0.5},
		[]float64{3.6, 14.8, 2.8, 2.0, 14.3, 12.3, 4.1, 0.5, 0.5},
	)
	require.NoError(t, err)
	model, err := artifact.NewRidge([]float64{-0.01, -0.17, 0.03, -0.04, -0.8, 3.6, 4.7, 0.44, -0.4}, 7.05, 1)
	require.NoError(t, err)
	svc := NewPredictionService(scaler, model, "fp", nil, "", 0)

	v := models.FeatureVector{29, 57, 18, 0, 65.7, 3.4, 1.3, 0, 0}
	first, err := svc.Predict(context.Background(), v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := svc.Predict(context.Background(), v)
		require.NoError(t, err)
		assert.Equal(t, first.FWI, again.FWI)
	}
}

func TestPredict_CacheAside(t *testing.T) {
	scaler := &mockScaler{}
	c := &mockCache{}
	svc := NewPredictionService(scaler, &sumModel{}, "fp", c, "in_memory", time.Minute)

	first, err := svc.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, c.sets)

	second, err := svc.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.FWI, second.FWI)
	assert.Equal(t, 1, scaler.calls, "cache hit must not re-run inference")
}

func TestPredict_CacheKeyIncludesFingerprint(t *testing.T) {
	c := &mockCache{}
	a := NewPredictionService(&mockScaler{}, &sumModel{intercept: 1}, "pair-a", c, "in_memory", time.Minute)
	b := NewPredictionService(&mockScaler{}, &sumModel{intercept: 100}, "pair-b", c, "in_memory", time.Minute)

	pa, err := a.Predict(context.Background(), sample)
	require.NoError(t, err)
	pb, err := b.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, pb.Cached)
	assert.NotEqual(t, pa.FWI, pb.FWI)
}

func TestPredict_CacheErrorsDoNotFailRequest(t *testing.T) {
	c := &mockCache{getErr: errors.New("connection refused"), setErr: errors.New("timeout")}
	svc := NewPredictionService(&mockScaler{}, &sumModel{}, "fp", c, "memcached", time.Minute)

	p, err := svc.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.FWI)
}

func TestPredict_WithRealInMemoryCache(t *testing.T) {
	svc := NewPredictionService(&mockScaler{}, &sumModel{}, "fp", cache.NewInMemoryCache(8, time.Minute), "in_memory", time.Minute)

	_, err := svc.Predict(context.Background(), sample)
	require.NoError(t, err)
	p, err := svc.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, p.Cached)
}

func TestPredict_InferenceErrors(t *testing.T) {
	tests := []struct {
		name   string
		scaler *mockScaler
		model  *sumModel
	}{
		{"transform", &mockScaler{err: errors.New("boom")}, &sumModel{}},
		{"predict", &mockScaler{}, &sumModel{err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockCache{}
			svc := NewPredictionService(tt.scaler, tt.model, "fp", c, "in_memory", time.Minute)
			_, err := svc.Predict(context.Background(), sample)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInference)
			assert.Contains(t, err.Error(), tt.name)
			assert.Equal(t, 0, c.sets, "failed inference must not be cached")
		})
	}
}

func TestPredict_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewPredictionService(&mockScaler{}, &sumModel{}, "fp", nil, "", 0)

	_, err := svc.Predict(ctx, sample)
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingScaler holds every Transform until release is closed.
type blockingScaler struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingScaler) Transform(v models.FeatureVector) (models.ScaledVector, error) {
	b.calls.Add(1)
	<-b.release
	return models.ScaledVector(v), nil
}

func TestPredict_CoalescesConcurrentIdenticalRequests(t *testing.T) {
	scaler := &blockingScaler{release: make(chan struct{})}
	svc := NewPredictionService(scaler, &sumModel{}, "fp", nil, "", 0)

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan float64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Predict(context.Background(), sample)
			if err == nil {
				results <- p.FWI
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(scaler.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), scaler.calls.Load(), "identical in-flight predictions must share one inference")
	n := 0
	for fwi := range results {
		assert.Equal(t, 3.0, fwi)
		n++
	}
	assert.Equal(t, callers, n)
}

func TestPredict_CallerTimeoutDoesNotCancelSharedCall(t *testing.T) {
	scaler := &blockingScaler{release: make(chan struct{})}
	svc := NewPredictionService(scaler, &sumModel{}, "fp", nil, "", 0)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Predict(context.Background(), sample)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.Predict(ctx, sample)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(scaler.release)
	require.NoError(t, <-done)
}
