package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/diagnosis-service/internal/audit"
	"github.com/SyedDaiam9101/diagnosis-service/internal/cache"
	"github.com/SyedDaiam9101/diagnosis-service/internal/configstore"
	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
	"github.com/SyedDaiam9101/diagnosis-service/internal/middleware"
	"github.com/SyedDaiam9101/diagnosis-service/internal/validation"
)

type fakeRecorder struct {
	mu          sync.Mutex
	predictions []audit.Record
	events      []string
}

func (f *fakeRecorder) RecordPrediction(_ context.Context, r audit.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predictions = append(f.predictions, r)
	return nil
}

func (f *fakeRecorder) RecordModelEvent(_ context.Context, model, event string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, model+":"+event)
	return nil
}

func body(n int, elem string) []byte {
	elems := make([]string, n)
	for i := range elems {
		elems[i] = elem
	}
	return []byte(fmt.Sprintf(`{"features": [%s]}`, strings.Join(elems, ",")))
}

func newService(t *testing.T, c inference.Classifier, opts ...Option) *Service {
	t.Helper()
	return New(inference.NewHandle(c), configstore.New(), opts...)
}

func TestPredictFromRequest_Valid(t *testing.T) {
	forest, err := inference.LoadForest("../inference/testdata/forest.json")
	require.NoError(t, err)
	s := newService(t, forest)

	pred, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "0.0"))
	require.NoError(t, err)

	assert.Contains(t, []int{0, 1}, pred.Label)
	require.Len(t, pred.Probabilities, 2)
	assert.InDelta(t, 1.0, pred.Probabilities[0]+pred.Probabilities[1], 1e-9)
}

func TestPredictFromRequest_InvalidNeverReachesModel(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"missing features", []byte(`{"x": 1}`)},
		{"short", body(29, "0.0")},
		{"long", body(31, "0.0")},
		{"non numeric", body(validation.FeatureCount, `"a"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := inference.NewMock()
			s := newService(t, mock)

			_, err := s.PredictFromRequest(context.Background(), tt.raw)
			var ve *validation.Error
			require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
			assert.Equal(t, 0, mock.Calls())
		})
	}
}

func TestPredictFromRequest_ValidationBeforeAvailability(t *testing.T) {
	s := newService(t, inference.NewMock())
	s.UnloadModel(context.Background())

	_, err := s.PredictFromRequest(context.Background(), body(29, "0.0"))
	var ve *validation.Error
	assert.True(t, errors.As(err, &ve))
}

func TestUnloadModel(t *testing.T) {
	mock := inference.NewMock()
	rec := &fakeRecorder{}
	hookCalls := 0
	s := newService(t, mock, WithRecorder(rec), WithUnloadHook(func() { hookCalls++ }))

	require.True(t, s.Status().Operational)
	assert.Equal(t, "mock", s.Status().Model)

	s.UnloadModel(context.Background())
	s.UnloadModel(context.Background())

	st := s.Status()
	assert.False(t, st.Operational)
	assert.Equal(t, "", st.Model)
	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, []string{"mock:unloaded"}, rec.events)

	_, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "0.0"))
	assert.ErrorIs(t, err, inference.ErrModelUnavailable)
	assert.Equal(t, 0, mock.Calls())
}

func TestPredictFromRequest_InferenceFault(t *testing.T) {
	mock := inference.NewMock()
	mock.SetError("could not broadcast input array")
	s := newService(t, mock)

	_, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "1.0"))

	var ie *inference.InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "could not broadcast input array")
	assert.True(t, s.Status().Operational)
}

func TestPredictFromRequest_PanicIsContained(t *testing.T) {
	mock := inference.NewMock()
	mock.ShouldPanic = true
	s := newService(t, mock)

	_, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "1.0"))
	var ie *inference.InferenceError
	assert.True(t, errors.As(err, &ie))
}

func TestPredictFromRequest_CacheHit(t *testing.T) {
	mock := inference.NewMock()
	rec := &fakeRecorder{}
	s := newService(t, mock, WithCache(cache.NewLRU(16, 0)), WithRecorder(rec))

	ctx := middleware.WithRequestID(context.Background(), "req-1")
	first, err := s.PredictFromRequest(ctx, body(validation.FeatureCount, "2.5"))
	require.NoError(t, err)
	second, err := s.PredictFromRequest(ctx, body(validation.FeatureCount, "2.5"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.Calls())

	require.Len(t, rec.predictions, 2)
	assert.Equal(t, "req-1", rec.predictions[0].RequestID)
	assert.False(t, rec.predictions[0].Cached)
	assert.True(t, rec.predictions[1].Cached)
}

func TestPredictFromRequest_CacheIsScopedToArtifact(t *testing.T) {
	shared := cache.NewLRU(16, 0)

	previous := inference.NewMockWithProbabilities([]float64{0.9, 0.1})
	_, err := newService(t, previous, WithCache(shared)).PredictFromRequest(context.Background(), body(validation.FeatureCount, "2.5"))
	require.NoError(t, err)

	// Same descriptor, different weights.
	retrained := inference.NewMockWithProbabilities([]float64{0.2, 0.8})
	require.Equal(t, previous.Name(), retrained.Name())

	pred, err := newService(t, retrained, WithCache(shared)).PredictFromRequest(context.Background(), body(validation.FeatureCount, "2.5"))
	require.NoError(t, err)

	assert.Equal(t, 1, pred.Label)
	assert.Equal(t, []float64{0.2, 0.8}, pred.Probabilities)
	assert.Equal(t, 1, retrained.Calls())
	assert.Equal(t, 2, shared.Len())
}

func TestPredictFromRequest_CacheIgnoredAfterUnload(t *testing.T) {
	s := newService(t, inference.NewMock(), WithCache(cache.NewLRU(16, 0)))

	_, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "2.5"))
	require.NoError(t, err)

	s.UnloadModel(context.Background())

	_, err = s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "2.5"))
	assert.ErrorIs(t, err, inference.ErrModelUnavailable)
}

func TestUpdateConfig(t *testing.T) {
	s := newService(t, inference.NewMock())

	blob := map[string]any{"threshold": 0.42}
	first := s.UpdateConfig(blob)
	second := s.UpdateConfig(blob)
	assert.Equal(t, blob, first)
	assert.Equal(t, first, second)

	assert.Equal(t, map[string]any{}, s.UpdateConfig(map[string]any{}))
	assert.Equal(t, []any{1.0, 2.0}, s.UpdateConfig([]any{1.0, 2.0}))
	assert.Nil(t, s.UpdateConfig(nil))
}

func TestUpdateConfig_ThresholdDoesNotAffectPrediction(t *testing.T) {
	s := newService(t, inference.NewMock())

	before, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "0"))
	require.NoError(t, err)

	s.UpdateConfig(map[string]any{"threshold": 0.99})

	after, err := s.PredictFromRequest(context.Background(), body(validation.FeatureCount, "0"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
