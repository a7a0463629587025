// Package service orchestrates request validation, the model handle and the
// configuration store behind the HTTP surface.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/diagnosis-service/internal/audit"
	"github.com/SyedDaiam9101/diagnosis-service/internal/cache"
	"github.com/SyedDaiam9101/diagnosis-service/internal/configstore"
	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
	"github.com/SyedDaiam9101/diagnosis-service/internal/metrics"
	"github.com/SyedDaiam9101/diagnosis-service/internal/middleware"
	"github.com/SyedDaiam9101/diagnosis-service/internal/validation"
)

const tracerName = "github.com/SyedDaiam9101/diagnosis-service/internal/service"

// Status reports whether the model is loaded and which model it is.
type Status struct {
	Operational bool
	Model       string
}

// Recorder persists served predictions and model lifecycle events.
// *audit.Log satisfies it.
type Recorder interface {
	RecordPrediction(ctx context.Context, r audit.Record) error
	RecordModelEvent(ctx context.Context, model, event string) error
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables prediction caching.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRecorder enables the prediction audit trail.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithUnloadHook registers fn to run after the model is unloaded.
func WithUnloadHook(fn func()) Option {
	return func(s *Service) { s.unloadHooks = append(s.unloadHooks, fn) }
}

// Service owns the model handle and the configuration store.
type Service struct {
	handle      *inference.Handle
	store       *configstore.Store
	cache       cache.Cache
	recorder    Recorder
	logger      *zap.Logger
	tracer      trace.Tracer
	unloadHooks []func()
}

// New creates a Service around handle and store.
func New(handle *inference.Handle, store *configstore.Store, opts ...Option) *Service {
	s := &Service{
		handle: handle,
		store:  store,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if handle.IsPresent() {
		metrics.SetModelLoaded()
	} else {
		metrics.SetModelAbsent()
	}
	return s
}

// Status always succeeds.
func (s *Service) Status() Status {
	desc := s.handle.Descriptor()
	return Status{
		Operational: desc != "",
		Model:       desc,
	}
}

// PredictFromRequest validates raw, then runs it through the loaded model.
// Validation failures return *validation.Error and never reach the model; an
// absent model returns inference.ErrModelUnavailable; artifact faults return
// *inference.InferenceError.
func (s *Service) PredictFromRequest(ctx context.Context, raw []byte) (inference.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "PredictFromRequest")
	defer span.End()

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = "unknown"
	}

	vec, err := validation.Validate(raw)
	if err != nil {
		metrics.RecordPredictionError("validation")
		span.SetStatus(codes.Error, "validation failed")
		s.logger.Debug("rejected prediction request", zap.String("request_id", requestID), zap.Error(err))
		return inference.Prediction{}, err
	}

	model, fingerprint := s.handle.Identity()
	if model == "" {
		return inference.Prediction{}, s.fail(span, requestID, inference.ErrModelUnavailable)
	}
	span.SetAttributes(attribute.String("model", model))

	key := cache.Key(model, fingerprint, vec)
	if pred, ok := s.cached(ctx, requestID, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		s.succeed(ctx, requestID, model, pred, true)
		return pred, nil
	}

	inferStart := time.Now()
	pred, err := s.handle.Predict(ctx, vec)
	inferDuration := time.Since(inferStart)
	metrics.RecordInferenceLatency(inferDuration.Seconds())

	if err != nil {
		return inference.Prediction{}, s.fail(span, requestID, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, pred); err != nil {
			s.logger.Warn("cache store failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int("label", pred.Label))
	s.logger.Info("prediction served",
		zap.String("request_id", requestID),
		zap.String("model", model),
		zap.Int("label", pred.Label),
		zap.Float64("inference_ms", float64(inferDuration.Microseconds())/1000.0),
	)
	s.succeed(ctx, requestID, model, pred, false)

	return pred, nil
}

func (s *Service) cached(ctx context.Context, requestID, key string) (inference.Prediction, bool) {
	if s.cache == nil {
		return inference.Prediction{}, false
	}

	pred, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		s.logger.Warn("cache lookup failed", zap.String("request_id", requestID), zap.Error(err))
		return inference.Prediction{}, false
	case !ok:
		metrics.RecordCacheLookup("miss")
		return inference.Prediction{}, false
	}

	// The handle may have been unloaded since the descriptor was read.
	if !s.handle.IsPresent() {
		return inference.Prediction{}, false
	}

	metrics.RecordCacheLookup("hit")
	return pred, true
}

func (s *Service) succeed(ctx context.Context, requestID, model string, pred inference.Prediction, cached bool) {
	metrics.RecordPrediction(strconv.Itoa(pred.Label))

	if s.recorder == nil {
		return
	}
	err := s.recorder.RecordPrediction(ctx, audit.Record{
		RequestID:     requestID,
		Model:         model,
		Label:         pred.Label,
		Probabilities: pred.Probabilities,
		Cached:        cached,
	})
	if err != nil {
		s.logger.Warn("audit record failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *Service) fail(span trace.Span, requestID string, err error) error {
	kind := "inference"
	if errors.Is(err, inference.ErrModelUnavailable) {
		kind = "unavailable"
	}
	metrics.RecordPredictionError(kind)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	s.logger.Error("prediction failed", zap.String("request_id", requestID), zap.String("kind", kind), zap.Error(err))
	return err
}

// UnloadModel drops the model from memory. It is idempotent; once unloaded the
// model stays absent for the life of the process.
func (s *Service) UnloadModel(ctx context.Context) {
	model := s.handle.Descriptor()

	unloaded, err := s.handle.Unload()
	if err != nil {
		s.logger.Warn("model close reported an error", zap.String("model", model), zap.Error(err))
	}
	metrics.SetModelAbsent()

	if !unloaded {
		s.logger.Info("unload requested but no model is loaded")
		return
	}

	s.logger.Warn("model unloaded from memory", zap.String("model", model))
	for _, hook := range s.unloadHooks {
		hook()
	}

	if s.recorder != nil {
		if err := s.recorder.RecordModelEvent(ctx, model, audit.EventUnloaded); err != nil {
			s.logger.Warn("audit record failed", zap.Error(err))
		}
	}
}

// UpdateConfig replaces the configuration blob with any decoded JSON value and
// echoes the stored value. Nothing on the predict path reads the blob.
func (s *Service) UpdateConfig(blob any) any {
	stored := s.store.Update(blob)
	metrics.RecordConfigUpdate()
	s.logger.Info("configuration updated", zap.String("type", fmt.Sprintf("%T", stored)))
	return stored
}
