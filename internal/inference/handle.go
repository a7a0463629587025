package inference

import (
	"context"
	"fmt"
	"sync"
)

// Handle owns the loaded classifier and its two-state lifecycle (loaded, absent).
// Predict holds the read lock for the whole call, so Unload waits for in-flight
// predictions to drain before closing the artifact.
type Handle struct {
	mu    sync.RWMutex
	model Classifier
}

// NewHandle creates a Handle in the loaded state. A nil classifier yields an
// absent handle.
func NewHandle(c Classifier) *Handle {
	return &Handle{model: c}
}

// IsPresent reports whether a model is loaded.
func (h *Handle) IsPresent() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model != nil
}

// UnnamedModel describes a loaded artifact that declares no name.
const UnnamedModel = "unnamed"

// Descriptor returns the loaded model's name, or "" when absent.
func (h *Handle) Descriptor() string {
	name, _ := h.Identity()
	return name
}

// Identity returns the loaded model's name and content fingerprint as one
// consistent pair. Both are "" when absent.
func (h *Handle) Identity() (name, fingerprint string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.model == nil {
		return "", ""
	}
	name = h.model.Name()
	if name == "" {
		name = UnnamedModel
	}
	return name, h.model.Fingerprint()
}

// Predict runs the label and probability pass for v against the loaded model.
// It returns ErrModelUnavailable when absent and an *InferenceError when the
// artifact fails or panics.
func (h *Handle) Predict(ctx context.Context, v Vector) (Prediction, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.model == nil {
		return Prediction{}, ErrModelUnavailable
	}

	return safePredict(ctx, h.model, v)
}

// Load installs c as the current model, closing any model it replaces.
// It is used at startup; nothing on the request path calls it.
func (h *Handle) Load(c Classifier) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.model
	h.model = c
	if prev != nil {
		if err := prev.Close(); err != nil {
			return fmt.Errorf("failed to close replaced model: %w", err)
		}
	}
	return nil
}

// Unload transitions the handle to absent and releases the artifact.
// It is idempotent and reports whether a model was actually unloaded.
func (h *Handle) Unload() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.model == nil {
		return false, nil
	}

	err := h.model.Close()
	h.model = nil
	if err != nil {
		return true, fmt.Errorf("failed to close model: %w", err)
	}
	return true, nil
}

// Close unloads the model, discarding the unloaded flag.
func (h *Handle) Close() error {
	_, err := h.Unload()
	return err
}

func safePredict(ctx context.Context, c Classifier, v Vector) (pred Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = Prediction{}
			err = &InferenceError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if sp, ok := c.(SinglePass); ok {
		pred, err = sp.Classify(ctx, v)
		if err != nil {
			return Prediction{}, &InferenceError{Err: err}
		}
		return pred, nil
	}

	label, err := c.Predict(ctx, v)
	if err != nil {
		return Prediction{}, &InferenceError{Err: err}
	}

	probs, err := c.PredictProba(ctx, v)
	if err != nil {
		return Prediction{}, &InferenceError{Err: err}
	}

	return Prediction{Label: label, Probabilities: probs}, nil
}
