package inference

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned when a prediction is attempted while the
// handle holds no model.
var ErrModelUnavailable = errors.New("model unavailable")

// LoadError reports an artifact that could not be deserialized.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InferenceError wraps any failure raised by the artifact during prediction.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
