package inference

import (
	"context"
	"fmt"
	"sync"
)

// MockClassifier is a mock implementation of Classifier for testing.
// It returns a fixed distribution without requiring the ONNX shared library.
type MockClassifier struct {
	mu sync.Mutex

	// Probabilities is the distribution returned for every vector
	Probabilities []float64
	// ShouldError if true, Predict will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string
	// ShouldPanic if true, Predict panics instead of returning
	ShouldPanic bool
	// CallCount tracks the number of times Predict was called
	CallCount int
	// Closed is set once Close has been called
	Closed bool

	name string
}

// NewMock creates a new MockClassifier returning [0.3, 0.7] (label 1)
func NewMock() *MockClassifier {
	return NewMockWithProbabilities([]float64{0.3, 0.7})
}

// NewMockWithProbabilities creates a MockClassifier with a custom distribution
func NewMockWithProbabilities(probs []float64) *MockClassifier {
	return &MockClassifier{
		Probabilities: probs,
		name:          "mock",
	}
}

// Predict returns the argmax of Probabilities.
func (m *MockClassifier) Predict(ctx context.Context, v Vector) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++

	if m.ShouldPanic {
		panic("mock classifier panic")
	}

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return 0, fmt.Errorf("%s", m.ErrorMessage)
		}
		return 0, fmt.Errorf("mock inference error")
	}

	best := 0
	for i, p := range m.Probabilities {
		if p > m.Probabilities[best] {
			best = i
		}
	}
	return best, nil
}

// PredictProba returns a copy of Probabilities.
func (m *MockClassifier) PredictProba(ctx context.Context, v Vector) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]float64, len(m.Probabilities))
	copy(out, m.Probabilities)
	return out, nil
}

// Name returns "mock".
func (m *MockClassifier) Name() string {
	return m.name
}

// Fingerprint is derived from Probabilities, so mocks returning different
// distributions never share cached predictions.
func (m *MockClassifier) Fingerprint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fingerprint([]byte(fmt.Sprint(m.Probabilities)))
}

// Close marks the mock closed
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Calls returns CallCount under the lock.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// SetError configures the mock to return an error on Predict
func (m *MockClassifier) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = true
	m.ErrorMessage = msg
}

// ClearError clears any configured error
func (m *MockClassifier) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Ensure MockClassifier implements Classifier at compile time
var _ Classifier = (*MockClassifier)(nil)
