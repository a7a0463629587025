package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Vector is a position-significant feature vector. Each index maps to a fixed
// feature from training; only arity and finiteness are checked before use.
type Vector []float64

// Prediction is the class label and the per-class probability distribution
// produced for a single vector.
type Prediction struct {
	Label         int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
}

// Classifier defines the capability set of a trained artifact.
// This abstraction allows for easy mocking in tests and swapping model families.
type Classifier interface {
	// Predict returns the class label for v.
	Predict(ctx context.Context, v Vector) (int, error)

	// PredictProba returns one probability per class, ordered by class index.
	PredictProba(ctx context.Context, v Vector) ([]float64, error)

	// Name describes the loaded artifact, e.g. "Cancer-RandomForest".
	Name() string

	// Fingerprint identifies the artifact's content. Two artifacts sharing a
	// Name but trained differently have different fingerprints.
	Fingerprint() string

	// Close releases any resources held by the artifact.
	Close() error
}

// SinglePass is implemented by classifiers that produce the label and the
// distribution from one evaluation. Handle prefers it over calling Predict and
// PredictProba separately.
type SinglePass interface {
	Classify(ctx context.Context, v Vector) (Prediction, error)
}

func fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func fileFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
