// Package cache memoizes predictions keyed by model artifact and feature vector.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
)

// Cache stores predictions. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (inference.Prediction, bool, error)
	Set(ctx context.Context, key string, pred inference.Prediction) error
	Close() error
}

// Key derives a cache key from the model descriptor, the artifact fingerprint
// and the exact bit pattern of every feature. The fingerprint keeps a
// retrained artifact deployed under the same name from reading entries
// written by its predecessor.
func Key(model, fingerprint string, v inference.Vector) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})

	var buf [8]byte
	for _, x := range v {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
