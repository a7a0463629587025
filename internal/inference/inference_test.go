package inference

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeros(n int) Vector {
	return make(Vector, n)
}

func TestMockClassifier_Predict(t *testing.T) {
	mock := NewMock()

	label, err := mock.Predict(context.Background(), zeros(30))
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	probs, err := mock.PredictProba(context.Background(), zeros(30))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.7}, probs)

	assert.Equal(t, 1, mock.Calls())
}

func TestMockClassifier_PredictError(t *testing.T) {
	mock := NewMock()
	mock.SetError("test error")

	_, err := mock.Predict(context.Background(), zeros(30))
	require.Error(t, err)
	assert.Equal(t, "test error", err.Error())

	mock.ClearError()
	_, err = mock.Predict(context.Background(), zeros(30))
	assert.NoError(t, err)
}

func TestForest_LoadAndPredict(t *testing.T) {
	f, err := LoadForest("testdata/forest.json")
	require.NoError(t, err)
	assert.Equal(t, "Cancer-RandomForest", f.Name())

	probs, err := f.PredictProba(context.Background(), zeros(30))
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)

	// Both trees route an all-zero vector to their benign-heavy leaf.
	want0 := (181.0/184.0 + 190.0/200.0) / 2
	assert.InDelta(t, want0, probs[0], 1e-9)

	label, err := f.Predict(context.Background(), zeros(30))
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestForest_PredictMalignant(t *testing.T) {
	f, err := LoadForest("testdata/forest.json")
	require.NoError(t, err)

	v := zeros(30)
	v[7] = 0.12
	v[22] = 160
	v[23] = 1500

	label, err := f.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestForest_WrongArity(t *testing.T) {
	f, err := LoadForest("testdata/forest.json")
	require.NoError(t, err)

	_, err = f.PredictProba(context.Background(), zeros(29))
	assert.Error(t, err)
}

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source func(t *testing.T) string
	}{
		{
			name:   "missing file",
			source: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") },
		},
		{
			name:   "corrupt json",
			source: func(t *testing.T) string { return writeArtifact(t, "{not json") },
		},
		{
			name: "incompatible version",
			source: func(t *testing.T) string {
				return writeArtifact(t, `{"format_version": 2, "n_features": 1, "classes": [0, 1],
					"trees": [{"nodes": [{"feature": -1, "value": [1, 1]}]}]}`)
			},
		},
		{
			name: "no trees",
			source: func(t *testing.T) string {
				return writeArtifact(t, `{"format_version": 1, "n_features": 1, "classes": [0, 1], "trees": []}`)
			},
		},
		{
			name: "child pointing backwards",
			source: func(t *testing.T) string {
				return writeArtifact(t, `{"format_version": 1, "n_features": 1, "classes": [0, 1],
					"trees": [{"nodes": [{"feature": 0, "threshold": 1, "left": 0, "right": 1},
					{"feature": -1, "value": [1, 0]}]}]}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.source(t), LoadOptions{})
			require.Error(t, err)
			assert.True(t, IsLoadError(err), "expected *LoadError, got %T", err)
		})
	}
}

func TestLoad_UnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.pkl")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := Load(path, LoadOptions{})
	assert.True(t, IsLoadError(err))
}

func TestLoad_ForestNameOverride(t *testing.T) {
	c, err := Load("testdata/forest.json", LoadOptions{Name: "rf-v2"})
	require.NoError(t, err)
	assert.Equal(t, "rf-v2", c.Name())
}

func TestLoad_Mock(t *testing.T) {
	c, err := Load("", LoadOptions{Format: FormatMock, Name: "Cancer-RandomForest"})
	require.NoError(t, err)
	assert.Equal(t, "Cancer-RandomForest", c.Name())
}

func TestRealInference_WithModel(t *testing.T) {
	// Skip if ONNX model or library is not available
	modelPath := "testdata/model.onnx"
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		t.Skip("Skipping real inference test: testdata/model.onnx not found")
	}

	// Try to create inference - will fail if ONNX library not installed
	c, err := NewONNX(modelPath, LoadOptions{})
	if err != nil {
		t.Skipf("Skipping real inference test: %v", err)
	}
	defer c.Close()
	defer ShutdownRuntime()

	probs, err := c.PredictProba(context.Background(), zeros(30))
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-5)

	label, err := c.Predict(context.Background(), zeros(30))
	require.NoError(t, err)
	assert.Contains(t, []int{0, 1}, label)
}

func TestForest_FingerprintFollowsContent(t *testing.T) {
	payload, err := os.ReadFile("testdata/forest.json")
	require.NoError(t, err)

	a, err := LoadForest(writeArtifact(t, string(payload)))
	require.NoError(t, err)
	same, err := LoadForest(writeArtifact(t, string(payload)))
	require.NoError(t, err)
	retrained, err := LoadForest(writeArtifact(t, strings.Replace(string(payload), "181", "180", 1)))
	require.NoError(t, err)

	assert.Equal(t, a.Name(), retrained.Name())
	assert.Len(t, a.Fingerprint(), 64)
	assert.Equal(t, a.Fingerprint(), same.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), retrained.Fingerprint())
}

func TestForest_ClassifyMatchesSeparateCalls(t *testing.T) {
	f, err := LoadForest("testdata/forest.json")
	require.NoError(t, err)

	v := zeros(30)
	v[22] = 160

	pred, err := f.Classify(context.Background(), v)
	require.NoError(t, err)
	label, err := f.Predict(context.Background(), v)
	require.NoError(t, err)
	probs, err := f.PredictProba(context.Background(), v)
	require.NoError(t, err)

	assert.Equal(t, label, pred.Label)
	assert.Equal(t, probs, pred.Probabilities)
}

func TestMockClassifier_FingerprintFollowsProbabilities(t *testing.T) {
	assert.Equal(t, NewMock().Fingerprint(), NewMock().Fingerprint())
	assert.NotEqual(t, NewMock().Fingerprint(), NewMockWithProbabilities([]float64{0.9, 0.1}).Fingerprint())
}
