package inference

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX wraps an ONNX runtime session for thread-safe inference.
// The graph is expected to be a sklearn export with zipmap disabled: one float
// input of shape [1, features], an int64 label output of shape [1] and a float
// probability output of shape [1, classes].
type ONNX struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	name       string
	digest     string
	features   int64
	numClasses int64
}

// NewONNX creates a new ONNX classifier by loading the model from modelPath
func NewONNX(modelPath string, opts LoadOptions) (*ONNX, error) {
	opts = opts.withDefaults()

	if opts.SharedLibrary != "" {
		ort.SetSharedLibraryPath(opts.SharedLibrary)
	}

	// Initialize the ONNX runtime environment
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	digest, err := fileFingerprint(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{opts.InputName},
		[]string{opts.LabelOutput, opts.ProbaOutput},
		nil, // Use default session options
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNX{
		session:    session,
		name:       opts.Name,
		digest:     digest,
		features:   int64(opts.NumFeatures),
		numClasses: int64(opts.NumClasses),
	}, nil
}

// Predict returns the label emitted by the graph's label output.
func (o *ONNX) Predict(ctx context.Context, v Vector) (int, error) {
	label, _, err := o.run(v)
	if err != nil {
		return 0, err
	}
	return label, nil
}

// PredictProba returns the graph's probability output for v.
func (o *ONNX) PredictProba(ctx context.Context, v Vector) ([]float64, error) {
	_, probs, err := o.run(v)
	if err != nil {
		return nil, err
	}
	return probs, nil
}

// Classify evaluates the graph once and returns both outputs.
func (o *ONNX) Classify(ctx context.Context, v Vector) (Prediction, error) {
	label, probs, err := o.run(v)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: label, Probabilities: probs}, nil
}

func (o *ONNX) run(v Vector) (int, []float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return 0, nil, fmt.Errorf("inference session is nil")
	}

	if int64(len(v)) != o.features {
		return 0, nil, fmt.Errorf("input has wrong size: got %d, expected %d", len(v), o.features)
	}

	data := make([]float32, len(v))
	for i, x := range v {
		data[i] = float32(x)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, o.features), data)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	labelTensor, err := ort.NewTensor(ort.NewShape(1), make([]int64, 1))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer labelTensor.Destroy()

	probaTensor, err := ort.NewTensor(ort.NewShape(1, o.numClasses), make([]float32, o.numClasses))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer probaTensor.Destroy()

	err = o.session.Run(
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{labelTensor, probaTensor},
	)
	if err != nil {
		return 0, nil, fmt.Errorf("session run failed: %w", err)
	}

	raw := probaTensor.GetData()
	probs := make([]float64, len(raw))
	for i, p := range raw {
		probs[i] = float64(p)
	}

	return int(labelTensor.GetData()[0]), probs, nil
}

// Name returns the configured model descriptor.
func (o *ONNX) Name() string {
	return o.name
}

// Fingerprint returns the SHA-256 of the model file.
func (o *ONNX) Fingerprint() string {
	return o.digest
}

// Close releases the ONNX session resources
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil {
		err := o.session.Destroy()
		o.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}

	return nil
}

// Ensure ONNX implements Classifier at compile time
var (
	_ Classifier = (*ONNX)(nil)
	_ SinglePass = (*ONNX)(nil)
)
