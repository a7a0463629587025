package inference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Artifact formats understood by Load.
const (
	FormatONNX   = "onnx"
	FormatForest = "forest"
	FormatMock   = "mock"
)

// LoadOptions selects the artifact backend and the graph layout for ONNX models.
type LoadOptions struct {
	// Format is one of FormatONNX, FormatForest or FormatMock. Empty means
	// detect from the file extension.
	Format string
	// Name overrides the model descriptor reported by Name().
	Name string
	// SharedLibrary is the path to libonnxruntime, if not on the default search path.
	SharedLibrary string

	InputName   string
	LabelOutput string
	ProbaOutput string
	NumFeatures int
	NumClasses  int
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.InputName == "" {
		o.InputName = "float_input"
	}
	if o.LabelOutput == "" {
		o.LabelOutput = "label"
	}
	if o.ProbaOutput == "" {
		o.ProbaOutput = "probabilities"
	}
	if o.NumFeatures <= 0 {
		o.NumFeatures = 30
	}
	if o.NumClasses <= 0 {
		o.NumClasses = 2
	}
	return o
}

// Load deserializes a trained artifact from source. Missing, corrupt or
// version-incompatible artifacts are reported as *LoadError.
func Load(source string, opts LoadOptions) (Classifier, error) {
	format := opts.Format
	if format == "" {
		format = detectFormat(source)
	}

	if format == FormatMock {
		m := NewMock()
		if opts.Name != "" {
			m.name = opts.Name
		}
		return m, nil
	}

	if _, err := os.Stat(source); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	switch format {
	case FormatONNX:
		c, err := NewONNX(source, opts)
		if err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}
		return c, nil

	case FormatForest:
		f, err := LoadForest(source)
		if err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}
		if opts.Name != "" {
			f.Model = opts.Name
		}
		return f, nil

	default:
		return nil, &LoadError{Source: source, Err: fmt.Errorf("unknown model format %q", format)}
	}
}

func detectFormat(source string) string {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".onnx":
		return FormatONNX
	case ".json":
		return FormatForest
	default:
		return ""
	}
}

// IsLoadError reports whether err is a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// ShutdownRuntime tears down the ONNX environment if one was initialized.
func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
