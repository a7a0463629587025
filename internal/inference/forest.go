package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ForestFormatVersion is the only artifact layout Forest understands.
const ForestFormatVersion = 1

// Forest is a tree-ensemble classifier decoded from a JSON artifact. Probabilities
// are the mean of the normalized leaf distributions across trees; the label is the
// class with the highest mean probability.
type Forest struct {
	FormatVersion int    `json:"format_version"`
	Model         string `json:"name"`
	NumFeatures   int    `json:"n_features"`
	Classes       []int  `json:"classes"`
	Trees         []Tree `json:"trees"`

	digest string
}

// Tree is a flattened binary decision tree. Node 0 is the root.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is either a split (Feature >= 0) or a leaf carrying per-class counts
// or weights in Value.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n TreeNode) isLeaf() bool {
	return n.Feature < 0
}

// LoadForest reads and validates a JSON forest artifact from path.
func LoadForest(path string) (*Forest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f Forest
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("corrupt forest artifact: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}

	f.digest = fingerprint(payload)
	return &f, nil
}

func (f *Forest) validate() error {
	if f.FormatVersion != ForestFormatVersion {
		return fmt.Errorf("unsupported forest format_version %d (want %d)", f.FormatVersion, ForestFormatVersion)
	}
	if f.NumFeatures <= 0 {
		return errors.New("n_features must be positive")
	}
	if len(f.Classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(f.Classes))
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}

	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", t)
		}
		for i, node := range tree.Nodes {
			if node.isLeaf() {
				if len(node.Value) != len(f.Classes) {
					return fmt.Errorf("tree %d leaf %d has %d values, expected %d", t, i, len(node.Value), len(f.Classes))
				}
				continue
			}
			if node.Feature >= f.NumFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d out of range", t, i, node.Feature)
			}
			// Children always follow their parent in the flattened layout,
			// which also rules out cycles.
			if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children (%d, %d)", t, i, node.Left, node.Right)
			}
		}
	}

	return nil
}

// Predict returns the class with the highest averaged probability.
func (f *Forest) Predict(ctx context.Context, v Vector) (int, error) {
	pred, err := f.Classify(ctx, v)
	if err != nil {
		return 0, err
	}
	return pred.Label, nil
}

// Classify walks every tree once and derives the label from the averaged
// distribution.
func (f *Forest) Classify(ctx context.Context, v Vector) (Prediction, error) {
	probs, err := f.PredictProba(ctx, v)
	if err != nil {
		return Prediction{}, err
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return Prediction{Label: f.Classes[best], Probabilities: probs}, nil
}

// PredictProba averages the normalized leaf distribution reached in every tree.
func (f *Forest) PredictProba(ctx context.Context, v Vector) ([]float64, error) {
	if len(v) != f.NumFeatures {
		return nil, fmt.Errorf("input has wrong size: got %d, expected %d", len(v), f.NumFeatures)
	}

	probs := make([]float64, len(f.Classes))
	for t := range f.Trees {
		leaf := f.Trees[t].leaf(v)

		var total float64
		for _, w := range leaf.Value {
			total += w
		}
		if total <= 0 {
			return nil, fmt.Errorf("tree %d reached a leaf with no weight", t)
		}
		for c, w := range leaf.Value {
			probs[c] += w / total
		}
	}

	n := float64(len(f.Trees))
	for c := range probs {
		probs[c] /= n
	}
	return probs, nil
}

func (t *Tree) leaf(v Vector) TreeNode {
	node := t.Nodes[0]
	for !node.isLeaf() {
		if v[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node
}

// Name returns the artifact's declared name.
func (f *Forest) Name() string {
	return f.Model
}

// Fingerprint returns the SHA-256 of the artifact bytes it was decoded from.
func (f *Forest) Fingerprint() string {
	return f.digest
}

// Close is a no-op; the forest lives entirely in memory.
func (f *Forest) Close() error {
	return nil
}

var (
	_ Classifier = (*Forest)(nil)
	_ SinglePass = (*Forest)(nil)
)
