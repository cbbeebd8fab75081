package classifier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Node is one node of a decision tree. A node with no children is a leaf.
type Node struct {
	Feature   int       `yaml:"feature"`
	Threshold float64   `yaml:"threshold"`
	Left      int       `yaml:"left"`
	Right     int       `yaml:"right"`
	Probs     []float64 `yaml:"probs,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool {
	return n.Left == 0 && n.Right == 0
}

// Tree is a CART decision tree. Node 0 is the root; samples with
// features[Feature] <= Threshold go left.
type Tree struct {
	Classes int    `yaml:"classes"`
	Nodes   []Node `yaml:"nodes"`
}

// LoadTree reads and validates a tree model file.
func LoadTree(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseTree(data)
}

// ParseTree decodes and validates a YAML tree model.
func ParseTree(data []byte) (*Tree, error) {
	var t Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse model YAML: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("model validation failed: %w", err)
	}
	return &t, nil
}

// Validate checks the tree is well formed. Children must point forward so
// every walk terminates.
func (t *Tree) Validate() error {
	if t.Classes < 2 {
		return fmt.Errorf("classes must be at least 2, got %d", t.Classes)
	}
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}

	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if len(n.Probs) != t.Classes {
				return fmt.Errorf("leaf %d has %d probabilities, want %d", i, len(n.Probs), t.Classes)
			}
			sum := 0.0
			for _, p := range n.Probs {
				if p < 0 {
					return fmt.Errorf("leaf %d has negative probability", i)
				}
				sum += p
			}
			if sum == 0 {
				return fmt.Errorf("leaf %d has all-zero probabilities", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= FeatureCount {
			return fmt.Errorf("node %d splits on feature %d, want 0..%d", i, n.Feature, FeatureCount-1)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d has invalid child %d", i, child)
			}
		}
	}
	return nil
}

// Classify walks the tree. Severity is the most probable class; survival is
// the combined probability of the first three classes for a four-class
// model, otherwise the probability of the predicted class.
func (t *Tree) Classify(features []float64) (Result, error) {
	if len(features) != FeatureCount {
		return Sentinel, fmt.Errorf("%w: got %d features, want %d", ErrMalformedSignals, len(features), FeatureCount)
	}

	n := t.Nodes[0]
	for !n.IsLeaf() {
		if features[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}

	probs := normalize(n.Probs)
	pred := 0
	for i, p := range probs {
		if p > probs[pred] {
			pred = i
		}
	}

	survival := probs[pred]
	if len(probs) == 4 {
		survival = probs[0] + probs[1] + probs[2]
	}
	return Result{Severity: pred, Survival: survival}, nil
}

func normalize(p []float64) []float64 {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v / sum
	}
	return out
}
