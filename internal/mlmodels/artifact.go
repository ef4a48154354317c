package mlmodels

import (
	"errors"
	"fmt"
)

const (
	TypeLinear = "linear"
	TypeForest = "forest"
)

// TreeNode is a node of a regression tree. Leaves have Feature set to -1.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Artifact is a frozen, pre-trained model exported to JSON.
// A linear artifact computes intercept + sum(coef_i * x_i); a forest averages its trees.
type Artifact struct {
	Name         string    `json:"name,omitempty"`
	Type         string    `json:"type"`
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Trees        []Tree    `json:"trees,omitempty"`
}

func (a *Artifact) Validate() error {
	if len(a.Features) == 0 {
		return errors.New("artifact declares no features")
	}

	switch a.Type {
	case TypeLinear:
		if len(a.Coefficients) != len(a.Features) {
			return fmt.Errorf("linear artifact: %d coefficients for %d features", len(a.Coefficients), len(a.Features))
		}
	case TypeForest:
		if len(a.Trees) == 0 {
			return errors.New("forest artifact has no trees")
		}
		for i, tree := range a.Trees {
			if err := tree.validate(len(a.Features)); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown artifact type: %q", a.Type)
	}
	return nil
}

func (t Tree) validate(featuresCount int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= featuresCount {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// Predict evaluates the artifact on a feature vector ordered like Features.
func (a *Artifact) Predict(values []float64) (float64, error) {
	if len(values) != len(a.Features) {
		return 0, fmt.Errorf("expected %d feature values, got %d", len(a.Features), len(values))
	}

	switch a.Type {
	case TypeLinear:
		result := a.Intercept
		for i, coef := range a.Coefficients {
			result += coef * values[i]
		}
		return result, nil
	case TypeForest:
		sum := 0.0
		for _, tree := range a.Trees {
			sum += tree.predict(values)
		}
		return sum / float64(len(a.Trees)), nil
	default:
		return 0, fmt.Errorf("unknown artifact type: %q", a.Type)
	}
}

// children always point forward (checked in validate), so the walk terminates
func (t Tree) predict(values []float64) float64 {
	node := t.Nodes[0]
	for node.Feature >= 0 {
		if values[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node.Value
}
