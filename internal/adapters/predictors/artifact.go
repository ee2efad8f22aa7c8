package predictors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind names the model family stored in an artifact
type Kind string

const (
	KindLogistic     Kind = "logistic"
	KindLinear       Kind = "linear"
	KindSoftmax      Kind = "softmax"
	KindLabelEncoder Kind = "label_encoder"
)

// Artifact is the on-disk form of a pre-trained model. Linear and logistic
// models use Intercept and Coefficients; softmax models use one intercept and
// one weight row per class; label encoders only carry Classes.
type Artifact struct {
	Name         string      `json:"name"`
	Kind         Kind        `json:"kind"`
	Features     []string    `json:"features"`
	Intercept    float64     `json:"intercept"`
	Coefficients []float64   `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
	Weights      [][]float64 `json:"weights"`
	Classes      []string    `json:"classes"`
}

// LoadArtifact reads and validates an artifact from a JSON file
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}

	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}

	return &a, nil
}

// Validate checks the artifact is internally consistent for its kind
func (a *Artifact) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("missing name")
	}

	switch a.Kind {
	case KindLabelEncoder:
		if len(a.Classes) == 0 {
			return fmt.Errorf("%s: label encoder has no classes", a.Name)
		}
		return nil
	case KindLogistic, KindLinear:
		if len(a.Features) == 0 {
			return fmt.Errorf("%s: no features", a.Name)
		}
		if len(a.Coefficients) != len(a.Features) {
			return fmt.Errorf("%s: %d coefficients for %d features", a.Name, len(a.Coefficients), len(a.Features))
		}
	case KindSoftmax:
		if len(a.Features) == 0 {
			return fmt.Errorf("%s: no features", a.Name)
		}
		if len(a.Weights) < 2 {
			return fmt.Errorf("%s: softmax needs at least two classes", a.Name)
		}
		if len(a.Intercepts) != len(a.Weights) {
			return fmt.Errorf("%s: %d intercepts for %d classes", a.Name, len(a.Intercepts), len(a.Weights))
		}
		for i, row := range a.Weights {
			if len(row) != len(a.Features) {
				return fmt.Errorf("%s: class %d has %d weights for %d features", a.Name, i, len(row), len(a.Features))
			}
		}
	default:
		return fmt.Errorf("%s: unknown kind %q", a.Name, a.Kind)
	}

	seen := make(map[string]struct{}, len(a.Features))
	for _, f := range a.Features {
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%s: duplicate feature %q", a.Name, f)
		}
		seen[f] = struct{}{}
	}
	return nil
}
