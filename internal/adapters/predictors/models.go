package predictors

import (
	"fmt"
	"math"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

var (
	_ providers.ProbabilisticPredictor = (*LogisticModel)(nil)
	_ providers.Predictor              = (*LinearModel)(nil)
	_ providers.Predictor              = (*SoftmaxModel)(nil)
	_ providers.LabelDecoder           = (*LabelEncoder)(nil)
)

// base holds what every linear-family model shares
type base struct {
	name   string
	schema entities.FeatureSchema
}

func (b base) Name() string {
	return b.name
}

func (b base) Schema() entities.FeatureSchema {
	return append(entities.FeatureSchema(nil), b.schema...)
}

// check rejects vectors whose names or order differ from the schema
func (b base) check(fv entities.FeatureVector) ([]float64, error) {
	names := fv.Names()
	if b.schema.Equal(names) {
		return fv.Values(), nil
	}

	have := make(map[string]struct{}, len(names))
	for _, n := range names {
		have[n] = struct{}{}
	}
	var missing []string
	for _, n := range b.schema {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaMismatchError(fmt.Sprintf("input to model %s", b.name), missing)
	}

	return nil, apperrors.NewSchemaConflictError(
		fmt.Sprintf("input to model %s has features [%s], expected [%s]", b.name, names, b.schema))
}

func dot(w, x []float64) float64 {
	var sum float64
	for i := range w {
		sum += w[i] * x[i]
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// LogisticModel is a binary classifier
type LogisticModel struct {
	base
	intercept    float64
	coefficients []float64
}

// NewLogisticModel builds a model from a logistic artifact
func NewLogisticModel(a *Artifact) (*LogisticModel, error) {
	if a.Kind != KindLogistic {
		return nil, fmt.Errorf("artifact %s is %s, not %s", a.Name, a.Kind, KindLogistic)
	}
	return &LogisticModel{
		base:         base{name: a.Name, schema: entities.FeatureSchema(a.Features)},
		intercept:    a.Intercept,
		coefficients: append([]float64(nil), a.Coefficients...),
	}, nil
}

// PredictProbability returns P(class=1)
func (m *LogisticModel) PredictProbability(fv entities.FeatureVector) (float64, error) {
	x, err := m.check(fv)
	if err != nil {
		return 0, err
	}
	return sigmoid(m.intercept + dot(m.coefficients, x)), nil
}

// Predict returns the class index, 1 when the probability is at least 0.5
func (m *LogisticModel) Predict(fv entities.FeatureVector) (float64, error) {
	p, err := m.PredictProbability(fv)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// LinearModel is a regressor
type LinearModel struct {
	base
	intercept    float64
	coefficients []float64
}

// NewLinearModel builds a model from a linear artifact
func NewLinearModel(a *Artifact) (*LinearModel, error) {
	if a.Kind != KindLinear {
		return nil, fmt.Errorf("artifact %s is %s, not %s", a.Name, a.Kind, KindLinear)
	}
	return &LinearModel{
		base:         base{name: a.Name, schema: entities.FeatureSchema(a.Features)},
		intercept:    a.Intercept,
		coefficients: append([]float64(nil), a.Coefficients...),
	}, nil
}

// Predict returns the regression value
func (m *LinearModel) Predict(fv entities.FeatureVector) (float64, error) {
	x, err := m.check(fv)
	if err != nil {
		return 0, err
	}
	return m.intercept + dot(m.coefficients, x), nil
}

// SoftmaxModel is a multiclass classifier
type SoftmaxModel struct {
	base
	intercepts []float64
	weights    [][]float64
}

// NewSoftmaxModel builds a model from a softmax artifact
func NewSoftmaxModel(a *Artifact) (*SoftmaxModel, error) {
	if a.Kind != KindSoftmax {
		return nil, fmt.Errorf("artifact %s is %s, not %s", a.Name, a.Kind, KindSoftmax)
	}
	weights := make([][]float64, len(a.Weights))
	for i, row := range a.Weights {
		weights[i] = append([]float64(nil), row...)
	}
	return &SoftmaxModel{
		base:       base{name: a.Name, schema: entities.FeatureSchema(a.Features)},
		intercepts: append([]float64(nil), a.Intercepts...),
		weights:    weights,
	}, nil
}

// Predict returns the index of the highest scoring class. Ties go to the lower index.
func (m *SoftmaxModel) Predict(fv entities.FeatureVector) (float64, error) {
	x, err := m.check(fv)
	if err != nil {
		return 0, err
	}
	best, bestScore := 0, math.Inf(-1)
	for i, row := range m.weights {
		score := m.intercepts[i] + dot(row, x)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return float64(best), nil
}

// Probabilities returns the normalised class probabilities
func (m *SoftmaxModel) Probabilities(fv entities.FeatureVector) ([]float64, error) {
	x, err := m.check(fv)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(m.weights))
	maxScore := math.Inf(-1)
	for i, row := range m.weights {
		scores[i] = m.intercepts[i] + dot(row, x)
		maxScore = math.Max(maxScore, scores[i])
	}
	var total float64
	for i := range scores {
		scores[i] = math.Exp(scores[i] - maxScore)
		total += scores[i]
	}
	for i := range scores {
		scores[i] /= total
	}
	return scores, nil
}

// LabelEncoder maps class indices to the labels a classifier was trained on
type LabelEncoder struct {
	classes []string
}

// NewLabelEncoder builds a decoder from a label encoder artifact
func NewLabelEncoder(a *Artifact) (*LabelEncoder, error) {
	if a.Kind != KindLabelEncoder {
		return nil, fmt.Errorf("artifact %s is %s, not %s", a.Name, a.Kind, KindLabelEncoder)
	}
	return &LabelEncoder{classes: append([]string(nil), a.Classes...)}, nil
}

// Decode returns the label for a class index
func (e *LabelEncoder) Decode(class int) (string, error) {
	if class < 0 || class >= len(e.classes) {
		return "", fmt.Errorf("class %d outside encoder range [0, %d)", class, len(e.classes))
	}
	return e.classes[class], nil
}

// NewPredictor builds the predictor matching the artifact kind
func NewPredictor(a *Artifact) (providers.Predictor, error) {
	switch a.Kind {
	case KindLogistic:
		return NewLogisticModel(a)
	case KindLinear:
		return NewLinearModel(a)
	case KindSoftmax:
		return NewSoftmaxModel(a)
	default:
		return nil, fmt.Errorf("artifact %s of kind %s is not a predictor", a.Name, a.Kind)
	}
}
