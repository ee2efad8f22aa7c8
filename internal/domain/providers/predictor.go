package providers

import (
	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
)

// Predictor is a pre-trained model that maps a feature vector to a number.
// Implementations reject vectors whose names or order differ from Schema.
type Predictor interface {
	// Name identifies the model in logs and metrics
	Name() string

	// Schema returns the ordered feature names the model was trained on
	Schema() entities.FeatureSchema

	// Predict returns the model output: a class index, a count or a value
	Predict(fv entities.FeatureVector) (float64, error)
}

// ProbabilisticPredictor is a binary classifier that also exposes P(class=1)
type ProbabilisticPredictor interface {
	Predictor

	// PredictProbability returns the positive class probability in [0, 1]
	PredictProbability(fv entities.FeatureVector) (float64, error)
}

// ClassProbabilities is implemented by multiclass models that expose the
// probability of every class, indexed by class
type ClassProbabilities interface {
	Probabilities(fv entities.FeatureVector) ([]float64, error)
}

// LabelDecoder maps a model class index back to its label
type LabelDecoder interface {
	Decode(class int) (string, error)
}

// ModelSet holds every model the dashboard predicts with
type ModelSet struct {
	ICU           ProbabilisticPredictor
	Emergency     Predictor
	Staff         Predictor
	EmergencyLoad Predictor

	// StaffLabels is nil when no encoder artifact was shipped
	StaffLabels LabelDecoder
}

// Names lists the loaded model names
func (m *ModelSet) Names() []string {
	names := []string{m.ICU.Name(), m.Emergency.Name(), m.Staff.Name(), m.EmergencyLoad.Name()}
	if m.StaffLabels != nil {
		names = append(names, "staff_label_encoder")
	}
	return names
}
