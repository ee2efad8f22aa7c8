package predictors

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

// ModelStore loads the models once and hands the same read-only instance to
// every caller afterwards
type ModelStore struct {
	cfg config.ModelsConfig

	once   sync.Once
	models *providers.ModelSet
	err    error
}

// NewModelStore creates a store reading artifacts from cfg.Dir
func NewModelStore(cfg config.ModelsConfig) *ModelStore {
	return &ModelStore{cfg: cfg}
}

// Load returns the models, reading the artifacts on first call only.
// A failure is remembered and returned to every later caller.
func (s *ModelStore) Load() (*providers.ModelSet, error) {
	s.once.Do(func() {
		s.models, s.err = s.load()
	})
	return s.models, s.err
}

// Ready reports whether the models loaded successfully
func (s *ModelStore) Ready() bool {
	r, err := s.Load()
	return err == nil && r != nil
}

func (s *ModelStore) load() (*providers.ModelSet, error) {
	icu, err := s.predictor(s.cfg.ICUFile)
	if err != nil {
		return nil, err
	}
	icuProb, ok := icu.(providers.ProbabilisticPredictor)
	if !ok {
		return nil, apperrors.NewModelLoadError(fmt.Sprintf("icu model %s does not produce probabilities", icu.Name()), nil)
	}

	emergency, err := s.predictor(s.cfg.EmergencyFile)
	if err != nil {
		return nil, err
	}
	staff, err := s.predictor(s.cfg.StaffFile)
	if err != nil {
		return nil, err
	}
	load, err := s.predictor(s.cfg.EmergencyLoadFile)
	if err != nil {
		return nil, err
	}

	labels, err := s.labelEncoder(s.cfg.StaffLabelEncoderFile)
	if err != nil {
		return nil, err
	}

	r := &providers.ModelSet{
		ICU:           icuProb,
		Emergency:     emergency,
		Staff:         staff,
		EmergencyLoad: load,
		StaffLabels:   labels,
	}

	log.Info().
		Str("dir", s.cfg.Dir).
		Strs("models", r.Names()).
		Msg("Models loaded")

	return r, nil
}

func (s *ModelStore) predictor(file string) (providers.Predictor, error) {
	path := filepath.Join(s.cfg.Dir, file)
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, apperrors.NewModelLoadError("failed to load "+file, err)
	}
	p, err := NewPredictor(a)
	if err != nil {
		return nil, apperrors.NewModelLoadError("failed to build "+file, err)
	}
	return p, nil
}

func (s *ModelStore) labelEncoder(file string) (providers.LabelDecoder, error) {
	if file == "" {
		return nil, nil
	}
	path := filepath.Join(s.cfg.Dir, file)
	a, err := LoadArtifact(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", path).Msg("Staff label encoder not found, class indices will be shown")
			return nil, nil
		}
		return nil, apperrors.NewModelLoadError("failed to load "+file, err)
	}
	enc, err := NewLabelEncoder(a)
	if err != nil {
		return nil, apperrors.NewModelLoadError("failed to build "+file, err)
	}
	return enc, nil
}
