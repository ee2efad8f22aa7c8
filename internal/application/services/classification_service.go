package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
)

// icuDemandTolerance is the relative float error in count*ratio ignored
// before rounding up
const icuDemandTolerance = 1e-12

// ClassificationService maps predictions to risk levels and staffing actions
type ClassificationService struct {
	cfg config.PredictionConfig
}

// NewClassificationService creates a new classification service
func NewClassificationService(cfg config.PredictionConfig) *ClassificationService {
	return &ClassificationService{cfg: cfg}
}

// ClassifyProbability bands an ICU probability. Boundaries are inclusive.
func (s *ClassificationService) ClassifyProbability(p float64) entities.RiskLevel {
	switch {
	case p >= s.cfg.HighProbability:
		return entities.RiskHigh
	case p >= s.cfg.ModerateProbability:
		return entities.RiskModerate
	default:
		return entities.RiskLow
	}
}

// ClassifyCounts bands an emergency count together with its ICU demand
func (s *ClassificationService) ClassifyCounts(emergency, icuDemand int) entities.RiskLevel {
	switch {
	case emergency >= s.cfg.HighEmergencyCount || icuDemand >= s.cfg.HighICUDemand:
		return entities.RiskHigh
	case emergency >= s.cfg.MediumEmergencyCount || icuDemand >= s.cfg.MediumICUDemand:
		return entities.RiskMedium
	default:
		return entities.RiskLow
	}
}

// ICUDemand applies the configured ICU ratio
func (s *ClassificationService) ICUDemand(count int) int {
	return ICUDemand(count, s.cfg.ICURatio)
}

// ICUDemand estimates ICU beds needed as ceil(count * ratio)
func ICUDemand(count int, ratio float64) int {
	if count <= 0 {
		return 0
	}
	demand := float64(count) * ratio
	return int(math.Ceil(demand - demand*icuDemandTolerance))
}

// QuantileThresholds computes the 50th and 80th percentiles of values
func (s *ClassificationService) QuantileThresholds(values []float64) (p50, p80 float64, err error) {
	if len(values) == 0 {
		return 0, 0, fmt.Errorf("cannot compute quantiles of an empty batch")
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return percentile(sorted, 0.5), percentile(sorted, 0.8), nil
}

// percentile interpolates linearly between the two closest ranks of a sorted slice
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// ClassifyQuantile bands v against batch thresholds. Boundaries are inclusive.
func (s *ClassificationService) ClassifyQuantile(v, p50, p80 float64) entities.RiskLevel {
	switch {
	case v >= p80:
		return entities.RiskHigh
	case v >= p50:
		return entities.RiskMedium
	default:
		return entities.RiskLow
	}
}

// ClassifyStaffLabel maps a decoded staff label to a level by substring
func (s *ClassificationService) ClassifyStaffLabel(label string) entities.RiskLevel {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "high"):
		return entities.RiskHigh
	case strings.Contains(lower, "moderate"):
		return entities.RiskModerate
	default:
		return entities.RiskLow
	}
}

// Recommend returns the staffing action for a level
func (s *ClassificationService) Recommend(level entities.RiskLevel) entities.Recommendation {
	var text string
	switch level {
	case entities.RiskHigh:
		text = fmt.Sprintf("Add %d nurses + 1 doctor per shift", s.cfg.HighExtraNurses)
	case entities.RiskMedium, entities.RiskModerate:
		text = fmt.Sprintf("Add %d %s per shift", s.cfg.MediumExtraNurses, plural(s.cfg.MediumExtraNurses, "nurse", "nurses"))
	default:
		text = "Maintain current staffing levels"
	}
	return entities.Recommendation{Level: level, Text: text}
}

// ICUAlert returns the banner for an ICU risk level
func (s *ClassificationService) ICUAlert(level entities.RiskLevel) entities.Alert {
	switch level {
	case entities.RiskHigh:
		return entities.Alert{Level: level, Message: "CRITICAL ICU RISK - PREPARE NOW"}
	case entities.RiskModerate, entities.RiskMedium:
		return entities.Alert{Level: level, Message: "MODERATE RISK - MONITOR CLOSELY"}
	default:
		return entities.Alert{Level: entities.RiskLow, Message: "LOW RISK - SYSTEM STABLE"}
	}
}

// StaffAlert returns the banner for a staff workload level
func (s *ClassificationService) StaffAlert(level entities.RiskLevel) entities.Alert {
	switch level {
	case entities.RiskHigh:
		return entities.Alert{Level: level, Message: "HIGH BURNOUT RISK"}
	case entities.RiskModerate, entities.RiskMedium:
		return entities.Alert{Level: level, Message: "MODERATE LOAD"}
	default:
		return entities.Alert{Level: entities.RiskLow, Message: "OPTIMAL STAFFING"}
	}
}

// LoadAlert returns the banner for an emergency load level
func (s *ClassificationService) LoadAlert(level entities.RiskLevel) entities.Alert {
	switch level {
	case entities.RiskHigh:
		return entities.Alert{Level: level, Message: "EMERGENCY SURGE EXPECTED - ACTIVATE SURGE STAFFING"}
	case entities.RiskModerate, entities.RiskMedium:
		return entities.Alert{Level: level, Message: "ELEVATED EMERGENCY LOAD - MONITOR CLOSELY"}
	default:
		return entities.Alert{Level: entities.RiskLow, Message: "EMERGENCY LOAD NORMAL"}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
