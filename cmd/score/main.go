package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/hospitalintelligence/internal/adapters/predictors"
	"github.com/zatekoja/hospitalintelligence/internal/application/services"
	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
)

type rowOutput struct {
	Line                 int     `json:"line"`
	AdmissionDate        string  `json:"admission_date"`
	RecentEmergencies24h int     `json:"recent_emergencies_24h"`
	BedOccupancyRate     float64 `json:"bed_occupancy_rate"`
	ICUOccupancyRate     float64 `json:"icu_occupancy_rate"`
	EmergencyCount       int     `json:"emergency_count"`
	ICUDemand            int     `json:"icu_demand"`
	Level                string  `json:"level"`
	Recommendation       string  `json:"recommendation"`
}

type reportOutput struct {
	ID       string         `json:"id"`
	Policy   string         `json:"policy"`
	P50      float64        `json:"p50,omitempty"`
	P80      float64        `json:"p80,omitempty"`
	Counts   map[string]int `json:"counts"`
	Rows     []rowOutput    `json:"rows"`
	ScoredAt time.Time      `json:"scored_at"`
}

func main() {
	configPath := flag.String("config", "", "path to an optional config file")
	modelsDir := flag.String("models", "", "directory holding the model artifacts (overrides config)")
	inPath := flag.String("in", "", "batch CSV file to score, - for stdin")
	policy := flag.String("policy", "", "threshold policy: fixed or quantile (overrides config)")
	outPath := flag.String("out", "", "write the JSON report here instead of stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *modelsDir != "" {
		cfg.Models.Dir = *modelsDir
	}
	if *policy != "" {
		cfg.Batch.Policy = *policy
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *inPath == "" {
		log.Fatal().Msg("-in is required")
	}

	observability.InitLogger("hospital-intelligence-score", "development", cfg.Logging.Level)

	store := predictors.NewModelStore(cfg.Models)
	if _, err := store.Load(); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Models.Dir).Msg("Failed to load models")
	}

	var in io.Reader = os.Stdin
	if *inPath != "-" {
		f, err := os.Open(*inPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open batch file")
		}
		defer f.Close()
		in = f
	}

	// Offline scoring never raises alerts
	batchService := services.NewBatchService(store, cfg.Prediction, cfg.Batch, nil, nil)
	report, err := batchService.Score(context.Background(), in)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch scoring failed")
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toOutput(report)); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}

	fmt.Fprintf(os.Stderr, "Scored %d rows: %d HIGH, %d MEDIUM, %d LOW\n",
		len(report.Rows), report.Counts[entities.RiskHigh], report.Counts[entities.RiskMedium], report.Counts[entities.RiskLow])
}

func toOutput(report *entities.BatchReport) reportOutput {
	out := reportOutput{
		ID:       report.ID,
		Policy:   string(report.Thresholds.Policy),
		Counts:   make(map[string]int, len(report.Counts)),
		Rows:     make([]rowOutput, 0, len(report.Rows)),
		ScoredAt: report.CreatedAt,
	}
	if report.Thresholds.Policy == entities.PolicyQuantile {
		out.P50 = report.Thresholds.P50
		out.P80 = report.Thresholds.P80
	}
	for level, n := range report.Counts {
		out.Counts[string(level)] = n
	}
	for _, row := range report.Rows {
		out.Rows = append(out.Rows, rowOutput{
			Line:                 row.Line,
			AdmissionDate:        row.Input.AdmissionDate.Format("2006-01-02"),
			RecentEmergencies24h: row.Input.RecentEmergencies24h,
			BedOccupancyRate:     row.Input.BedOccupancy,
			ICUOccupancyRate:     row.Input.ICUOccupancy,
			EmergencyCount:       row.EmergencyCount,
			ICUDemand:            row.ICUDemand,
			Level:                string(row.Level),
			Recommendation:       row.Recommendation,
		})
	}
	return out
}
