package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Renderer executes the dashboard templates
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
		"fixed":   func(digits int, v float64) string { return fmt.Sprintf("%.*f", digits, v) },
		"signed":  func(v int) string { return fmt.Sprintf("%+d", v) },
		"chart":   newChart,
		"date":    func(d time.Time) string { return d.Format(formDateLayout) },
		"dayName": func(i int) string {
			if i < 0 || i >= len(dayNames) {
				return ""
			}
			return dayNames[i]
		},
		"join":   strings.Join,
		"levels": func() []entities.RiskLevel { return []entities.RiskLevel{entities.RiskHigh, entities.RiskMedium, entities.RiskLow} },
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the dashboard for req with the given status. The page is
// rendered into a buffer first so a template failure never leaves a
// half-written response.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, data *entities.RenderRequest) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		observability.LoggerFromContext(req.Context()).Error().Err(err).Msg("Failed to render dashboard")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		observability.LoggerFromContext(req.Context()).Debug().Err(err).Msg("Client went away during render")
	}
}
