package handlers

import (
	"fmt"
	"math"
	"strings"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
)

const (
	chartWidth    = 640.0
	chartHeight   = 220.0
	chartPadLeft  = 44.0
	chartPadTop   = 12.0
	chartPadBot   = 28.0
	chartPadRight = 12.0
	chartYTicks   = 4
)

// Chart is a trend series laid out in SVG user units
type Chart struct {
	Width  float64
	Height float64
	Line   string
	Points []ChartPoint
	YTicks []ChartTick
	Empty  bool
}

// ChartPoint is one plotted value
type ChartPoint struct {
	X, Y  float64
	Label string
	Value float64
}

// ChartTick is a horizontal grid line with its label
type ChartTick struct {
	Y     float64
	Label string
}

// newChart scales a trend series into the chart viewport. The y axis always
// starts at zero so counts are not exaggerated.
func newChart(series []entities.TrendPoint) Chart {
	c := Chart{Width: chartWidth, Height: chartHeight}
	if len(series) == 0 {
		c.Empty = true
		return c
	}

	maxV := 0.0
	for _, p := range series {
		maxV = math.Max(maxV, p.Value)
	}
	top := niceCeil(maxV)

	plotW := chartWidth - chartPadLeft - chartPadRight
	plotH := chartHeight - chartPadTop - chartPadBot
	step := 0.0
	if len(series) > 1 {
		step = plotW / float64(len(series)-1)
	}

	coords := make([]string, 0, len(series))
	for i, p := range series {
		x := chartPadLeft + step*float64(i)
		if len(series) == 1 {
			x = chartPadLeft + plotW/2
		}
		y := chartPadTop + plotH*(1-p.Value/top)
		c.Points = append(c.Points, ChartPoint{X: x, Y: y, Label: fmt.Sprintf("%d", p.Hour), Value: p.Value})
		coords = append(coords, fmt.Sprintf("%.1f,%.1f", x, y))
	}
	c.Line = strings.Join(coords, " ")

	for i := 0; i <= chartYTicks; i++ {
		v := top * float64(i) / chartYTicks
		c.YTicks = append(c.YTicks, ChartTick{
			Y:     chartPadTop + plotH*(1-v/top),
			Label: fmt.Sprintf("%g", math.Round(v*10)/10),
		})
	}
	return c
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten
func niceCeil(v float64) float64 {
	if v <= 1 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*exp >= v {
			return m * exp
		}
	}
	return 10 * exp
}
