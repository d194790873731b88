// Package present turns a normalized forecast into the dashboard's HTML
// fragments and the flattened context text used for AI prompt grounding.
package present

import (
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/weathersense/weathersense/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Fragments holds rendered dashboard HTML. Each render replaces prior
// content entirely; there is no incremental diffing.
type Fragments struct {
	Today template.HTML `json:"today"`
	Days  template.HTML `json:"days"`
}

// Presenter renders forecasts. Safe for concurrent use; templates are parsed
// once at construction.
type Presenter struct {
	templates *template.Template
}

// New parses the embedded fragment templates.
func New() (*Presenter, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Presenter{templates: tmpl}, nil
}

type dayView struct {
	Weekday   string
	DateLabel string
	High      string
	Low       string
	Rain      string
	Wind      string
}

type todayView struct {
	PlaceName string
	Day       dayView
}

// BuildContextText flattens the location and forecast into the text block
// used verbatim as AI prompt input. Deterministic: identical inputs always
// produce byte-identical output. Regenerated in full on every location or
// forecast change, never patched.
func BuildContextText(loc models.Location, days []models.DailyForecast) string {
	if len(days) == 0 {
		return ""
	}

	lines := make([]string, 0, len(days)+1)
	if loc.PlaceName != "" {
		lines = append(lines, loc.PlaceName)
	}
	for _, d := range days {
		lines = append(lines, fmt.Sprintf("%s (%s): High %s°F Low %s°F, Rain %sin, Wind %s mph",
			d.Date.Weekday().String(),
			dateLabel(d.Date),
			trimmed(d.HighTemp),
			trimmed(d.LowTemp),
			trimmed(d.Precipitation),
			trimmed(d.WindSpeed),
		))
	}
	return strings.Join(lines, "\n")
}

// Render produces the "today" highlight from the first entry and one card
// per forecast day, in date order. Callers must pass at least one day; use
// RenderNoData for the empty state.
func (p *Presenter) Render(loc models.Location, days []models.DailyForecast) (Fragments, error) {
	if len(days) == 0 {
		return p.RenderNoData()
	}

	var today strings.Builder
	if err := p.templates.ExecuteTemplate(&today, "today.tmpl", todayView{
		PlaceName: loc.PlaceName,
		Day:       viewOf(days[0]),
	}); err != nil {
		return Fragments{}, fmt.Errorf("render today fragment: %w", err)
	}

	views := make([]dayView, 0, len(days))
	for _, d := range days {
		views = append(views, viewOf(d))
	}
	var list strings.Builder
	if err := p.templates.ExecuteTemplate(&list, "days.tmpl", views); err != nil {
		return Fragments{}, fmt.Errorf("render days fragment: %w", err)
	}

	return Fragments{
		Today: template.HTML(today.String()),
		Days:  template.HTML(list.String()),
	}, nil
}

// RenderNoData renders the placeholder shown when the forecast came back
// empty.
func (p *Presenter) RenderNoData() (Fragments, error) {
	var buf strings.Builder
	if err := p.templates.ExecuteTemplate(&buf, "nodata.tmpl", nil); err != nil {
		return Fragments{}, fmt.Errorf("render nodata fragment: %w", err)
	}
	return Fragments{Today: template.HTML(buf.String())}, nil
}

func viewOf(d models.DailyForecast) dayView {
	return dayView{
		Weekday:   d.Date.Weekday().String(),
		DateLabel: dateLabel(d.Date),
		High:      strconv.FormatFloat(d.HighTemp, 'f', 1, 64),
		Low:       strconv.FormatFloat(d.LowTemp, 'f', 1, 64),
		Rain:      trimmed(d.Precipitation),
		Wind:      trimmed(d.WindSpeed),
	}
}

// dateLabel formats a calendar date as M/D/YYYY without zero padding.
func dateLabel(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}

// trimmed formats a float without trailing zeros (45.0 -> "45", 0.25 -> "0.25").
func trimmed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
