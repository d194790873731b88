package present

import (
	"strings"
	"testing"
	"time"

	"github.com/weathersense/weathersense/internal/models"
)

func day(y int, m time.Month, d int, high, low, rain, wind float64) models.DailyForecast {
	return models.DailyForecast{
		Date:          time.Date(y, m, d, 0, 0, 0, 0, time.Local),
		HighTemp:      high,
		LowTemp:       low,
		Precipitation: rain,
		WindSpeed:     wind,
	}
}

func TestBuildContextText_Format(t *testing.T) {
	loc := models.Location{Latitude: 38.97, Longitude: -95.24, PlaceName: "Lawrence, KS"}
	days := []models.DailyForecast{day(2025, time.December, 7, 45, 28, 0, 10)}

	got := BuildContextText(loc, days)
	want := "Lawrence, KS\nSunday (12/7/2025): High 45°F Low 28°F, Rain 0in, Wind 10 mph"
	if got != want {
		t.Errorf("BuildContextText = %q, want %q", got, want)
	}
}

func TestBuildContextText_NoPlaceName(t *testing.T) {
	days := []models.DailyForecast{day(2025, time.December, 8, 50.5, 30.2, 0.25, 12)}

	got := BuildContextText(models.Location{}, days)
	want := "Monday (12/8/2025): High 50.5°F Low 30.2°F, Rain 0.25in, Wind 12 mph"
	if got != want {
		t.Errorf("BuildContextText = %q, want %q", got, want)
	}
}

func TestBuildContextText_Deterministic(t *testing.T) {
	loc := models.Location{PlaceName: "Lawrence, KS"}
	days := []models.DailyForecast{
		day(2025, time.December, 7, 45, 28, 0, 10),
		day(2025, time.December, 8, 50, 30, 0.1, 12),
	}
	first := BuildContextText(loc, days)
	for i := 0; i < 10; i++ {
		if got := BuildContextText(loc, days); got != first {
			t.Fatalf("iteration %d produced different text", i)
		}
	}
	if lines := strings.Split(first, "\n"); len(lines) != 3 {
		t.Errorf("line count = %d, want 3 (place name + 2 days)", len(lines))
	}
}

func TestBuildContextText_EmptyForecast(t *testing.T) {
	if got := BuildContextText(models.Location{PlaceName: "Nowhere"}, nil); got != "" {
		t.Errorf("BuildContextText on empty forecast = %q, want empty", got)
	}
}

func TestRender_TodayMatchesFirstEntry(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	loc := models.Location{PlaceName: "Lawrence, KS"}
	days := []models.DailyForecast{
		day(2025, time.December, 7, 45, 28, 0, 10),
		day(2025, time.December, 8, 50, 30, 0.1, 12),
		day(2025, time.December, 9, 38, 22, 0, 20),
	}

	frags, err := p.Render(loc, days)
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}

	today := string(frags.Today)
	if !strings.Contains(today, "Sunday (12/7/2025)") {
		t.Errorf("today fragment missing first entry heading: %s", today)
	}
	if !strings.Contains(today, "High: 45.0°F") || !strings.Contains(today, "Low: 28.0°F") {
		t.Errorf("today fragment values do not match first entry: %s", today)
	}
	if !strings.Contains(today, "Lawrence, KS") {
		t.Errorf("today fragment missing place name: %s", today)
	}

	list := string(frags.Days)
	if got := strings.Count(list, `class="day-card"`); got != len(days) {
		t.Errorf("day card count = %d, want %d", got, len(days))
	}
	for _, weekday := range []string{"Sunday", "Monday", "Tuesday"} {
		if !strings.Contains(list, weekday) {
			t.Errorf("days fragment missing %s", weekday)
		}
	}
}

func TestRender_EscapesPlaceName(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	loc := models.Location{PlaceName: `<script>alert("x")</script>`}
	frags, err := p.Render(loc, []models.DailyForecast{day(2025, time.December, 7, 45, 28, 0, 10)})
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}
	if strings.Contains(string(frags.Today), "<script>") {
		t.Error("place name was not escaped")
	}
}

func TestRenderNoData(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	frags, err := p.RenderNoData()
	if err != nil {
		t.Fatalf("RenderNoData error = %v", err)
	}
	if !strings.Contains(string(frags.Today), "No daily data available") {
		t.Errorf("placeholder missing: %s", frags.Today)
	}
	if frags.Days != "" {
		t.Errorf("no-data days fragment = %q, want empty", frags.Days)
	}
}
