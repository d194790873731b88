package forecast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/weathersense/weathersense/internal/models"
)

const singleDayBody = `{"daily":{"time":["2025-12-07"],"temperature_2m_max":[45],"temperature_2m_min":[28],"precipitation_sum":[0],"wind_speed_10m_max":[10]}}`

func TestFetchForecast_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("daily") != "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max" {
			t.Errorf("daily = %q", q.Get("daily"))
		}
		if q.Get("timezone") != "auto" {
			t.Errorf("timezone = %q, want auto", q.Get("timezone"))
		}
		if q.Get("temperature_unit") != "fahrenheit" || q.Get("wind_speed_unit") != "mph" || q.Get("precipitation_unit") != "inch" {
			t.Errorf("unit params = %q/%q/%q, want imperial", q.Get("temperature_unit"), q.Get("wind_speed_unit"), q.Get("precipitation_unit"))
		}
		if q.Get("forecast_days") != "7" {
			t.Errorf("forecast_days = %q, want 7", q.Get("forecast_days"))
		}
		if q.Get("latitude") != "38.9717" {
			t.Errorf("latitude = %q", q.Get("latitude"))
		}
		w.Write([]byte(singleDayBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 7, 2*time.Second)
	days, err := client.FetchForecast(context.Background(), models.Location{Latitude: 38.9717, Longitude: -95.2353})
	if err != nil {
		t.Fatalf("FetchForecast error = %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(days))
	}
	d := days[0]
	if d.HighTemp != 45 || d.LowTemp != 28 || d.Precipitation != 0 || d.WindSpeed != 10 {
		t.Errorf("day = %+v, want 45/28/0/10", d)
	}
	if d.Date.Year() != 2025 || d.Date.Month() != time.December || d.Date.Day() != 7 {
		t.Errorf("date = %v, want 2025-12-07", d.Date)
	}
}

func TestFetchForecast_EmptyDaysIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily":{"time":[],"temperature_2m_max":[],"temperature_2m_min":[],"precipitation_sum":[],"wind_speed_10m_max":[]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 7, 2*time.Second).FetchForecast(context.Background(), models.Location{})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestFetchForecast_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 7, 2*time.Second).FetchForecast(context.Background(), models.Location{})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestFetchForecast_RaggedMetricArrays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two days, but only one wind value.
		w.Write([]byte(`{"daily":{"time":["2025-12-07","2025-12-08"],"temperature_2m_max":[45,50],"temperature_2m_min":[28,30],"precipitation_sum":[0,0.1],"wind_speed_10m_max":[10]}}`))
	}))
	defer srv.Close()

	days, err := NewClient(srv.URL, 7, 2*time.Second).FetchForecast(context.Background(), models.Location{})
	if err != nil {
		t.Fatalf("FetchForecast error = %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[1].WindSpeed != 0 {
		t.Errorf("missing wind value = %v, want zero value", days[1].WindSpeed)
	}
}

// TestParseLocalDate_NoOffByOneAcrossZones pins the documented correctness
// requirement: an API date string must keep its calendar components in the
// local zone, east and west of UTC alike. Parsing in UTC and converting
// would shift "2025-12-07" to the 6th in, say, Honolulu.
func TestParseLocalDate_NoOffByOneAcrossZones(t *testing.T) {
	saved := time.Local
	defer func() { time.Local = saved }()

	zones := []*time.Location{
		time.FixedZone("west", -10*60*60),
		time.FixedZone("east", 12*60*60),
		time.UTC,
	}
	for _, zone := range zones {
		time.Local = zone

		date, err := ParseLocalDate("2025-12-07")
		if err != nil {
			t.Fatalf("ParseLocalDate error in %v: %v", zone, err)
		}
		if date.Year() != 2025 || date.Month() != time.December || date.Day() != 7 {
			t.Errorf("zone %v: got %v, want 2025-12-07", zone, date)
		}
		if date.Weekday() != time.Sunday {
			t.Errorf("zone %v: weekday = %v, want Sunday", zone, date.Weekday())
		}
	}
}

func TestParseLocalDate_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "12/07/2025", "2025-13-01", "not-a-date"} {
		if _, err := ParseLocalDate(s); err == nil {
			t.Errorf("ParseLocalDate(%q) = nil error, want parse failure", s)
		}
	}
}
