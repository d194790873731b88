// Package forecast retrieves multi-day forecasts from Open-Meteo and
// normalizes them into the day-by-day model used by the presenter.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/weathersense/weathersense/internal/models"
	"github.com/weathersense/weathersense/internal/observability"
)

// ErrNoData is returned when the forecast API answers with zero days. This
// is a recoverable, user-visible state (render a placeholder), not a fault.
var ErrNoData = errors.New("no forecast data available")

// ErrUpstream wraps transport and non-success responses from the API.
var ErrUpstream = errors.New("forecast upstream failure")

// Client calls the Open-Meteo daily forecast API.
type Client struct {
	apiURL string
	days   int
	client *http.Client
}

// NewClient creates a forecast client requesting the given number of days.
func NewClient(apiURL string, days int, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		days:   days,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type openMeteoResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WindSpeedMax     []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// FetchForecast retrieves the daily forecast for the location in imperial
// units, aligned to the location's local time zone. The returned sequence is
// ordered ascending by date with the current local day first, as delivered
// by the API.
func (c *Client) FetchForecast(ctx context.Context, loc models.Location) ([]models.DailyForecast, error) {
	req, err := c.buildRequest(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveUpstreamCall(observability.UpstreamForecast, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	observability.ObserveUpstreamCall(observability.UpstreamForecast, observability.StatusLabel(resp.StatusCode), time.Since(start).Seconds())
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openMeteoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse forecast response: %w", err)
	}

	if len(apiResp.Daily.Time) == 0 {
		return nil, ErrNoData
	}

	days := make([]models.DailyForecast, 0, len(apiResp.Daily.Time))
	for i, dateStr := range apiResp.Daily.Time {
		date, err := ParseLocalDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse forecast date %q: %w", dateStr, err)
		}
		days = append(days, models.DailyForecast{
			Date:          date,
			HighTemp:      metricAt(apiResp.Daily.TemperatureMax, i),
			LowTemp:       metricAt(apiResp.Daily.TemperatureMin, i),
			Precipitation: metricAt(apiResp.Daily.PrecipitationSum, i),
			WindSpeed:     metricAt(apiResp.Daily.WindSpeedMax, i),
		})
	}
	return days, nil
}

func (c *Client) buildRequest(ctx context.Context, loc models.Location) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max")
	params.Set("timezone", "auto")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("wind_speed_unit", "mph")
	params.Set("precipitation_unit", "inch")
	params.Set("forecast_days", strconv.Itoa(c.days))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// ParseLocalDate parses an API date string ("2006-01-02") as a local
// calendar date, not UTC. Parsing in UTC and converting would shift the
// displayed day for zones west of UTC, so the calendar components must be
// preserved exactly.
func ParseLocalDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// metricAt tolerates ragged metric arrays: a day the API returned without a
// metric value gets the zero value instead of panicking.
func metricAt(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}
