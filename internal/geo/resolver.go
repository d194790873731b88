// Package geo resolves user-supplied locations (postal codes, device fixes)
// into coordinates and enriches them with human-readable place names.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/weathersense/weathersense/internal/models"
	"github.com/weathersense/weathersense/internal/observability"
)

var (
	ErrInvalidInput        = errors.New("invalid postal code")
	ErrNotFound            = errors.New("postal code not found")
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrTimeout             = errors.New("location request timed out")
	ErrLocationUnavailable = errors.New("location unavailable")
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// DeviceFix carries the browser's Geolocation API result: either a
// coordinate pair or the platform's error classification.
type DeviceFix struct {
	Latitude  float64
	Longitude float64
	// Err is the browser-reported failure class: "permission_denied",
	// "timeout", or "unavailable". Empty means the fix is usable.
	Err string
}

// Resolver turns postal codes and device fixes into Locations using the
// Zippopotam postal geocoding API and Nominatim reverse geocoding.
type Resolver struct {
	postalURL  string
	country    string
	reverseURL string
	userAgent  string
	client     *http.Client
}

// NewResolver creates a Resolver. userAgent is sent to Nominatim, which
// rejects anonymous clients.
func NewResolver(postalURL, country, reverseURL, userAgent string, timeout time.Duration) *Resolver {
	return &Resolver{
		postalURL:  strings.TrimRight(postalURL, "/"),
		country:    country,
		reverseURL: reverseURL,
		userAgent:  userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type postalResponse struct {
	Places []struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
		PlaceName string `json:"place name"`
		StateAbbr string `json:"state abbreviation"`
	} `json:"places"`
}

// ResolveFromPostalCode validates code against the 5-digit pattern before
// any network call, then queries the postal geocoding service. Returns
// ErrInvalidInput for malformed codes and ErrNotFound when the service has
// no match or answers with a non-success status.
func (r *Resolver) ResolveFromPostalCode(ctx context.Context, code string) (models.Location, error) {
	code = strings.TrimSpace(code)
	if !zipPattern.MatchString(code) {
		return models.Location{}, fmt.Errorf("%w: %q is not a 5-digit code", ErrInvalidInput, code)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", r.postalURL, r.country, code)
	start := time.Now()
	body, status, err := r.get(ctx, endpoint)
	observability.ObserveUpstreamCall(observability.UpstreamPostalCode, callStatus(status, err), time.Since(start).Seconds())
	if err != nil {
		return models.Location{}, fmt.Errorf("postal lookup: %w", err)
	}
	if status != http.StatusOK {
		return models.Location{}, fmt.Errorf("%w: HTTP %d", ErrNotFound, status)
	}

	var resp postalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Location{}, fmt.Errorf("parse postal response: %w", err)
	}
	if len(resp.Places) == 0 {
		return models.Location{}, fmt.Errorf("%w: no places for %s", ErrNotFound, code)
	}

	place := resp.Places[0]
	lat, latErr := strconv.ParseFloat(place.Latitude, 64)
	lon, lonErr := strconv.ParseFloat(place.Longitude, 64)
	if latErr != nil || lonErr != nil || !inRange(lat, lon) {
		return models.Location{}, fmt.Errorf("%w: unusable coordinates for %s", ErrNotFound, code)
	}

	loc := models.Location{Latitude: lat, Longitude: lon}
	if place.PlaceName != "" {
		loc.PlaceName = place.PlaceName
		if place.StateAbbr != "" {
			loc.PlaceName += ", " + place.StateAbbr
		}
	}
	return loc, nil
}

// ResolveFromDevice maps a browser geolocation result onto a Location. The
// place name comes from best-effort reverse geocoding and may be empty.
func (r *Resolver) ResolveFromDevice(ctx context.Context, fix DeviceFix) (models.Location, error) {
	switch fix.Err {
	case "":
	case "permission_denied":
		return models.Location{}, ErrPermissionDenied
	case "timeout":
		return models.Location{}, ErrTimeout
	default:
		return models.Location{}, ErrLocationUnavailable
	}

	if !inRange(fix.Latitude, fix.Longitude) {
		return models.Location{}, fmt.Errorf("%w: coordinates out of range", ErrLocationUnavailable)
	}

	return models.Location{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		PlaceName: r.ReverseGeocode(ctx, fix.Latitude, fix.Longitude),
	}, nil
}

type reverseResponse struct {
	Address struct {
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		Hamlet   string `json:"hamlet"`
		Locality string `json:"locality"`
		State    string `json:"state"`
		Country  string `json:"country"`
	} `json:"address"`
}

// ReverseGeocode returns a display name for the coordinates, or "" on any
// failure. Place-name enrichment is cosmetic and must never block the
// pipeline, so no error is returned.
func (r *Resolver) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	start := time.Now()
	body, status, err := r.get(ctx, r.reverseURL+"?"+params.Encode())
	observability.ObserveUpstreamCall(observability.UpstreamReverseGeo, callStatus(status, err), time.Since(start).Seconds())
	if err != nil || status != http.StatusOK {
		return ""
	}

	var resp reverseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}

	a := resp.Address
	place := a.City
	if place == "" {
		place = a.Town
	}
	if place == "" {
		place = a.Village
	}
	if place == "" {
		place = a.Hamlet
	}
	if place == "" {
		place = a.Locality
	}
	if place == "" {
		return ""
	}

	parts := []string{place}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

func (r *Resolver) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func callStatus(statusCode int, err error) string {
	if err != nil {
		return "error"
	}
	return observability.StatusLabel(statusCode)
}

func inRange(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
