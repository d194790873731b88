package models

import "time"

// Location is a resolved geographic position. A new Location replaces the
// prior one on each lookup; no history is retained.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"placeName,omitempty"`
}

// DailyForecast holds one calendar day's aggregated metrics in imperial
// units (Fahrenheit, inches, mph). Date is a local calendar date in the
// location's time zone.
type DailyForecast struct {
	Date          time.Time `json:"date"`
	HighTemp      float64   `json:"highTemp"`
	LowTemp       float64   `json:"lowTemp"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"windSpeed"`
}

// ChatRole identifies the author of a chat turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one entry in a chat transcript.
type ChatTurn struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// PromptKind selects which template a prompt is built from.
type PromptKind string

const (
	PromptSummary PromptKind = "summary"
	PromptChat    PromptKind = "chat"
)
