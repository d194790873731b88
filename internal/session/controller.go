// Package session holds per-browser dashboard state: the committed location,
// its forecast and context text, and the chat conversation. A registry maps
// session IDs to controllers and expires idle ones.
package session

import (
	"sync"
	"time"

	"github.com/weathersense/weathersense/internal/chat"
	"github.com/weathersense/weathersense/internal/models"
	"github.com/weathersense/weathersense/internal/observability"
)

// Controller owns one session's dashboard state. Location lookups are
// serialized through a monotonic token: each lookup takes a token when it
// starts, and its result commits only if no newer lookup has started since.
// The newest lookup always wins regardless of completion order.
type Controller struct {
	mu          sync.Mutex
	token       uint64
	location    *models.Location
	days        []models.DailyForecast
	contextText string
	chat        *chat.Session
	lastSeen    time.Time
}

// NewController returns a controller with no committed location.
func NewController() *Controller {
	return &Controller{
		chat:     chat.NewSession(),
		lastSeen: time.Now(),
	}
}

// BeginLookup marks the start of a location lookup and returns its token.
// Any lookup started earlier is superseded from this point on.
func (c *Controller) BeginLookup() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	c.lastSeen = time.Now()
	return c.token
}

// Commit installs a completed lookup's result. It reports whether the result
// was applied: a stale token (a newer lookup has started) is discarded and
// leaves all state untouched. On commit the chat transcript is reset, since
// the prior conversation referred to the old location.
func (c *Controller) Commit(token uint64, loc models.Location, days []models.DailyForecast, contextText string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		observability.StaleLookupsDiscardedTotal.Inc()
		return false
	}
	c.location = &loc
	c.days = days
	c.contextText = contextText
	c.chat.Reset()
	observability.ContextBuildsTotal.Inc()
	return true
}

// Snapshot returns the committed location (nil before the first commit), the
// forecast days, and the flattened context text.
func (c *Controller) Snapshot() (*models.Location, []models.DailyForecast, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()

	var loc *models.Location
	if c.location != nil {
		cp := *c.location
		loc = &cp
	}
	days := make([]models.DailyForecast, len(c.days))
	copy(days, c.days)
	return loc, days, c.contextText
}

// ContextText returns the flattened weather context, empty before the first
// committed lookup.
func (c *Controller) ContextText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	return c.contextText
}

// Chat returns the session's conversation.
func (c *Controller) Chat() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	return c.chat
}

func (c *Controller) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}
