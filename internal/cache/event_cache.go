package cache

import (
	"strings"
	"time"

	"github.com/smallbiznis/spinwheel/internal/clock"
	eventdomain "github.com/smallbiznis/spinwheel/internal/event/domain"
	"go.uber.org/fx"
)

const defaultEventTTL = 30 * time.Second

var Module = fx.Module("cache",
	fx.Provide(NewEventCache),
)

// EventCache stores hot-path event lookups for the spin endpoint. Misses are
// never cached so a freshly seeded event becomes visible immediately.
type EventCache interface {
	GetEvent(slug string) (*eventdomain.Event, bool)
	SetEvent(slug string, event *eventdomain.Event)
	InvalidateEvent(slug string)
}

type eventCache struct {
	events Cache[string, eventdomain.Event]
	ttl    time.Duration
}

func NewEventCache(clk clock.Clock) EventCache {
	now := time.Now
	if clk != nil {
		now = clk.Now
	}
	return &eventCache{
		events: NewTTLCacheWithClock[string, eventdomain.Event](now),
		ttl:    defaultEventTTL,
	}
}

func (c *eventCache) GetEvent(slug string) (*eventdomain.Event, bool) {
	event, ok := c.events.Get(cacheKey(slug))
	if !ok {
		return nil, false
	}
	return &event, true
}

func (c *eventCache) SetEvent(slug string, event *eventdomain.Event) {
	if event == nil || event.ID == 0 {
		return
	}
	c.events.Set(cacheKey(slug), *event, c.ttl)
}

func (c *eventCache) InvalidateEvent(slug string) {
	c.events.Delete(cacheKey(slug))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
