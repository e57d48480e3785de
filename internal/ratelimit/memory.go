package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/smallbiznis/spinwheel/internal/clock"
)

const shardCount = 64

type window struct {
	span time.Duration
	hits []time.Time
}

type shard struct {
	mu   sync.Mutex
	keys map[string]*window
}

// MemoryLimiter keeps a sliding log per key in process memory. Keys are
// spread across shards so unrelated clients never contend on one lock.
type MemoryLimiter struct {
	clock  clock.Clock
	shards [shardCount]*shard
}

func NewMemoryLimiter(clk clock.Clock) *MemoryLimiter {
	if clk == nil {
		clk = clock.New()
	}
	l := &MemoryLimiter{clock: clk}
	for i := range l.shards {
		l.shards[i] = &shard{keys: make(map[string]*window)}
	}
	return l
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

func (l *MemoryLimiter) Admit(ctx context.Context, key string, policy Policy) (Decision, error) {
	if key == "" {
		return Decision{}, ErrEmptyKey
	}
	if err := policy.validate(); err != nil {
		return Decision{}, err
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	now := l.clock.Now()
	s := l.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.keys[key]
	if !ok {
		w = &window{}
		s.keys[key] = w
	}
	w.span = policy.Window
	w.hits = evict(w.hits, now, policy.Window)

	if len(w.hits) >= policy.Limit {
		return Decision{
			Allowed:    false,
			Limit:      policy.Limit,
			Remaining:  0,
			RetryAfter: w.hits[0].Add(policy.Window).Sub(now),
		}, nil
	}

	w.hits = append(w.hits, now)
	return Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: remaining(policy.Limit, len(w.hits)),
	}, nil
}

// Sweep drops keys whose log has fully expired and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, w := range s.keys {
			w.hits = evict(w.hits, now, w.span)
			if len(w.hits) == 0 {
				delete(s.keys, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += len(s.keys)
		s.mu.Unlock()
	}
	return total
}

// evict keeps the timestamps no older than span. Hits are appended in clock
// order, so the retained ones form a suffix.
func evict(hits []time.Time, now time.Time, span time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) > span {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
