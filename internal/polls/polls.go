// Package polls tracks reaction polls by message id with bounded retention.
package polls

import (
	"sync"
	"time"

	"guildbot/internal/clock"
)

var Reactions = []string{"👍", "👎", "🤷"}

// IsVote reports whether emoji is one of the poll reactions.
func IsVote(emoji string) bool {
	for _, reaction := range Reactions {
		if reaction == emoji {
			return true
		}
	}
	return false
}

type Poll struct {
	MessageID string
	ChannelID string
	GuildID   string
	CreatorID string
	Question  string
	CreatedAt time.Time
}

// Registry drops the oldest poll past capacity and any poll older than retention.
type Registry struct {
	mu        sync.Mutex
	capacity  int
	retention time.Duration
	clock     clock.Clock
	order     []string
	polls     map[string]Poll
}

func NewRegistry(capacity int, retention time.Duration) *Registry {
	return &Registry{
		capacity:  capacity,
		retention: retention,
		clock:     clock.Real(),
		polls:     make(map[string]Poll),
	}
}

func (r *Registry) WithClock(c clock.Clock) *Registry {
	r.clock = c
	return r
}

func (r *Registry) Add(p Poll) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.clock.Now()
	}
	if _, exists := r.polls[p.MessageID]; !exists {
		r.order = append(r.order, p.MessageID)
	}
	r.polls[p.MessageID] = p
	r.evictLocked(r.clock.Now())
}

func (r *Registry) Get(messageID string) (Poll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(r.clock.Now())
	p, ok := r.polls[messageID]
	return p, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(r.clock.Now())
	return len(r.polls)
}

func (r *Registry) evictLocked(now time.Time) {
	drop := 0
	for _, id := range r.order {
		expired := r.retention > 0 && now.Sub(r.polls[id].CreatedAt) > r.retention
		overCapacity := r.capacity > 0 && len(r.order)-drop > r.capacity
		if !expired && !overCapacity {
			break
		}
		delete(r.polls, id)
		drop++
	}
	if drop > 0 {
		r.order = append([]string(nil), r.order[drop:]...)
	}
}
