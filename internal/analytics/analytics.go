package analytics

import (
	"sort"
	"sync"
	"time"
)

// Tally is a process-lifetime counter set. Nothing is persisted.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

func (t *Tally) Inc(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key]
}

func (t *Tally) Get(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key]
}

func (t *Tally) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, count := range t.counts {
		total += count
	}
	return total
}

type Entry struct {
	Key   string
	Count int
}

// Top returns the n highest counts, ties broken by key.
func (t *Tally) Top(n int) []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.counts))
	for key, count := range t.counts {
		entries = append(entries, Entry{Key: key, Count: count})
	}
	t.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

type Service struct {
	messages *Tally
	commands *Tally
	started  time.Time
	now      func() time.Time
}

func New() *Service {
	return &Service{
		messages: NewTally(),
		commands: NewTally(),
		started:  time.Now(),
		now:      time.Now,
	}
}

func (s *Service) RecordMessage(authorID string) {
	s.messages.Inc(authorID)
}

func (s *Service) RecordCommand(name string) {
	s.commands.Inc(name)
}

func (s *Service) Messages() *Tally { return s.messages }

func (s *Service) Commands() *Tally { return s.commands }

type Report struct {
	Messages    int
	Commands    int
	TopAuthors  []Entry
	TopCommands []Entry
	Uptime      time.Duration
}

func (s *Service) Report(top int) Report {
	return Report{
		Messages:    s.messages.Total(),
		Commands:    s.commands.Total(),
		TopAuthors:  s.messages.Top(top),
		TopCommands: s.commands.Top(top),
		Uptime:      s.now().Sub(s.started),
	}
}
