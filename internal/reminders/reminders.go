// Package reminders keeps per-user pending reminders until a sweep delivers them.
package reminders

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	MinMinutes = 1
	MaxMinutes = 1440
)

var (
	ErrInvalidMinutes = errors.New("minutes must be a whole number between 1 and 1440")
	ErrMissingText    = errors.New("reminder text is required")
)

type Reminder struct {
	UserID    string
	ChannelID string
	Text      string
	FireAt    time.Time
}

type Store struct {
	mu      sync.Mutex
	pending map[string][]Reminder
}

func New() *Store {
	return &Store{pending: make(map[string][]Reminder)}
}

// ParseMinutes validates the minutes argument of the remind command.
func ParseMinutes(arg string) (time.Duration, error) {
	minutes, err := strconv.Atoi(arg)
	if err != nil || minutes < MinMinutes || minutes > MaxMinutes {
		return 0, ErrInvalidMinutes
	}
	return time.Duration(minutes) * time.Minute, nil
}

// ParseRequest splits "<minutes> <text>" into a delay and the reminder text.
func ParseRequest(input string) (time.Duration, string, error) {
	input = strings.TrimSpace(input)
	minutes, text := input, ""
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		minutes, text = input[:i], strings.TrimSpace(input[i:])
	}
	delay, err := ParseMinutes(minutes)
	if err != nil {
		return 0, "", err
	}
	if text == "" {
		return 0, "", ErrMissingText
	}
	return delay, text, nil
}

// Add keeps each user's list ordered by fire time; equal times keep insertion order.
func (s *Store) Add(userID string, r Reminder) {
	r.UserID = userID
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.pending[userID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].FireAt.After(r.FireAt) })
	list = append(list, Reminder{})
	copy(list[idx+1:], list[idx:])
	list[idx] = r
	s.pending[userID] = list
}

// Sweep removes and returns every reminder due at now. Each reminder is returned once.
func (s *Store) Sweep(now time.Time) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Reminder
	for userID, list := range s.pending {
		idx := sort.Search(len(list), func(i int) bool { return list[i].FireAt.After(now) })
		if idx == 0 {
			continue
		}
		due = append(due, list[:idx]...)
		if idx == len(list) {
			delete(s.pending, userID)
			continue
		}
		s.pending[userID] = append([]Reminder(nil), list[idx:]...)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	return due
}

func (s *Store) Pending(userID string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reminder(nil), s.pending[userID]...)
}

// Users counts users with at least one pending reminder.
func (s *Store) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
