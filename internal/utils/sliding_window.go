package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	return len(w.hits)
}

func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// WindowSet holds one sliding window per key, created on first use.
type WindowSet struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*SlidingWindow
}

func NewWindowSet(window time.Duration) *WindowSet {
	return &WindowSet{window: window, windows: make(map[string]*SlidingWindow)}
}

func (s *WindowSet) Add(key string, now time.Time) int {
	return s.get(key).Add(now)
}

func (s *WindowSet) Count(key string, now time.Time) int {
	s.mu.Lock()
	w, ok := s.windows[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return w.Count(now)
}

func (s *WindowSet) Reset(key string) {
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
}

func (s *WindowSet) get(key string) *SlidingWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		w = NewSlidingWindow(s.window)
		s.windows[key] = w
	}
	return w
}
