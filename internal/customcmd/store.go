// Package customcmd stores guild-defined text commands in a JSON document.
package customcmd

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"guildbot/internal/utils"

	"go.uber.org/zap"
)

type Command struct {
	Response  string    `json:"response"`
	CreatorID string    `json:"creator_id"`
	Uses      int       `json:"uses"`
	CreatedAt Timestamp `json:"created_at"`
}

// Timestamp keeps created_at exactly as stored. Files written by older tooling use
// "2006-01-02 15:04:05.999999" instead of RFC 3339.
type Timestamp string

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts any JSON value; non-strings are kept as their raw text.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = Timestamp(text)
		return nil
	}
	*t = Timestamp(data)
	return nil
}

func (t Timestamp) Time() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, string(t)); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Date renders the day part, falling back to the stored text.
func (t Timestamp) Date() string {
	if parsed, ok := t.Time(); ok {
		return parsed.Format("2006-01-02")
	}
	if t == "" {
		return "unknown"
	}
	return string(t)
}

type Store struct {
	mu       sync.Mutex
	path     string
	logger   *zap.Logger
	now      func() time.Time
	pick     func(n int) int
	commands map[string]map[string]*Command
	// readOnly is set when the file exists but could not be read or set aside.
	readOnly bool
}

func Open(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:     path,
		logger:   logger,
		now:      time.Now,
		pick:     rand.IntN,
		commands: make(map[string]map[string]*Command),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.readOnly = true
			s.logger.Error("custom commands load failed, changes will not be saved", zap.String("path", s.path), zap.Error(err))
		}
		return
	}
	var raw map[string]map[string]*Command
	if err := json.Unmarshal(data, &raw); err != nil {
		s.quarantine(err)
		return
	}
	for guildID, commands := range raw {
		guild := make(map[string]*Command, len(commands))
		for name, cmd := range commands {
			if cmd == nil {
				continue
			}
			guild[strings.ToLower(name)] = cmd
		}
		s.commands[guildID] = guild
	}
}

// Add registers a new command. It returns false when the name is taken in the guild.
func (s *Store) Add(guildID, name, response, creatorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.ToLower(name)
	guild := s.commands[guildID]
	if guild == nil {
		guild = make(map[string]*Command)
		s.commands[guildID] = guild
	}
	if _, exists := guild[name]; exists {
		return false
	}
	guild[name] = &Command{
		Response:  response,
		CreatorID: creatorID,
		Uses:      0,
		CreatedAt: NewTimestamp(s.now()),
	}
	s.saveLocked()
	return true
}

func (s *Store) Edit(guildID, name, response string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.lookupLocked(guildID, name)
	if cmd == nil {
		return false
	}
	cmd.Response = response
	s.saveLocked()
	return true
}

func (s *Store) Delete(guildID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupLocked(guildID, name) == nil {
		return false
	}
	delete(s.commands[guildID], strings.ToLower(name))
	s.saveLocked()
	return true
}

// Get counts a use of the command and returns its expanded response.
func (s *Store) Get(guildID, name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.lookupLocked(guildID, name)
	if cmd == nil {
		return "", false
	}
	cmd.Uses++
	s.saveLocked()
	return expand(cmd.Response, s.pick), true
}

// Details returns a copy of the stored record without counting a use.
func (s *Store) Details(guildID, name string) (Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.lookupLocked(guildID, name)
	if cmd == nil {
		return Command{}, false
	}
	return *cmd, true
}

// Has reports whether name is registered, without counting a use.
func (s *Store) Has(guildID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(guildID, name) != nil
}

func (s *Store) List(guildID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.commands[guildID]))
	for name := range s.commands[guildID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) lookupLocked(guildID, name string) *Command {
	guild := s.commands[guildID]
	if guild == nil {
		return nil
	}
	return guild[strings.ToLower(name)]
}

// quarantine sets an undecodable file aside so the next save cannot overwrite it.
func (s *Store) quarantine(cause error) {
	moved, err := utils.Quarantine(s.path)
	if err != nil {
		s.readOnly = true
		s.logger.Error("custom commands file is not valid json, changes will not be saved",
			zap.String("path", s.path), zap.NamedError("decode_error", cause), zap.Error(err))
		return
	}
	s.logger.Error("custom commands file is not valid json, starting empty",
		zap.String("path", s.path), zap.String("moved_to", moved), zap.Error(cause))
}

func (s *Store) saveLocked() {
	if s.readOnly {
		s.logger.Warn("custom commands not saved, file is read-only for this run", zap.String("path", s.path))
		return
	}
	data, err := json.MarshalIndent(s.commands, "", "    ")
	if err != nil {
		s.logger.Warn("custom commands encode failed", zap.Error(err))
		return
	}
	if err := utils.WriteFileAtomic(s.path, data); err != nil {
		s.logger.Warn("custom commands save failed", zap.String("path", s.path), zap.Error(err))
	}
}

var randomToken = regexp.MustCompile(`\{random:([^}]+)\}`)

// expand replaces each {random:a|b|c} token with one option picked independently.
func expand(template string, pick func(n int) int) string {
	return randomToken.ReplaceAllStringFunc(template, func(token string) string {
		options := strings.Split(randomToken.FindStringSubmatch(token)[1], "|")
		return options[pick(len(options))]
	})
}
