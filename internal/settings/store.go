// Package settings persists per-guild options in a single JSON document.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"guildbot/internal/utils"

	"go.uber.org/zap"
)

const (
	KeyPrefix               = "prefix"
	KeyWelcomeEnabled       = "welcome_enabled"
	KeyWelcomeMessage       = "welcome_message"
	KeyWelcomeChannel       = "welcome_channel"
	KeyLogEnabled           = "log_enabled"
	KeyLogChannel           = "log_channel"
	KeyAutomodEnabled       = "automod_enabled"
	KeyAutomodBannedWords   = "automod_banned_words"
	KeyAutomodWarnThreshold = "automod_warn_threshold"
	KeyAutomodMuteMinutes   = "automod_mute_minutes"
)

// Defaults returns the global option defaults. A nil value means "unset".
func Defaults() map[string]any {
	return map[string]any{
		KeyPrefix:               "!",
		KeyWelcomeEnabled:       true,
		KeyWelcomeMessage:       "Welcome {user} to {server}!",
		KeyWelcomeChannel:       nil,
		KeyLogEnabled:           false,
		KeyLogChannel:           nil,
		KeyAutomodEnabled:       false,
		KeyAutomodBannedWords:   []string{},
		KeyAutomodWarnThreshold: 3,
		KeyAutomodMuteMinutes:   10,
	}
}

// Store maps guild ids to option overrides. Every mutation rewrites the whole file.
type Store struct {
	mu       sync.RWMutex
	path     string
	logger   *zap.Logger
	defaults map[string]any
	guilds   map[string]map[string]any
	// readOnly is set when the file exists but could not be read or set aside.
	readOnly bool
}

func Open(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:     path,
		logger:   logger,
		defaults: Defaults(),
		guilds:   make(map[string]map[string]any),
	}
	s.load()
	return s
}

// WithDefault replaces the global default for key.
func (s *Store) WithDefault(key string, value any) *Store {
	s.mu.Lock()
	s.defaults[key] = value
	s.mu.Unlock()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.readOnly = true
			s.logger.Error("guild config load failed, changes will not be saved", zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	// Numbers decode as json.Number to keep snowflake ids exact.
	var raw map[string]map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		s.quarantine(err)
		return
	}
	for guildID, options := range raw {
		record := make(map[string]any, len(options))
		for key, value := range options {
			if _, known := s.defaults[key]; !known {
				continue
			}
			record[key] = value
		}
		s.guilds[guildID] = record
	}
}

// Get returns the guild value for key, else the global default.
func (s *Store) Get(guildID, key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.guilds[guildID]; ok {
		if value, ok := record[key]; ok {
			return value
		}
	}
	return s.defaults[key]
}

func (s *Store) Set(guildID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.guilds[guildID]
	if !ok {
		record = make(map[string]any)
		s.guilds[guildID] = record
	}
	record[key] = value
	s.saveLocked()
}

// GetAll returns defaults overlaid with the guild overrides. The result is a copy.
func (s *Store) GetAll(guildID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]any, len(s.defaults))
	for key, value := range s.defaults {
		result[key] = copyValue(value)
	}
	for key, value := range s.guilds[guildID] {
		result[key] = copyValue(value)
	}
	return result
}

// Reset deletes one key, or the whole guild record when key is empty.
func (s *Store) Reset(guildID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.guilds[guildID]
	if !ok {
		return
	}
	if key == "" {
		delete(s.guilds, guildID)
	} else {
		delete(record, key)
	}
	s.saveLocked()
}

// String also accepts numeric values, which is how hand-edited files often store channel ids.
func (s *Store) String(guildID, key string) string {
	if value, ok := toString(s.Get(guildID, key)); ok {
		return value
	}
	value, _ := toString(s.defaultValue(key))
	return value
}

func (s *Store) Bool(guildID, key string) bool {
	if value, ok := s.Get(guildID, key).(bool); ok {
		return value
	}
	value, _ := s.defaultValue(key).(bool)
	return value
}

func (s *Store) Int(guildID, key string) int {
	if value, ok := toInt(s.Get(guildID, key)); ok {
		return value
	}
	value, _ := toInt(s.defaultValue(key))
	return value
}

func (s *Store) Strings(guildID, key string) []string {
	if value, ok := toStrings(s.Get(guildID, key)); ok {
		return value
	}
	value, _ := toStrings(s.defaultValue(key))
	return value
}

func (s *Store) defaultValue(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[key]
}

func (s *Store) quarantine(cause error) {
	moved, err := utils.Quarantine(s.path)
	if err != nil {
		s.readOnly = true
		s.logger.Error("guild config is not valid json, changes will not be saved",
			zap.String("path", s.path), zap.NamedError("decode_error", cause), zap.Error(err))
		return
	}
	s.logger.Error("guild config is not valid json, starting empty",
		zap.String("path", s.path), zap.String("moved_to", moved), zap.Error(cause))
}

func (s *Store) saveLocked() {
	if s.readOnly {
		s.logger.Warn("guild config not saved, file is read-only for this run", zap.String("path", s.path))
		return
	}
	data, err := json.MarshalIndent(s.guilds, "", "    ")
	if err != nil {
		s.logger.Warn("guild config encode failed", zap.Error(err))
		return
	}
	if err := utils.WriteFileAtomic(s.path, data); err != nil {
		s.logger.Warn("guild config save failed", zap.String("path", s.path), zap.Error(err))
	}
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

func copyValue(value any) any {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		return append([]any(nil), v...)
	default:
		return v
	}
}
