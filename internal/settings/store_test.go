package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guild_config.json")
	return Open(path, zap.NewNop()), path
}

func TestGetReturnsDefaultsForUnknownGuild(t *testing.T) {
	store, _ := newStore(t)
	for key, want := range Defaults() {
		got := store.Get("g1", key)
		if key == KeyAutomodBannedWords {
			if words := store.Strings("g1", key); len(words) != 0 {
				t.Fatalf("expected no banned words, got %v", words)
			}
			continue
		}
		if got != want {
			t.Fatalf("key %s: expected %v, got %v", key, want, got)
		}
	}
	if store.Get("g1", "no_such_key") != nil {
		t.Fatalf("expected nil for unknown key")
	}
}

func TestSetPersistsAndReset(t *testing.T) {
	store, path := newStore(t)
	store.Set("g1", KeyPrefix, "$")
	if got := store.String("g1", KeyPrefix); got != "$" {
		t.Fatalf("expected $, got %q", got)
	}

	reopened := Open(path, zap.NewNop())
	if got := reopened.String("g1", KeyPrefix); got != "$" {
		t.Fatalf("expected persisted $, got %q", got)
	}

	store.Reset("g1", KeyPrefix)
	if got := store.String("g1", KeyPrefix); got != "!" {
		t.Fatalf("expected default prefix after reset, got %q", got)
	}
}

func TestResetWholeGuild(t *testing.T) {
	store, path := newStore(t)
	store.Set("g1", KeyWelcomeEnabled, false)
	store.Set("g1", KeyAutomodMuteMinutes, 30)
	store.Reset("g1", "")

	if !store.Bool("g1", KeyWelcomeEnabled) {
		t.Fatalf("expected welcome default true")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["g1"]; ok {
		t.Fatalf("expected guild removed from file")
	}
}

func TestResetUnknownGuildIsNoop(t *testing.T) {
	store, path := newStore(t)
	store.Reset("missing", "")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file written, got %v", err)
	}
}

func TestTypedAccessorsAfterReload(t *testing.T) {
	store, path := newStore(t)
	store.Set("g1", KeyAutomodWarnThreshold, 5)
	store.Set("g1", KeyAutomodBannedWords, []string{"foo", "bar"})

	reopened := Open(path, zap.NewNop())
	if got := reopened.Int("g1", KeyAutomodWarnThreshold); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	words := reopened.Strings("g1", KeyAutomodBannedWords)
	if len(words) != 2 || words[0] != "foo" {
		t.Fatalf("unexpected words %v", words)
	}
}

func TestWrongTypeFallsBackToDefault(t *testing.T) {
	store, _ := newStore(t)
	store.Set("g1", KeyAutomodMuteMinutes, "ten")
	if got := store.Int("g1", KeyAutomodMuteMinutes); got != 10 {
		t.Fatalf("expected default 10, got %d", got)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guild_config.json")
	doc := `{"g1": {"prefix": "?", "favourite_colour": "blue"}}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := Open(path, zap.NewNop())
	all := store.GetAll("g1")
	if all[KeyPrefix] != "?" {
		t.Fatalf("expected prefix override, got %v", all[KeyPrefix])
	}
	if _, ok := all["favourite_colour"]; ok {
		t.Fatalf("unknown key should be ignored")
	}
}

func TestGetAllIsSnapshot(t *testing.T) {
	store, _ := newStore(t)
	store.Set("g1", KeyAutomodBannedWords, []string{"foo"})
	all := store.GetAll("g1")
	all[KeyPrefix] = "changed"
	words := all[KeyAutomodBannedWords].([]string)
	words[0] = "mutated"

	if store.String("g1", KeyPrefix) != "!" {
		t.Fatalf("snapshot mutation leaked into store")
	}
	if store.Strings("g1", KeyAutomodBannedWords)[0] != "foo" {
		t.Fatalf("slice mutation leaked into store")
	}
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "guild_config.json")
	store := Open(path, zap.NewNop())
	store.Set("g1", KeyPrefix, "$")
	if got := store.String("g1", KeyPrefix); got != "$" {
		t.Fatalf("expected in-memory value after failed write, got %q", got)
	}
}

func TestWithDefault(t *testing.T) {
	store, _ := newStore(t)
	store.WithDefault(KeyPrefix, ">")
	if got := store.String("g2", KeyPrefix); got != ">" {
		t.Fatalf("expected overridden default, got %q", got)
	}
}

func TestNumericChannelIDSurvivesReloadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guild_config.json")
	doc := `{"1": {"welcome_channel": 123456789012345678, "automod_mute_minutes": 15}}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := Open(path, zap.NewNop())
	if got := store.String("1", KeyWelcomeChannel); got != "123456789012345678" {
		t.Fatalf("expected numeric channel id as text, got %q", got)
	}
	if got := store.Int("1", KeyAutomodMuteMinutes); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}

	store.Set("1", KeyPrefix, "$")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "123456789012345678") {
		t.Fatalf("channel id corrupted on save: %s", data)
	}
	if got := Open(path, zap.NewNop()).String("1", KeyWelcomeChannel); got != "123456789012345678" {
		t.Fatalf("expected id after second reload, got %q", got)
	}
}

func TestCorruptFileIsSetAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guild_config.json")
	if err := os.WriteFile(path, []byte(`{"1": [`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := Open(path, zap.NewNop())
	store.Set("1", KeyPrefix, "$")

	kept, err := os.ReadFile(path + ".corrupt")
	if err != nil || string(kept) != `{"1": [` {
		t.Fatalf("expected untouched quarantined copy, got %q %v", kept, err)
	}
	if got := Open(path, zap.NewNop()).String("1", KeyPrefix); got != "$" {
		t.Fatalf("expected fresh file with new value, got %q", got)
	}
}
