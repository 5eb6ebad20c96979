package customcmd

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
	path := filepath.Join(t.TempDir(), "custom_commands.json")
	return Open(path, zap.NewNop()), path
}

func TestAddRejectsDuplicateName(t *testing.T) {
	store, _ := newStore(t)
	if !store.Add("g1", "foo", "bar", "u1") {
		t.Fatalf("expected first add to succeed")
	}
	if store.Add("g1", "FOO", "baz", "u2") {
		t.Fatalf("expected case-insensitive duplicate to fail")
	}
	if names := store.List("g1"); len(names) != 1 {
		t.Fatalf("expected one command, got %v", names)
	}
	if !store.Add("g2", "foo", "other guild", "u1") {
		t.Fatalf("expected same name in another guild to succeed")
	}
}

func TestGetCountsUses(t *testing.T) {
	store, path := newStore(t)
	store.Add("g1", "foo", "bar", "u1")
	for i := 0; i < 4; i++ {
		if response, ok := store.Get("g1", "foo"); !ok || response != "bar" {
			t.Fatalf("unexpected get result %q %v", response, ok)
		}
	}

	reopened := Open(path, zap.NewNop())
	details, ok := reopened.Details("g1", "foo")
	if !ok {
		t.Fatalf("expected persisted command")
	}
	if details.Uses != 4 {
		t.Fatalf("expected 4 uses, got %d", details.Uses)
	}
	if details.CreatorID != "u1" || details.CreatedAt == "" {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newStore(t)
	if _, ok := store.Get("g1", "nope"); ok {
		t.Fatalf("expected missing command")
	}
	if store.Edit("g1", "nope", "x") || store.Delete("g1", "nope") {
		t.Fatalf("expected edit and delete of missing command to fail")
	}
	if names := store.List("unknown"); len(names) != 0 {
		t.Fatalf("expected empty list, got %v", names)
	}
}

func TestEditAndDelete(t *testing.T) {
	store, _ := newStore(t)
	store.Add("g1", "Greet", "hi", "u1")
	if !store.Edit("g1", "greet", "hello") {
		t.Fatalf("expected edit to succeed")
	}
	if response, _ := store.Get("g1", "GREET"); response != "hello" {
		t.Fatalf("expected edited response, got %q", response)
	}
	if !store.Delete("g1", "greet") {
		t.Fatalf("expected delete to succeed")
	}
	if store.Has("g1", "greet") {
		t.Fatalf("expected command removed")
	}
}

func TestRandomExpansion(t *testing.T) {
	store, _ := newStore(t)
	store.Add("g1", "coin", "{random:a|b}", "u1")
	for i := 0; i < 50; i++ {
		response, _ := store.Get("g1", "coin")
		if response != "a" && response != "b" {
			t.Fatalf("unexpected expansion %q", response)
		}
	}
}

func TestExpandEachTokenIndependently(t *testing.T) {
	calls := 0
	pick := func(n int) int {
		calls++
		return (calls - 1) % n
	}
	got := expand("{random:x|y} and {random:x|y} {unclosed {random:z", pick)
	if got != "x and y {unclosed {random:z" {
		t.Fatalf("unexpected expansion %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 picks, got %d", calls)
	}
}

func TestListSorted(t *testing.T) {
	store, _ := newStore(t)
	store.Add("g1", "zeta", "z", "u1")
	store.Add("g1", "Alpha", "a", "u1")
	names := store.List("g1")
	if strings.Join(names, ",") != "alpha,zeta" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestLoadKeepsLegacyTimestampsAcrossAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom_commands.json")
	doc := `{"1": {
		"hello": {"response": "hi", "creator_id": "u1", "uses": 3, "created_at": "2024-05-01 10:11:12.123456"},
		"bye": {"response": "later", "creator_id": "u2", "uses": 0, "created_at": "2024-05-01T10:11:12Z"},
		"odd": {"response": "?", "creator_id": "u3", "uses": 1, "created_at": "yesterday"}
	}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := Open(path, zap.NewNop())
	if names := store.List("1"); strings.Join(names, ",") != "bye,hello,odd" {
		t.Fatalf("expected loaded commands, got %v", names)
	}
	if !store.Add("1", "new", "fresh", "u4") {
		t.Fatalf("expected add to succeed")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var saved map[string]map[string]map[string]any
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("saved file invalid: %v", err)
	}
	if len(saved["1"]) != 4 {
		t.Fatalf("expected 4 commands on disk, got %v", saved["1"])
	}
	if got := saved["1"]["hello"]["created_at"]; got != "2024-05-01 10:11:12.123456" {
		t.Fatalf("legacy timestamp rewritten: %v", got)
	}
	if got := saved["1"]["odd"]["created_at"]; got != "yesterday" {
		t.Fatalf("unparseable timestamp not kept verbatim: %v", got)
	}
	if got := saved["1"]["hello"]["uses"]; got != float64(3) {
		t.Fatalf("uses lost: %v", got)
	}
}

func TestTimestampLayouts(t *testing.T) {
	cases := map[Timestamp]string{
		"2024-05-01 10:11:12.123456":     "2024-05-01",
		"2024-05-01 23:59:59":            "2024-05-01",
		"2024-05-01T10:11:12Z":           "2024-05-01",
		"2024-05-01 10:11:12.5+02:00":    "2024-05-01",
		"2024-05-01T10:11:12.123456789Z": "2024-05-01",
		"yesterday":                      "yesterday",
		"":                               "unknown",
	}
	for ts, want := range cases {
		if got := ts.Date(); got != want {
			t.Fatalf("%q: expected %s, got %s", ts, want, got)
		}
	}
	var ts Timestamp
	if err := json.Unmarshal([]byte(`1714558272`), &ts); err != nil || ts != "1714558272" {
		t.Fatalf("expected raw number kept, got %q %v", ts, err)
	}
}

func TestCorruptFileIsSetAsideBeforeSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom_commands.json")
	if err := os.WriteFile(path, []byte(`{"1": {"hello": `), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := Open(path, zap.NewNop())
	if names := store.List("1"); len(names) != 0 {
		t.Fatalf("expected empty store, got %v", names)
	}
	store.Add("1", "new", "fresh", "u1")

	kept, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("expected quarantined copy: %v", err)
	}
	if string(kept) != `{"1": {"hello": ` {
		t.Fatalf("quarantined copy changed: %q", kept)
	}
	if !Open(path, zap.NewNop()).Has("1", "new") {
		t.Fatalf("expected new command saved to a fresh file")
	}
}
