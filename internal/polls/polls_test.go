package polls

import (
	"fmt"
	"testing"
	"time"

	"guildbot/internal/clock"
)

func TestCapacityEvictsOldest(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	registry := NewRegistry(3, 0).WithClock(fake)
	for i := 1; i <= 5; i++ {
		registry.Add(Poll{MessageID: fmt.Sprintf("m%d", i), Question: "q"})
		fake.Advance(time.Second)
	}
	if registry.Len() != 3 {
		t.Fatalf("expected 3 polls, got %d", registry.Len())
	}
	if _, ok := registry.Get("m2"); ok {
		t.Fatalf("expected m2 evicted")
	}
	if _, ok := registry.Get("m5"); !ok {
		t.Fatalf("expected m5 kept")
	}
}

func TestRetentionEvictsExpired(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	registry := NewRegistry(100, time.Hour).WithClock(fake)
	registry.Add(Poll{MessageID: "old"})
	fake.Advance(30 * time.Minute)
	registry.Add(Poll{MessageID: "new"})

	fake.Advance(31 * time.Minute)
	if _, ok := registry.Get("old"); ok {
		t.Fatalf("expected old poll expired")
	}
	if p, ok := registry.Get("new"); !ok || p.CreatedAt.IsZero() {
		t.Fatalf("expected new poll with creation time")
	}
}

func TestReAddDoesNotDuplicateOrder(t *testing.T) {
	registry := NewRegistry(2, 0)
	registry.Add(Poll{MessageID: "a"})
	registry.Add(Poll{MessageID: "a", Question: "edited"})
	registry.Add(Poll{MessageID: "b"})
	if registry.Len() != 2 {
		t.Fatalf("expected 2 polls, got %d", registry.Len())
	}
	if p, _ := registry.Get("a"); p.Question != "edited" {
		t.Fatalf("expected replaced poll, got %+v", p)
	}
}

func TestIsVote(t *testing.T) {
	if !IsVote("👍") || IsVote("🎉") {
		t.Fatalf("unexpected vote classification")
	}
}
