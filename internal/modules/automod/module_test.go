package automod

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDetectBannedWordWithAccents(t *testing.T) {
	module := New(zap.NewNop())
	opts := Options{BannedWords: []string{"cafe"}, WarnThreshold: 3, MuteMinutes: 10}
	verdict := module.HandleMessage("g1", "u1", "Meet me at the CAFÉ", opts, time.Now())
	if !verdict.Flagged || verdict.Warnings != 1 || verdict.Mute {
		t.Fatalf("unexpected verdict %+v", verdict)
	}
}

func TestIgnoreSafeMessage(t *testing.T) {
	module := New(zap.NewNop())
	opts := Options{BannedWords: []string{"spam"}, WarnThreshold: 3}
	if verdict := module.HandleMessage("g1", "u1", "hello everyone", opts, time.Now()); verdict.Flagged {
		t.Fatalf("did not expect flag")
	}
	if verdict := module.HandleMessage("g1", "u1", "spam", Options{}, time.Now()); verdict.Flagged {
		t.Fatalf("empty banned list must not flag")
	}
}

func TestBannedLinkHost(t *testing.T) {
	module := New(zap.NewNop())
	opts := Options{BannedWords: []string{"bücher.example"}}
	verdict := module.HandleMessage("g1", "u1", "free stuff at https://shop.xn--bcher-kva.example/claim", opts, time.Now())
	if !verdict.Flagged || verdict.Detail != "banned link: xn--bcher-kva.example" {
		t.Fatalf("expected link flag, got %+v", verdict)
	}
}

func TestThresholdMutesAndResets(t *testing.T) {
	module := New(zap.NewNop())
	opts := Options{BannedWords: []string{"bad"}, WarnThreshold: 2, MuteMinutes: 15}
	now := time.Now()

	module.HandleMessage("g1", "u1", "bad", opts, now)
	verdict := module.HandleMessage("g1", "u1", "bad", opts, now.Add(time.Minute))
	if !verdict.Mute || verdict.MuteMinutes != 15 {
		t.Fatalf("expected mute at threshold, got %+v", verdict)
	}
	if verdict = module.HandleMessage("g1", "u1", "bad", opts, now.Add(2*time.Minute)); verdict.Warnings != 1 {
		t.Fatalf("expected window reset, got %+v", verdict)
	}
}

func TestWarningsExpireAfterWindow(t *testing.T) {
	module := New(zap.NewNop())
	opts := Options{BannedWords: []string{"bad"}, WarnThreshold: 2}
	now := time.Now()
	module.HandleMessage("g1", "u1", "bad", opts, now)
	verdict := module.HandleMessage("g1", "u1", "bad", opts, now.Add(2*time.Hour))
	if verdict.Mute || verdict.Warnings != 1 {
		t.Fatalf("expected old warning expired, got %+v", verdict)
	}
}
