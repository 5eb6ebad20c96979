package replies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func isFallback(value string) bool {
	for _, candidate := range FallbackResponses() {
		if value == candidate {
			return true
		}
	}
	return false
}

func TestLookupReturnsServiceResponse(t *testing.T) {
	var gotInput string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/respond" {
			http.NotFound(w, r)
			return
		}
		gotInput = r.URL.Query().Get("input_text")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "trigger": "hello there", "response": "General Kenobi", "active": true})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second, zap.NewNop())
	if got := client.Lookup(context.Background(), "  Hello  "); got != "General Kenobi" {
		t.Fatalf("unexpected response %q", got)
	}
	if gotInput != "hello" {
		t.Fatalf("expected lowercased trimmed input, got %q", gotInput)
	}
}

func TestLookupFallsBackOnNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"No matching response found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zap.NewNop())
	if got := client.Lookup(context.Background(), "anything"); !isFallback(got) {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestLookupFallsBackOnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second, zap.NewNop())
	for i := 0; i < 20; i++ {
		if got := client.Lookup(context.Background(), "hi"); !isFallback(got) {
			t.Fatalf("expected fallback, got %q", got)
		}
	}
}

func TestLookupFallsBackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond, zap.NewNop())
	if got := client.Lookup(context.Background(), "slow"); !isFallback(got) {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestLookupFallsBackOnMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zap.NewNop())
	if got := client.Lookup(context.Background(), "hi"); !isFallback(got) {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestLookupEmptyInput(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, zap.NewNop())
	if got := client.Lookup(context.Background(), "   "); got != silentResponse {
		t.Fatalf("expected silent response, got %q", got)
	}
}

func TestFallbackPoolHasThreeEntries(t *testing.T) {
	if n := len(FallbackResponses()); n != 3 {
		t.Fatalf("expected 3 fallback responses, got %d", n)
	}
}
