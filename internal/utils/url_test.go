package utils

import "testing"

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://user:pw@Example.com:8443/path?utm_source=x#frag": "example.com",
		"example.org/landing":     "example.org",
		"http://BÜCHER.example./": "xn--bcher-kva.example",
	}
	for raw, want := range cases {
		host, err := HostOf(raw)
		if err != nil || host != want {
			t.Fatalf("%s: expected %s, got %q %v", raw, want, host, err)
		}
	}
	if _, err := HostOf("http://[::1"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestHostsPunycodeAndDedupe(t *testing.T) {
	hosts := Hosts("see https://bücher.example/a and https://BÜCHER.example/b or http://other.org")
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %v", hosts)
	}
	if hosts[0] != "xn--bcher-kva.example" || hosts[1] != "other.org" {
		t.Fatalf("unexpected hosts %v", hosts)
	}
}

func TestMatchDomain(t *testing.T) {
	domains := []string{"bad.com", "bücher.example"}
	if domain, ok := MatchDomain("cdn.bad.com", domains); !ok || domain != "bad.com" {
		t.Fatalf("expected subdomain match, got %q %v", domain, ok)
	}
	if _, ok := MatchDomain("notbad.com", domains); ok {
		t.Fatalf("did not expect suffix-only match")
	}
	if _, ok := MatchDomain("xn--bcher-kva.example", domains); !ok {
		t.Fatalf("expected punycode match")
	}
}
