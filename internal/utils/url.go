package utils

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s<>]+`)

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// HostOf returns the ASCII (punycode) host of a link, adding https:// when the scheme is missing.
func HostOf(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return NormalizeHost(parsed.Hostname()), nil
}

func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// Hosts lists the distinct normalized hosts linked from content, in order of appearance.
func Hosts(content string) []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, raw := range ExtractURLs(content) {
		host, err := HostOf(raw)
		if err != nil || host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts
}

// MatchDomain reports the first listed domain equal to host or a parent of it.
func MatchDomain(host string, domains []string) (string, bool) {
	host = NormalizeHost(host)
	for _, domain := range domains {
		domain = NormalizeHost(domain)
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return domain, true
		}
	}
	return "", false
}
