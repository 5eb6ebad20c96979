package dispatch

import "strings"

var typos = map[string]string{
	"pign":     "ping",
	"pnig":     "ping",
	"hlep":     "help",
	"halp":     "help",
	"hepl":     "help",
	"inf":      "info",
	"ifno":     "info",
	"pol":      "poll",
	"pool":     "poll",
	"stat":     "stats",
	"stast":    "stats",
	"remid":    "remind",
	"reminder": "remind",
	"welcom":   "welcome",
	"wlecome":  "welcome",
}

// Suggest picks a known command for a mistyped token: the typo table first, then
// substring containment in either direction. The first match in names order wins.
func Suggest(input string, names []string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}
	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		known[name] = struct{}{}
	}
	if target, ok := typos[input]; ok {
		if _, registered := known[target]; registered {
			return target
		}
	}
	for _, name := range names {
		if strings.Contains(name, input) || strings.Contains(input, name) {
			return name
		}
	}
	return ""
}
