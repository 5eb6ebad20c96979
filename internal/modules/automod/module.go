package automod

import (
	"strings"
	"time"

	"guildbot/internal/utils"

	"go.uber.org/zap"
)

const warningWindow = time.Hour

type Options struct {
	BannedWords   []string
	WarnThreshold int
	MuteMinutes   int
}

type Verdict struct {
	Flagged  bool
	Detail   string
	Warnings int
	// Mute is set when this warning reached the threshold. The warning window is cleared.
	Mute        bool
	MuteMinutes int
}

type Module struct {
	logger   *zap.Logger
	warnings *utils.WindowSet
}

func New(logger *zap.Logger) *Module {
	return &Module{logger: logger, warnings: utils.NewWindowSet(warningWindow)}
}

func (m *Module) HandleMessage(guildID, userID, content string, opts Options, now time.Time) Verdict {
	if content == "" || len(opts.BannedWords) == 0 {
		return Verdict{}
	}
	detail, flagged := check(content, opts.BannedWords)
	if !flagged {
		return Verdict{}
	}

	key := guildID + ":" + userID
	verdict := Verdict{Flagged: true, Detail: detail, Warnings: m.warnings.Add(key, now)}
	if opts.WarnThreshold > 0 && verdict.Warnings >= opts.WarnThreshold {
		verdict.Mute = true
		verdict.MuteMinutes = opts.MuteMinutes
		m.warnings.Reset(key)
	}
	m.logger.Info("automod flagged message",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("detail", detail),
		zap.Int("warnings", verdict.Warnings),
		zap.Bool("mute", verdict.Mute),
	)
	return verdict
}

func check(content string, banned []string) (string, bool) {
	folded := normalizeText(content)
	for _, word := range banned {
		word = normalizeText(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if strings.Contains(folded, word) {
			return "banned word: " + word, true
		}
	}
	for _, host := range utils.Hosts(content) {
		if domain, ok := utils.MatchDomain(host, banned); ok {
			return "banned link: " + domain, true
		}
	}
	return "", false
}

var foldAccents = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a",
	"è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i",
	"ò", "o", "ó", "o", "ô", "o", "ö", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

func normalizeText(input string) string {
	return foldAccents.Replace(strings.ToLower(input))
}
