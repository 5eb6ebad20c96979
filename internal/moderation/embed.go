package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var actionColors = map[string]int{
	"mute":   0xf39c12,
	"unmute": 0x2ecc71,
	"kick":   0xe74c3c,
	"ban":    0xc0392b,
	"clear":  0x3498db,
}

const defaultActionColor = 0x95a5a6

func ActionColor(action string) int {
	if color, ok := actionColors[strings.ToLower(action)]; ok {
		return color
	}
	return defaultActionColor
}

func ModLogEmbed(action, moderatorID, targetID, reason string, at time.Time) *discordgo.MessageEmbed {
	if reason == "" {
		reason = DefaultReason
	}
	target := "All users"
	if targetID != "" {
		target = fmt.Sprintf("<@%s> (%s)", targetID, targetID)
	}
	title := action
	if title != "" {
		title = strings.ToUpper(title[:1]) + strings.ToLower(title[1:])
	}
	return &discordgo.MessageEmbed{
		Title:     "Moderation Action: " + title,
		Color:     ActionColor(action),
		Timestamp: at.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Moderator", Value: fmt.Sprintf("<@%s> (%s)", moderatorID, moderatorID)},
			{Name: "Target User", Value: target},
			{Name: "Reason", Value: reason},
		},
	}
}
