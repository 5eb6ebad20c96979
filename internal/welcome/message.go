package welcome

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// FormatMessage fills the {user} and {server} placeholders of a welcome template.
func FormatMessage(template, userMention, serverName string) string {
	return strings.NewReplacer("{user}", userMention, "{server}", serverName).Replace(template)
}

// CardText fills the template for drawing on the card, where mentions would show as raw markup.
func CardText(template, username, serverName string) string {
	return FormatMessage(template, username, serverName)
}

// Embed accompanies the card. The image slot points at the attached card file.
func Embed(username, serverName string, memberCount int, userID string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Welcome to %s!", serverName),
		Description: fmt.Sprintf("We're happy to have you here, %s!", username),
		Color:       color,
		Image:       &discordgo.MessageEmbedImage{URL: "attachment://" + Filename},
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Member #%d • ID: %s", memberCount, userID)},
	}
}
