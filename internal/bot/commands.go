package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"guildbot/internal/dispatch"
	"guildbot/internal/polls"
	"guildbot/internal/reminders"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const topEntries = 5

func (b *Bot) registerCommands() {
	b.registry.MustRegister(
		dispatch.Command{Name: "ping", Description: "Check that the bot is alive.", Handler: b.cmdPing},
		dispatch.Command{Name: "help", Description: "List the commands you can use.", Handler: b.cmdHelp},
		dispatch.Command{Name: "info", Description: "Show information about the bot.", Handler: b.cmdInfo},
		dispatch.Command{Name: "poll", Usage: "poll <question>", Description: "Start a reaction poll.", GuildOnly: true, MinArgs: 1, Handler: b.cmdPoll},
		dispatch.Command{Name: "stats", Description: "Show message and command statistics.", Handler: b.cmdStats},
		dispatch.Command{Name: "remind", Usage: "remind <minutes> <text>", Description: "Get a reminder after 1 to 1440 minutes.", MinArgs: 1, Handler: b.cmdRemind},
		dispatch.Command{
			Name:        "welcome",
			Usage:       "welcome [toggle|message <text>|channel <#channel>|test|reset]",
			Description: "Configure welcome messages.",
			Permission:  dispatch.Administrator,
			GuildOnly:   true,
			Handler:     b.cmdWelcome,
		},
		dispatch.Command{
			Name:        "config",
			Usage:       "config [show|set <key> <value>|reset [key]]",
			Description: "Show or change server settings.",
			Permission:  dispatch.Administrator,
			GuildOnly:   true,
			Handler:     b.cmdConfig,
		},
		dispatch.Command{Name: "mute", Usage: "mute <@user> [minutes] [reason]", Description: "Mute a member, optionally for a number of minutes.", Permission: dispatch.Moderator, GuildOnly: true, MinArgs: 1, Handler: b.cmdMute},
		dispatch.Command{Name: "unmute", Usage: "unmute <@user>", Description: "Unmute a member.", Permission: dispatch.Moderator, GuildOnly: true, MinArgs: 1, Handler: b.cmdUnmute},
		dispatch.Command{Name: "kick", Usage: "kick <@user> [reason]", Description: "Kick a member.", Permission: dispatch.Moderator, GuildOnly: true, MinArgs: 1, Handler: b.cmdKick},
		dispatch.Command{Name: "ban", Usage: "ban <@user> [reason]", Description: "Ban a member.", Permission: dispatch.Moderator, GuildOnly: true, MinArgs: 1, Handler: b.cmdBan},
		dispatch.Command{Name: "clear", Usage: "clear <count> [@user]", Description: "Delete up to 100 recent messages.", Permission: dispatch.Moderator, GuildOnly: true, MinArgs: 1, Handler: b.cmdClear},
		dispatch.Command{
			Name:        "cmd",
			Usage:       "cmd <add|edit|delete|list|info> [name] [response]",
			Description: "Manage custom commands.",
			Permission:  dispatch.Moderator,
			GuildOnly:   true,
			MinArgs:     1,
			Handler:     b.cmdCustom,
		},
	)
}

func (b *Bot) cmdPing(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	return dispatch.Reply{Content: fmt.Sprintf("Pong! `%dms`", b.gw.Latency().Milliseconds())}, nil
}

func (b *Bot) cmdHelp(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	var fields []*discordgo.MessageEmbedField
	for _, cmd := range b.registry.Commands() {
		if !cmd.Permission.Allows(req.Permissions) {
			continue
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: req.Prefix + cmd.Usage, Value: cmd.Description})
	}
	if req.InGuild() {
		if names := b.custom.List(req.GuildID); len(names) > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Custom commands", Value: prefixed(req.Prefix, names)})
		}
	}
	embed := b.commandEmbed("Commands", "Start a message with `"+dispatch.PrivateMarker+"` to get the answer by direct message.", b.cfg.EmbedColors.Info, fields)
	return dispatch.Reply{Embed: embed}, nil
}

func (b *Bot) cmdInfo(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	report := b.analytics.Report(0)
	embed := b.commandEmbed("Bot information", "A community bot with moderation, polls, reminders and welcome cards.", b.cfg.EmbedColors.Info, []*discordgo.MessageEmbedField{
		{Name: "Servers", Value: fmt.Sprint(b.gw.GuildCount()), Inline: true},
		{Name: "Prefix", Value: "`" + req.Prefix + "`", Inline: true},
		{Name: "Commands", Value: fmt.Sprint(len(b.registry.Names())), Inline: true},
		{Name: "Uptime", Value: formatUptime(report.Uptime), Inline: true},
		{Name: "Latency", Value: fmt.Sprintf("%dms", b.gw.Latency().Milliseconds()), Inline: true},
	})
	return dispatch.Reply{Embed: embed}, nil
}

func (b *Bot) cmdPoll(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	embed := b.commandEmbed("📊 Poll", req.Rest, b.cfg.EmbedColors.Info, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Asked by " + req.AuthorName}
	messageID, err := b.gw.Send(req.ChannelID, dispatch.Reply{Embed: embed})
	if err != nil {
		return dispatch.Reply{}, err
	}
	for _, emoji := range polls.Reactions {
		if err := b.gw.React(req.ChannelID, messageID, emoji); err != nil {
			b.logger.Warn("poll reaction failed", zap.String("message_id", messageID), zap.String("emoji", emoji), zap.Error(err))
		}
	}
	b.polls.Add(polls.Poll{
		MessageID: messageID,
		ChannelID: req.ChannelID,
		GuildID:   req.GuildID,
		CreatorID: req.AuthorID,
		Question:  req.Rest,
	})
	return dispatch.Reply{}, nil
}

func (b *Bot) cmdStats(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	report := b.analytics.Report(topEntries)
	authors := make([]string, 0, len(report.TopAuthors))
	for i, entry := range report.TopAuthors {
		authors = append(authors, fmt.Sprintf("%d. <@%s> (%d)", i+1, entry.Key, entry.Count))
	}
	commands := make([]string, 0, len(report.TopCommands))
	for i, entry := range report.TopCommands {
		commands = append(commands, fmt.Sprintf("%d. `%s%s` (%d)", i+1, req.Prefix, entry.Key, entry.Count))
	}
	embed := b.commandEmbed("Statistics", "", b.cfg.EmbedColors.Info, []*discordgo.MessageEmbedField{
		{Name: "Messages", Value: fmt.Sprint(report.Messages), Inline: true},
		{Name: "Commands", Value: fmt.Sprint(report.Commands), Inline: true},
		{Name: "Active polls", Value: fmt.Sprint(b.polls.Len()), Inline: true},
		{Name: "Top chatters", Value: orNone(authors)},
		{Name: "Top commands", Value: orNone(commands)},
		{Name: "Uptime", Value: formatUptime(report.Uptime)},
	})
	return dispatch.Reply{Embed: embed}, nil
}

func (b *Bot) cmdRemind(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	delay, text, err := reminders.ParseRequest(req.Rest)
	switch {
	case errors.Is(err, reminders.ErrMissingText):
		return dispatch.Reply{Content: "Please tell me what to remind you about."}, nil
	case err != nil:
		return dispatch.Reply{Content: "Please give a number of minutes between 1 and 1440."}, nil
	}
	b.reminders.Add(req.AuthorID, reminders.Reminder{
		ChannelID: req.ChannelID,
		Text:      text,
		FireAt:    b.clock.Now().Add(delay),
	})
	minutes := int(delay / time.Minute)
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return dispatch.Reply{Content: fmt.Sprintf("⏰ I'll remind you in %d %s: %s", minutes, unit, text)}, nil
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   b.clock.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func usage(req *dispatch.Request, text string) dispatch.Reply {
	return dispatch.Reply{Content: fmt.Sprintf("Usage: `%s%s`", req.Prefix, text)}
}

// nextArg splits off the first whitespace-delimited token, keeping the remainder verbatim.
func nextArg(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// parseUserID accepts <@id>, <@!id> or a raw id.
func parseUserID(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">") {
		arg = strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">"), "!")
	}
	return snowflake(arg)
}

// parseChannelID accepts <#id> or a raw id.
func parseChannelID(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<#") && strings.HasSuffix(arg, ">") {
		arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	}
	return snowflake(arg)
}

func snowflake(id string) string {
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

func prefixed(prefix string, names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "`" + prefix + name + "`"
	}
	return strings.Join(quoted, ", ")
}

func orNone(lines []string) string {
	if len(lines) == 0 {
		return "None yet"
	}
	return strings.Join(lines, "\n")
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	seconds := int((d - time.Duration(minutes)*time.Minute) / time.Second)
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
