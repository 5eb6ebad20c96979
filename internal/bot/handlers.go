package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"guildbot/internal/dispatch"
	"guildbot/internal/moderation"
	"guildbot/internal/settings"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultMuteMinutes = 10
	banDeleteDays      = 1
)

func (b *Bot) cmdWelcome(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	sub, rest := nextArg(req.Rest)
	switch strings.ToLower(sub) {
	case "":
		return dispatch.Reply{Embed: b.welcomeStatus(req.GuildID)}, nil
	case "toggle":
		enabled := !b.settings.Bool(req.GuildID, settings.KeyWelcomeEnabled)
		b.settings.Set(req.GuildID, settings.KeyWelcomeEnabled, enabled)
		return dispatch.Reply{Content: "Welcome messages are now " + onOff(enabled) + "."}, nil
	case "message":
		if rest == "" {
			return usage(req, "welcome message <text>"), nil
		}
		b.settings.Set(req.GuildID, settings.KeyWelcomeMessage, rest)
		return dispatch.Reply{Content: "Welcome message set to: " + rest}, nil
	case "channel":
		channelID := parseChannelID(rest)
		if channelID == "" {
			return dispatch.Reply{Content: "Please mention a channel, for example `#welcome`."}, nil
		}
		b.settings.Set(req.GuildID, settings.KeyWelcomeChannel, channelID)
		return dispatch.Reply{Content: fmt.Sprintf("Welcome channel set to <#%s>.", channelID)}, nil
	case "test":
		guild, err := b.gw.Guild(req.GuildID)
		if err != nil {
			return dispatch.Reply{}, err
		}
		return b.welcomeReply(ctx, guild, req.AuthorID, req.AuthorName, req.AvatarURL), nil
	case "reset":
		for _, key := range []string{settings.KeyWelcomeEnabled, settings.KeyWelcomeMessage, settings.KeyWelcomeChannel} {
			b.settings.Reset(req.GuildID, key)
		}
		return dispatch.Reply{Content: "Welcome settings reset to defaults."}, nil
	default:
		return usage(req, "welcome [toggle|message <text>|channel <#channel>|test|reset]"), nil
	}
}

func (b *Bot) welcomeStatus(guildID string) *discordgo.MessageEmbed {
	channel := "system channel"
	if channelID := b.settings.String(guildID, settings.KeyWelcomeChannel); channelID != "" {
		channel = "<#" + channelID + ">"
	}
	return b.commandEmbed("Welcome settings", "", b.cfg.EmbedColors.Info, []*discordgo.MessageEmbedField{
		{Name: "Status", Value: onOff(b.settings.Bool(guildID, settings.KeyWelcomeEnabled)), Inline: true},
		{Name: "Channel", Value: channel, Inline: true},
		{Name: "Message", Value: b.settings.String(guildID, settings.KeyWelcomeMessage)},
	})
}

func (b *Bot) cmdConfig(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	sub, rest := nextArg(req.Rest)
	switch strings.ToLower(sub) {
	case "", "show":
		return dispatch.Reply{Embed: b.configEmbed(req.GuildID)}, nil
	case "set":
		key, value := nextArg(rest)
		key = strings.ToLower(key)
		if key == "" || value == "" {
			return usage(req, "config set <key> <value>"), nil
		}
		parsed, err := parseSetting(key, value)
		if err != nil {
			return dispatch.Reply{Content: err.Error()}, nil
		}
		b.settings.Set(req.GuildID, key, parsed)
		return dispatch.Reply{Content: fmt.Sprintf("Set `%s` to %s.", key, formatSetting(key, parsed))}, nil
	case "reset":
		key := strings.ToLower(strings.TrimSpace(rest))
		if key == "" {
			b.settings.Reset(req.GuildID, "")
			return dispatch.Reply{Content: "All settings reset to defaults."}, nil
		}
		if _, known := settings.Defaults()[key]; !known {
			return dispatch.Reply{Content: unknownSetting(key).Error()}, nil
		}
		b.settings.Reset(req.GuildID, key)
		return dispatch.Reply{Content: fmt.Sprintf("`%s` reset to its default.", key)}, nil
	default:
		return usage(req, "config [show|set <key> <value>|reset [key]]"), nil
	}
}

func (b *Bot) configEmbed(guildID string) *discordgo.MessageEmbed {
	values := b.settings.GetAll(guildID)
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make([]*discordgo.MessageEmbedField, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, &discordgo.MessageEmbedField{Name: key, Value: formatSetting(key, values[key]), Inline: true})
	}
	return b.commandEmbed("Server settings", "", b.cfg.EmbedColors.Info, fields)
}

func unknownSetting(key string) error {
	keys := make([]string, 0)
	for name := range settings.Defaults() {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return fmt.Errorf("Unknown setting `%s`. Available: %s", key, strings.Join(keys, ", "))
}

// parseSetting converts chat input into the stored type for key.
func parseSetting(key, value string) (any, error) {
	switch key {
	case settings.KeyPrefix:
		if len(value) > 5 || strings.ContainsFunc(value, func(r rune) bool { return r == ' ' || r == '\t' }) {
			return nil, errors.New("The prefix must be 1 to 5 characters without spaces.")
		}
		return value, nil
	case settings.KeyWelcomeEnabled, settings.KeyLogEnabled, settings.KeyAutomodEnabled:
		switch strings.ToLower(value) {
		case "on", "true", "yes", "enable", "enabled":
			return true, nil
		case "off", "false", "no", "disable", "disabled":
			return false, nil
		}
		return nil, fmt.Errorf("`%s` must be on or off.", key)
	case settings.KeyWelcomeChannel, settings.KeyLogChannel:
		channelID := parseChannelID(value)
		if channelID == "" {
			return nil, fmt.Errorf("`%s` must be a channel mention.", key)
		}
		return channelID, nil
	case settings.KeyWelcomeMessage:
		return value, nil
	case settings.KeyAutomodBannedWords:
		words := []string{}
		for _, word := range strings.Split(value, ",") {
			if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
				words = append(words, word)
			}
		}
		return words, nil
	case settings.KeyAutomodWarnThreshold, settings.KeyAutomodMuteMinutes:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("`%s` must be a whole number of zero or more.", key)
		}
		return n, nil
	default:
		return nil, unknownSetting(key)
	}
}

func formatSetting(key string, value any) string {
	switch v := value.(type) {
	case nil:
		return "not set"
	case bool:
		return onOff(v)
	case []string:
		if len(v) == 0 {
			return "none"
		}
		return strings.Join(v, ", ")
	case []any:
		if len(v) == 0 {
			return "none"
		}
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	case json.Number:
		return formatSetting(key, v.String())
	case string:
		if v == "" {
			return "not set"
		}
		if key == settings.KeyWelcomeChannel || key == settings.KeyLogChannel {
			return "<#" + v + ">"
		}
		return "`" + v + "`"
	default:
		return fmt.Sprint(v)
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func (b *Bot) cmdMute(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	target, rest := nextArg(req.Rest)
	userID := parseUserID(target)
	if userID == "" {
		return dispatch.Reply{Content: "Please mention a user to mute."}, nil
	}
	minutes := defaultMuteMinutes
	if arg, tail := nextArg(rest); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil {
			if n < 0 {
				return dispatch.Reply{Content: "Minutes cannot be negative."}, nil
			}
			minutes, rest = n, tail
		}
	}
	reason := reasonOrDefault(rest)
	if !b.moderation.Mute(ctx, req.GuildID, userID, minutes, reason) {
		return dispatch.Reply{Content: fmt.Sprintf("I couldn't mute <@%s>. Check that I can manage roles.", userID)}, nil
	}
	b.modlog.Log(ctx, req.GuildID, "mute", req.AuthorID, userID, reason)
	duration := "indefinitely"
	if minutes > 0 {
		duration = fmt.Sprintf("for %d minutes", minutes)
	}
	return dispatch.Reply{Content: fmt.Sprintf("🔇 <@%s> has been muted %s. Reason: %s", userID, duration, reason)}, nil
}

func (b *Bot) cmdUnmute(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	userID := parseUserID(req.Args[0])
	if userID == "" {
		return dispatch.Reply{Content: "Please mention a user to unmute."}, nil
	}
	if !b.moderation.Unmute(ctx, req.GuildID, userID) {
		return dispatch.Reply{Content: fmt.Sprintf("I couldn't unmute <@%s>.", userID)}, nil
	}
	b.modlog.Log(ctx, req.GuildID, "unmute", req.AuthorID, userID, "")
	return dispatch.Reply{Content: fmt.Sprintf("🔊 <@%s> has been unmuted.", userID)}, nil
}

func (b *Bot) cmdKick(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	target, rest := nextArg(req.Rest)
	userID := parseUserID(target)
	if userID == "" {
		return dispatch.Reply{Content: "Please mention a user to kick."}, nil
	}
	reason := reasonOrDefault(rest)
	if !b.moderation.Kick(ctx, req.GuildID, userID, reason) {
		return dispatch.Reply{Content: fmt.Sprintf("I couldn't kick <@%s>.", userID)}, nil
	}
	b.modlog.Log(ctx, req.GuildID, "kick", req.AuthorID, userID, reason)
	return dispatch.Reply{Content: fmt.Sprintf("👢 <@%s> has been kicked. Reason: %s", userID, reason)}, nil
}

func (b *Bot) cmdBan(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	target, rest := nextArg(req.Rest)
	userID := parseUserID(target)
	if userID == "" {
		return dispatch.Reply{Content: "Please mention a user to ban."}, nil
	}
	reason := reasonOrDefault(rest)
	if !b.moderation.Ban(ctx, req.GuildID, userID, banDeleteDays, reason) {
		return dispatch.Reply{Content: fmt.Sprintf("I couldn't ban <@%s>.", userID)}, nil
	}
	b.modlog.Log(ctx, req.GuildID, "ban", req.AuthorID, userID, reason)
	return dispatch.Reply{Content: fmt.Sprintf("🔨 <@%s> has been banned. Reason: %s", userID, reason)}, nil
}

func (b *Bot) cmdClear(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	count, err := strconv.Atoi(req.Args[0])
	if err != nil || count < 1 || count > moderation.MaxClear {
		return dispatch.Reply{Content: fmt.Sprintf("Please give a number of messages between 1 and %d.", moderation.MaxClear)}, nil
	}
	userID := ""
	if len(req.Args) > 1 {
		if userID = parseUserID(req.Args[1]); userID == "" {
			return dispatch.Reply{Content: "Please mention the user whose messages should be cleared."}, nil
		}
	}
	deleted, err := b.moderation.Clear(ctx, req.ChannelID, count, userID)
	if err != nil {
		return dispatch.Reply{}, err
	}
	b.modlog.Log(ctx, req.GuildID, "clear", req.AuthorID, userID, fmt.Sprintf("Cleared %d messages in <#%s>", deleted, req.ChannelID))
	return dispatch.Reply{Content: fmt.Sprintf("🧹 Deleted %d messages.", deleted)}, nil
}

func reasonOrDefault(reason string) string {
	if reason = strings.TrimSpace(reason); reason == "" {
		return moderation.DefaultReason
	}
	return reason
}

func (b *Bot) cmdCustom(ctx context.Context, req *dispatch.Request) (dispatch.Reply, error) {
	sub, rest := nextArg(req.Rest)
	name, response := nextArg(rest)
	name = strings.ToLower(name)
	switch strings.ToLower(sub) {
	case "add":
		if name == "" || response == "" {
			return usage(req, "cmd add <name> <response>"), nil
		}
		if _, builtin := b.registry.Lookup(name); builtin {
			return dispatch.Reply{Content: fmt.Sprintf("`%s%s` is a built-in command.", req.Prefix, name)}, nil
		}
		if !b.custom.Add(req.GuildID, name, response, req.AuthorID) {
			return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` already exists.", req.Prefix, name)}, nil
		}
		return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` created.", req.Prefix, name)}, nil
	case "edit":
		if name == "" || response == "" {
			return usage(req, "cmd edit <name> <response>"), nil
		}
		if !b.custom.Edit(req.GuildID, name, response) {
			return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` does not exist.", req.Prefix, name)}, nil
		}
		return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` updated.", req.Prefix, name)}, nil
	case "delete":
		if name == "" {
			return usage(req, "cmd delete <name>"), nil
		}
		if !b.custom.Delete(req.GuildID, name) {
			return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` does not exist.", req.Prefix, name)}, nil
		}
		return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` deleted.", req.Prefix, name)}, nil
	case "list":
		names := b.custom.List(req.GuildID)
		if len(names) == 0 {
			return dispatch.Reply{Content: "This server has no custom commands yet."}, nil
		}
		return dispatch.Reply{Content: "Custom commands: " + prefixed(req.Prefix, names)}, nil
	case "info":
		if name == "" {
			return usage(req, "cmd info <name>"), nil
		}
		cmd, ok := b.custom.Details(req.GuildID, name)
		if !ok {
			return dispatch.Reply{Content: fmt.Sprintf("Custom command `%s%s` does not exist.", req.Prefix, name)}, nil
		}
		embed := b.commandEmbed(req.Prefix+name, cmd.Response, b.cfg.EmbedColors.Info, []*discordgo.MessageEmbedField{
			{Name: "Creator", Value: "<@" + cmd.CreatorID + ">", Inline: true},
			{Name: "Uses", Value: strconv.Itoa(cmd.Uses), Inline: true},
			{Name: "Created", Value: cmd.CreatedAt.Date(), Inline: true},
		})
		return dispatch.Reply{Embed: embed}, nil
	default:
		return usage(req, "cmd <add|edit|delete|list|info> [name] [response]"), nil
	}
}
