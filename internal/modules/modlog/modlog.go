package modlog

import (
	"context"
	"time"

	"guildbot/internal/moderation"
	"guildbot/internal/settings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Settings interface {
	Bool(guildID, key string) bool
	String(guildID, key string) string
}

type Sender interface {
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

type Logger struct {
	settings Settings
	sender   Sender
	logger   *zap.Logger
	now      func() time.Time
}

func NewLogger(guildSettings Settings, sender Sender, logger *zap.Logger) *Logger {
	return &Logger{settings: guildSettings, sender: sender, logger: logger, now: time.Now}
}

// Log records a moderation action and mirrors it to the guild log channel when enabled.
func (l *Logger) Log(ctx context.Context, guildID, action, moderatorID, targetID, reason string) {
	l.logger.Info("moderation",
		zap.String("guild_id", guildID),
		zap.String("action", action),
		zap.String("moderator_id", moderatorID),
		zap.String("target_id", targetID),
		zap.String("reason", reason),
	)
	if l.sender == nil || !l.settings.Bool(guildID, settings.KeyLogEnabled) {
		return
	}
	channelID := l.settings.String(guildID, settings.KeyLogChannel)
	if channelID == "" {
		return
	}
	if err := ctx.Err(); err != nil {
		l.logger.Warn("mod log skipped", zap.String("guild_id", guildID), zap.String("action", action), zap.Error(err))
		return
	}
	embed := moderation.ModLogEmbed(action, moderatorID, targetID, reason, l.now())
	if err := l.sender.SendEmbed(channelID, embed); err != nil {
		l.logger.Warn("mod log send failed", zap.String("guild_id", guildID), zap.String("channel_id", channelID), zap.Error(err))
	}
}
