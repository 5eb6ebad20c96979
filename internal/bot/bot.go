package bot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"guildbot/internal/analytics"
	"guildbot/internal/clock"
	"guildbot/internal/config"
	"guildbot/internal/customcmd"
	"guildbot/internal/dispatch"
	"guildbot/internal/moderation"
	"guildbot/internal/modules/automod"
	"guildbot/internal/modules/modlog"
	"guildbot/internal/polls"
	"guildbot/internal/reminders"
	"guildbot/internal/replies"
	"guildbot/internal/settings"
	"guildbot/internal/welcome"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	session    *discordgo.Session
	gw         gateway
	clock      clock.Clock
	settings   *settings.Store
	custom     *customcmd.Store
	analytics  *analytics.Service
	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	moderation *moderation.Service
	modlog     *modlog.Logger
	automod    *automod.Module
	reminders  *reminders.Store
	polls      *polls.Registry
	welcome    *welcome.Renderer

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	timeout := time.Duration(cfg.Responses.TimeoutSeconds) * time.Second
	renderer, err := welcome.NewRenderer(&http.Client{Timeout: timeout}, cfg.Welcome.BackgroundURL, logger)
	if err != nil {
		return nil, err
	}

	guildSettings := settings.Open(cfg.GuildConfigPath, logger).WithDefault(settings.KeyPrefix, cfg.CommandPrefix)
	custom := customcmd.Open(cfg.CustomCommandsPath, logger)
	responder := replies.NewClient(cfg.Responses.URL, timeout, logger)

	b := newBot(cfg, logger, &discordGateway{session: session}, guildSettings, custom, responder, renderer, clock.Real())
	b.session = session
	return b, nil
}

func newBot(cfg config.Config, logger *zap.Logger, gw gateway, guildSettings *settings.Store, custom *customcmd.Store, responder dispatch.Responder, renderer *welcome.Renderer, clk clock.Clock) *Bot {
	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		gw:        gw,
		clock:     clk,
		settings:  guildSettings,
		custom:    custom,
		analytics: analytics.New(),
		registry:  dispatch.NewRegistry(),
		automod:   automod.New(logger),
		reminders: reminders.New(),
		polls:     polls.NewRegistry(cfg.Polls.Capacity, time.Duration(cfg.Polls.RetentionHours)*time.Hour).WithClock(clk),
		welcome:   renderer,
		stop:      make(chan struct{}),
	}
	b.moderation = moderation.New(gw, logger).WithClock(clk)
	b.modlog = modlog.NewLogger(guildSettings, gw, logger)
	b.registerCommands()
	b.dispatcher = dispatch.New(b.registry, guildSettings, custom, responder, b.analytics, logger)
	return b
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onMessageReactionAdd)

	if err := b.session.Open(); err != nil {
		return err
	}

	b.startTasks()
	return nil
}

// Close stops the scheduled tasks, waiting for them until ctx expires, then closes the gateway.
func (b *Bot) Close(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.stop) })
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("scheduled tasks did not stop in time")
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	b.handleMessage(context.Background(), dispatch.Message{
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		MessageID:   msg.ID,
		AuthorID:    msg.Author.ID,
		AuthorName:  msg.Author.Username,
		AvatarURL:   msg.Author.AvatarURL("256"),
		Content:     msg.Content,
		Permissions: b.gw.Permissions(msg.GuildID, msg.ChannelID, msg.Author.ID),
	})
}

func (b *Bot) handleMessage(ctx context.Context, msg dispatch.Message) {
	if b.enforceAutomod(ctx, msg) {
		return
	}
	result := b.dispatcher.Dispatch(ctx, msg)
	b.deliver(msg, result.Reply)
}

func (b *Bot) deliver(msg dispatch.Message, reply *dispatch.Reply) {
	if reply == nil || reply.Empty() {
		return
	}
	var err error
	if reply.Private {
		err = b.gw.SendDirect(msg.AuthorID, *reply)
	} else {
		_, err = b.gw.Send(msg.ChannelID, *reply)
	}
	if err != nil {
		b.logger.Warn("reply send failed",
			zap.String("channel_id", msg.ChannelID),
			zap.String("user_id", msg.AuthorID),
			zap.Bool("private", reply.Private),
			zap.Error(err),
		)
	}
}

// enforceAutomod reports whether the message was removed. Commands and moderators are exempt.
func (b *Bot) enforceAutomod(ctx context.Context, msg dispatch.Message) bool {
	if !msg.InGuild() || !b.settings.Bool(msg.GuildID, settings.KeyAutomodEnabled) {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(msg.Content), b.dispatcher.Prefix(msg.GuildID)) {
		return false
	}
	if dispatch.Moderator.Allows(msg.Permissions) {
		return false
	}

	opts := automod.Options{
		BannedWords:   b.settings.Strings(msg.GuildID, settings.KeyAutomodBannedWords),
		WarnThreshold: b.settings.Int(msg.GuildID, settings.KeyAutomodWarnThreshold),
		MuteMinutes:   b.settings.Int(msg.GuildID, settings.KeyAutomodMuteMinutes),
	}
	verdict := b.automod.HandleMessage(msg.GuildID, msg.AuthorID, msg.Content, opts, b.clock.Now())
	if !verdict.Flagged {
		return false
	}

	if err := b.gw.DeleteMessages(msg.ChannelID, []string{msg.MessageID}); err != nil {
		b.logger.Warn("automod delete failed", zap.String("message_id", msg.MessageID), zap.Error(err))
	}
	warning := fmt.Sprintf("<@%s>, your message was removed (%s). Warning %d", msg.AuthorID, verdict.Detail, verdict.Warnings)
	if opts.WarnThreshold > 0 {
		warning += fmt.Sprintf("/%d", opts.WarnThreshold)
	}
	b.deliver(msg, &dispatch.Reply{Content: warning + "."})

	if verdict.Mute {
		reason := "Automod: repeated violations"
		if b.moderation.Mute(ctx, msg.GuildID, msg.AuthorID, verdict.MuteMinutes, reason) {
			b.modlog.Log(ctx, msg.GuildID, "mute", b.gw.SelfID(), msg.AuthorID, reason)
		}
	}
	return true
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil {
		return
	}
	b.welcomeMember(context.Background(), event.GuildID, event.User)
}

// welcomeMember posts the welcome card when enabled. The configured channel wins over the system channel.
func (b *Bot) welcomeMember(ctx context.Context, guildID string, user *discordgo.User) bool {
	if !b.settings.Bool(guildID, settings.KeyWelcomeEnabled) {
		return false
	}
	guild, err := b.gw.Guild(guildID)
	if err != nil {
		b.logger.Warn("welcome guild lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return false
	}
	channelID := b.settings.String(guildID, settings.KeyWelcomeChannel)
	if channelID == "" {
		channelID = guild.SystemChannelID
	}
	if channelID == "" {
		return false
	}
	if _, err := b.gw.Send(channelID, b.welcomeReply(ctx, guild, user.ID, user.Username, user.AvatarURL("256"))); err != nil {
		b.logger.Warn("welcome send failed", zap.String("guild_id", guildID), zap.String("channel_id", channelID), zap.Error(err))
		return false
	}
	return true
}

func (b *Bot) welcomeReply(ctx context.Context, guild *discordgo.Guild, userID, username, avatarURL string) dispatch.Reply {
	text := welcome.FormatMessage(b.settings.String(guild.ID, settings.KeyWelcomeMessage), "<@"+userID+">", guild.Name)
	card, err := b.welcome.Render(ctx, b.welcomeCard(guild, username, avatarURL))
	if err != nil {
		b.logger.Warn("welcome card render failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return dispatch.Reply{Content: text}
	}
	return dispatch.Reply{
		Content: text,
		Embed:   welcome.Embed(username, guild.Name, guild.MemberCount, userID, b.cfg.EmbedColors.Welcome),
		Files:   []*discordgo.File{{Name: welcome.Filename, ContentType: "image/png", Reader: bytes.NewReader(card)}},
	}
}

func (b *Bot) welcomeCard(guild *discordgo.Guild, username, avatarURL string) welcome.Card {
	return welcome.Card{
		Username:    username,
		AvatarURL:   avatarURL,
		ServerName:  guild.Name,
		MemberCount: guild.MemberCount,
		Message:     welcome.CardText(b.settings.String(guild.ID, settings.KeyWelcomeMessage), username, guild.Name),
		Accent:      welcome.Accent(b.cfg.EmbedColors.Welcome),
	}
}

// onMessageReactionAdd keeps poll messages limited to the three vote reactions.
func (b *Bot) onMessageReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	b.handleReaction(event.MessageReaction)
}

func (b *Bot) handleReaction(reaction *discordgo.MessageReaction) {
	if reaction == nil || reaction.UserID == b.gw.SelfID() {
		return
	}
	if _, ok := b.polls.Get(reaction.MessageID); !ok {
		return
	}
	if polls.IsVote(reaction.Emoji.Name) {
		return
	}
	if err := b.gw.Unreact(reaction.ChannelID, reaction.MessageID, reaction.Emoji.APIName(), reaction.UserID); err != nil {
		b.logger.Debug("poll reaction removal failed", zap.String("message_id", reaction.MessageID), zap.Error(err))
	}
}
