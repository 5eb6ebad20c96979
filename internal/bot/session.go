package bot

import (
	"errors"
	"time"

	"guildbot/internal/dispatch"

	"github.com/bwmarrin/discordgo"
)

// gateway is everything the bot does against Discord. discordGateway backs it with a live session.
type gateway interface {
	CanManageRoles(guildID string) bool
	Roles(guildID string) ([]*discordgo.Role, error)
	CreateRole(guildID, name string) (*discordgo.Role, error)
	Channels(guildID string) ([]*discordgo.Channel, error)
	DenyRole(channelID, roleID string, deny int64) error
	MemberRoles(guildID, userID string) ([]string, error)
	SetMemberRoles(guildID, userID string, roleIDs []string, reason string) error
	RemoveMemberRole(guildID, userID, roleID string) error
	Kick(guildID, userID, reason string) error
	Ban(guildID, userID, reason string, deleteDays int) error
	RecentMessages(channelID string, limit int) ([]*discordgo.Message, error)
	DeleteMessages(channelID string, messageIDs []string) error

	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
	Send(channelID string, reply dispatch.Reply) (string, error)
	SendDirect(userID string, reply dispatch.Reply) error
	React(channelID, messageID, emoji string) error
	Unreact(channelID, messageID, emoji, userID string) error
	Guild(guildID string) (*discordgo.Guild, error)
	Permissions(guildID, channelID, userID string) int64
	GuildCount() int
	Latency() time.Duration
	SelfID() string
}

type discordGateway struct {
	session *discordgo.Session
}

func (g *discordGateway) SelfID() string {
	if g.session.State == nil || g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

func (g *discordGateway) Guild(guildID string) (*discordgo.Guild, error) {
	guild, err := g.session.State.Guild(guildID)
	if err == nil && guild != nil {
		return guild, nil
	}
	return g.session.Guild(guildID)
}

func (g *discordGateway) GuildCount() int {
	if g.session.State == nil {
		return 0
	}
	g.session.State.RLock()
	defer g.session.State.RUnlock()
	return len(g.session.State.Guilds)
}

func (g *discordGateway) Latency() time.Duration {
	return g.session.HeartbeatLatency()
}

func (g *discordGateway) member(guildID, userID string) *discordgo.Member {
	member, err := g.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = g.session.GuildMember(guildID, userID)
	return member
}

// Permissions resolves channel permissions from state, falling back to the member's role union.
func (g *discordGateway) Permissions(guildID, channelID, userID string) int64 {
	if guildID == "" {
		return 0
	}
	if perms, err := g.session.State.UserChannelPermissions(userID, channelID); err == nil {
		return perms
	}
	guild, err := g.Guild(guildID)
	if err != nil {
		return 0
	}
	return memberPermissions(guild, g.member(guildID, userID))
}

func (g *discordGateway) CanManageRoles(guildID string) bool {
	guild, err := g.Guild(guildID)
	if err != nil {
		return false
	}
	perms := memberPermissions(guild, g.member(guildID, g.SelfID()))
	return perms&(discordgo.PermissionAdministrator|discordgo.PermissionManageRoles) != 0
}

func memberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms
}

func (g *discordGateway) Roles(guildID string) ([]*discordgo.Role, error) {
	return g.session.GuildRoles(guildID)
}

func (g *discordGateway) CreateRole(guildID, name string) (*discordgo.Role, error) {
	return g.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name})
}

func (g *discordGateway) Channels(guildID string) ([]*discordgo.Channel, error) {
	return g.session.GuildChannels(guildID)
}

func (g *discordGateway) DenyRole(channelID, roleID string, deny int64) error {
	return g.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, 0, deny)
}

func (g *discordGateway) MemberRoles(guildID, userID string) ([]string, error) {
	member := g.member(guildID, userID)
	if member == nil {
		return nil, errors.New("member not found")
	}
	return append([]string(nil), member.Roles...), nil
}

func (g *discordGateway) SetMemberRoles(guildID, userID string, roleIDs []string, reason string) error {
	_, err := g.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roleIDs})
	return err
}

func (g *discordGateway) RemoveMemberRole(guildID, userID, roleID string) error {
	return g.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (g *discordGateway) Kick(guildID, userID, reason string) error {
	return g.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (g *discordGateway) Ban(guildID, userID, reason string, deleteDays int) error {
	return g.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays)
}

func (g *discordGateway) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	return g.session.ChannelMessages(channelID, limit, "", "", "")
}

// DeleteMessages uses the bulk endpoint, which rejects fewer than two ids.
func (g *discordGateway) DeleteMessages(channelID string, messageIDs []string) error {
	switch len(messageIDs) {
	case 0:
		return nil
	case 1:
		return g.session.ChannelMessageDelete(channelID, messageIDs[0])
	default:
		return g.session.ChannelMessagesBulkDelete(channelID, messageIDs)
	}
}

func (g *discordGateway) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := g.session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (g *discordGateway) Send(channelID string, reply dispatch.Reply) (string, error) {
	msg, err := g.session.ChannelMessageSendComplex(channelID, messageSend(reply))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (g *discordGateway) SendDirect(userID string, reply dispatch.Reply) error {
	channel, err := g.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = g.session.ChannelMessageSendComplex(channel.ID, messageSend(reply))
	return err
}

func (g *discordGateway) React(channelID, messageID, emoji string) error {
	return g.session.MessageReactionAdd(channelID, messageID, emoji)
}

func (g *discordGateway) Unreact(channelID, messageID, emoji, userID string) error {
	return g.session.MessageReactionRemove(channelID, messageID, emoji, userID)
}

func messageSend(reply dispatch.Reply) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: reply.Content, Files: reply.Files}
	if reply.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{reply.Embed}
	}
	return send
}
