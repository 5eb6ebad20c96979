// Package moderation applies mute, kick, ban and purge actions through a narrow guild interface.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"guildbot/internal/clock"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	MuteRoleName     = "Muted"
	DefaultReason    = "No reason provided"
	MaxClear         = 100
	bulkDeleteMaxAge = 14 * 24 * time.Hour
)

const mutedDeny = discordgo.PermissionSendMessages | discordgo.PermissionAddReactions | discordgo.PermissionVoiceSpeak

// Guild is the slice of the gateway REST surface moderation needs.
type Guild interface {
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
}

type pendingUnmute struct {
	timer clock.Timer
}

type Service struct {
	guild  Guild
	clock  clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	records map[string][]string
	timers  map[string]*pendingUnmute
}

func New(guild Guild, logger *zap.Logger) *Service {
	return &Service{
		guild:   guild,
		clock:   clock.Real(),
		logger:  logger,
		records: make(map[string][]string),
		timers:  make(map[string]*pendingUnmute),
	}
}

func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

func memberKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// Mute swaps the member's roles for the mute role. minutes > 0 schedules an automatic unmute.
func (s *Service) Mute(ctx context.Context, guildID, userID string, minutes int, reason string) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.guild.CanManageRoles(guildID) {
		s.logger.Warn("mute refused: missing manage roles", zap.String("guild_id", guildID))
		return false
	}
	if reason == "" {
		reason = DefaultReason
	}

	role, err := s.muteRole(guildID)
	if err != nil {
		s.logger.Warn("mute role unavailable", zap.String("guild_id", guildID), zap.Error(err))
		return false
	}
	current, err := s.guild.MemberRoles(guildID, userID)
	if err != nil {
		s.logger.Warn("member roles lookup failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if err := s.guild.SetMemberRoles(guildID, userID, []string{role.ID}, reason); err != nil {
		s.logger.Warn("mute failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return false
	}

	key := memberKey(guildID, userID)
	s.mu.Lock()
	// A re-mute keeps the roles captured by the first mute.
	if _, exists := s.records[key]; !exists {
		s.records[key] = withoutRole(current, role.ID)
	}
	s.stopTimerLocked(key)
	if minutes > 0 {
		pending := &pendingUnmute{}
		pending.timer = s.clock.AfterFunc(time.Duration(minutes)*time.Minute, func() {
			s.autoUnmute(guildID, userID, pending)
		})
		s.timers[key] = pending
	}
	s.mu.Unlock()

	s.logger.Info("member muted", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Int("minutes", minutes), zap.String("reason", reason))
	return true
}

func (s *Service) autoUnmute(guildID, userID string, pending *pendingUnmute) {
	key := memberKey(guildID, userID)
	s.mu.Lock()
	if s.timers[key] != pending {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.mu.Unlock()

	if !s.Unmute(context.Background(), guildID, userID) {
		s.logger.Warn("automatic unmute failed", zap.String("guild_id", guildID), zap.String("user_id", userID))
	}
}

// Unmute restores the roles captured at mute time, or just drops the mute role when
// nothing was captured. Unmuting a member who is not muted succeeds.
func (s *Service) Unmute(ctx context.Context, guildID, userID string) bool {
	if ctx.Err() != nil {
		return false
	}
	key := memberKey(guildID, userID)
	s.mu.Lock()
	s.stopTimerLocked(key)
	previous, recorded := s.records[key]
	s.mu.Unlock()

	if recorded {
		if err := s.guild.SetMemberRoles(guildID, userID, previous, "Unmuted"); err != nil {
			s.logger.Warn("role restore failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
			return false
		}
		s.mu.Lock()
		delete(s.records, key)
		s.mu.Unlock()
		return true
	}

	roles, err := s.guild.Roles(guildID)
	if err != nil {
		return false
	}
	role := findRole(roles, MuteRoleName)
	if role == nil {
		return true
	}
	current, err := s.guild.MemberRoles(guildID, userID)
	if err != nil {
		return false
	}
	for _, id := range current {
		if id == role.ID {
			if err := s.guild.RemoveMemberRole(guildID, userID, role.ID); err != nil {
				s.logger.Warn("mute role removal failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
				return false
			}
			break
		}
	}
	return true
}

// Muted returns the roles captured for a muted member.
func (s *Service) Muted(guildID, userID string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles, ok := s.records[memberKey(guildID, userID)]
	return append([]string(nil), roles...), ok
}

func (s *Service) Kick(ctx context.Context, guildID, userID, reason string) bool {
	if ctx.Err() != nil {
		return false
	}
	if reason == "" {
		reason = DefaultReason
	}
	if err := s.guild.Kick(guildID, userID, reason); err != nil {
		s.logger.Warn("kick failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) Ban(ctx context.Context, guildID, userID string, deleteDays int, reason string) bool {
	if ctx.Err() != nil {
		return false
	}
	if reason == "" {
		reason = DefaultReason
	}
	if deleteDays < 0 {
		deleteDays = 0
	}
	if deleteDays > 7 {
		deleteDays = 7
	}
	if err := s.guild.Ban(guildID, userID, reason, deleteDays); err != nil {
		s.logger.Warn("ban failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

// Clear deletes up to limit recent messages, only userID's when it is set.
// Messages past the bulk delete age are skipped.
func (s *Service) Clear(ctx context.Context, channelID string, limit int, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if limit < 1 || limit > MaxClear {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxClear)
	}
	fetch := limit
	if userID != "" {
		fetch = MaxClear
	}
	messages, err := s.guild.RecentMessages(channelID, fetch)
	if err != nil {
		return 0, fmt.Errorf("fetch messages: %w", err)
	}

	now := s.clock.Now()
	ids := make([]string, 0, limit)
	for _, msg := range messages {
		if len(ids) == limit {
			break
		}
		if msg == nil {
			continue
		}
		if userID != "" && (msg.Author == nil || msg.Author.ID != userID) {
			continue
		}
		if !msg.Timestamp.IsZero() && now.Sub(msg.Timestamp) > bulkDeleteMaxAge {
			continue
		}
		ids = append(ids, msg.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.guild.DeleteMessages(channelID, ids); err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return len(ids), nil
}

func (s *Service) muteRole(guildID string) (*discordgo.Role, error) {
	roles, err := s.guild.Roles(guildID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	if role := findRole(roles, MuteRoleName); role != nil {
		return role, nil
	}

	role, err := s.guild.CreateRole(guildID, MuteRoleName)
	if err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	if role == nil {
		return nil, errors.New("create role: empty response")
	}
	channels, err := s.guild.Channels(guildID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if err := s.guild.DenyRole(channel.ID, role.ID, mutedDeny); err != nil {
			return nil, fmt.Errorf("deny channel %s: %w", channel.ID, err)
		}
	}
	return role, nil
}

func (s *Service) stopTimerLocked(key string) {
	if pending, ok := s.timers[key]; ok {
		pending.timer.Stop()
		delete(s.timers, key)
	}
}

func findRole(roles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range roles {
		if role != nil && strings.EqualFold(role.Name, name) {
			return role
		}
	}
	return nil
}

func withoutRole(roles []string, roleID string) []string {
	out := make([]string, 0, len(roles))
	for _, id := range roles {
		if id != roleID {
			out = append(out, id)
		}
	}
	return out
}
