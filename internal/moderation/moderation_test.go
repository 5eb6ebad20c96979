package moderation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"guildbot/internal/clock"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeGuild struct {
	mu          sync.Mutex
	manageRoles bool
	roles       []*discordgo.Role
	channels    []*discordgo.Channel
	members     map[string][]string
	denied      map[string]int64
	kicked      []string
	banned      map[string]int
	messages    []*discordgo.Message
	deleted     []string
	failSet     bool
	nextRoleID  int
}

func newFakeGuild() *fakeGuild {
	return &fakeGuild{
		manageRoles: true,
		roles:       []*discordgo.Role{{ID: "r-everyone", Name: "@everyone"}, {ID: "r-a", Name: "Artists"}, {ID: "r-b", Name: "Regulars"}},
		channels:    []*discordgo.Channel{{ID: "c1"}, {ID: "c2"}},
		members:     map[string][]string{"u1": {"r-b", "r-a"}},
		denied:      make(map[string]int64),
		banned:      make(map[string]int),
	}
}

func (f *fakeGuild) CanManageRoles(string) bool { return f.manageRoles }

func (f *fakeGuild) Roles(string) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.Role(nil), f.roles...), nil
}

func (f *fakeGuild) CreateRole(_, name string) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRoleID++
	role := &discordgo.Role{ID: "r-muted", Name: name}
	f.roles = append(f.roles, role)
	return role, nil
}

func (f *fakeGuild) Channels(string) ([]*discordgo.Channel, error) { return f.channels, nil }

func (f *fakeGuild) DenyRole(channelID, roleID string, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[channelID+"/"+roleID] = deny
	return nil
}

func (f *fakeGuild) MemberRoles(_, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[userID]...), nil
}

func (f *fakeGuild) SetMemberRoles(_, userID string, roleIDs []string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("forbidden")
	}
	f.members[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (f *fakeGuild) RemoveMemberRole(_, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[userID] = withoutRole(f.members[userID], roleID)
	return nil
}

func (f *fakeGuild) Kick(_, userID, _ string) error {
	if userID == "missing" {
		return errors.New("unknown member")
	}
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeGuild) Ban(_, userID, _ string, deleteDays int) error {
	f.banned[userID] = deleteDays
	return nil
}

func (f *fakeGuild) RecentMessages(_ string, limit int) ([]*discordgo.Message, error) {
	if limit > len(f.messages) {
		limit = len(f.messages)
	}
	return f.messages[:limit], nil
}

func (f *fakeGuild) DeleteMessages(_ string, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeGuild) rolesOf(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles := append([]string(nil), f.members[userID]...)
	sort.Strings(roles)
	return roles
}

func newService(guild *fakeGuild) (*Service, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return New(guild, zap.NewNop()).WithClock(fake), fake
}

func TestMuteThenUnmuteRestoresRoles(t *testing.T) {
	guild := newFakeGuild()
	svc, _ := newService(guild)
	ctx := context.Background()

	if !svc.Mute(ctx, "g1", "u1", 0, "spam") {
		t.Fatalf("expected mute to succeed")
	}
	if roles := guild.rolesOf("u1"); len(roles) != 1 || roles[0] != "r-muted" {
		t.Fatalf("expected only mute role, got %v", roles)
	}
	if guild.denied["c1/r-muted"]&discordgo.PermissionSendMessages == 0 {
		t.Fatalf("expected send denied on c1")
	}

	if !svc.Unmute(ctx, "g1", "u1") {
		t.Fatalf("expected unmute to succeed")
	}
	if roles := strings.Join(guild.rolesOf("u1"), ","); roles != "r-a,r-b" {
		t.Fatalf("expected original roles restored, got %s", roles)
	}
	if _, muted := svc.Muted("g1", "u1"); muted {
		t.Fatalf("expected record removed")
	}
}

func TestAutoUnmuteAfterDelay(t *testing.T) {
	guild := newFakeGuild()
	svc, fake := newService(guild)

	svc.Mute(context.Background(), "g1", "u1", 10, "")
	fake.Advance(9 * time.Minute)
	if roles := guild.rolesOf("u1"); len(roles) != 1 {
		t.Fatalf("expected still muted, got %v", roles)
	}
	fake.Advance(time.Minute)
	if roles := strings.Join(guild.rolesOf("u1"), ","); roles != "r-a,r-b" {
		t.Fatalf("expected auto unmute, got %s", roles)
	}
}

func TestManualUnmuteCancelsTimer(t *testing.T) {
	guild := newFakeGuild()
	svc, fake := newService(guild)
	ctx := context.Background()

	svc.Mute(ctx, "g1", "u1", 10, "")
	svc.Unmute(ctx, "g1", "u1")
	if fake.Pending() != 0 {
		t.Fatalf("expected pending unmute cancelled")
	}

	// A later mute without a duration must not be undone by the first timer.
	svc.Mute(ctx, "g1", "u1", 0, "")
	fake.Advance(time.Hour)
	if roles := guild.rolesOf("u1"); len(roles) != 1 || roles[0] != "r-muted" {
		t.Fatalf("expected member to stay muted, got %v", roles)
	}
}

func TestRemuteKeepsOriginalRoles(t *testing.T) {
	guild := newFakeGuild()
	svc, _ := newService(guild)
	ctx := context.Background()

	svc.Mute(ctx, "g1", "u1", 0, "")
	svc.Mute(ctx, "g1", "u1", 0, "")
	svc.Unmute(ctx, "g1", "u1")
	if roles := strings.Join(guild.rolesOf("u1"), ","); roles != "r-a,r-b" {
		t.Fatalf("expected original roles, got %s", roles)
	}
}

func TestMuteReusesExistingRole(t *testing.T) {
	guild := newFakeGuild()
	guild.roles = append(guild.roles, &discordgo.Role{ID: "r-existing", Name: "muted"})
	svc, _ := newService(guild)

	svc.Mute(context.Background(), "g1", "u1", 0, "")
	if guild.nextRoleID != 0 {
		t.Fatalf("expected no role created")
	}
	if roles := guild.rolesOf("u1"); roles[0] != "r-existing" {
		t.Fatalf("expected existing mute role, got %v", roles)
	}
}

func TestMuteWithoutManageRoles(t *testing.T) {
	guild := newFakeGuild()
	guild.manageRoles = false
	svc, _ := newService(guild)
	if svc.Mute(context.Background(), "g1", "u1", 5, "") {
		t.Fatalf("expected mute to fail")
	}
}

func TestMuteFailureLeavesNoRecord(t *testing.T) {
	guild := newFakeGuild()
	guild.failSet = true
	svc, fake := newService(guild)
	if svc.Mute(context.Background(), "g1", "u1", 5, "") {
		t.Fatalf("expected mute to fail")
	}
	if _, muted := svc.Muted("g1", "u1"); muted || fake.Pending() != 0 {
		t.Fatalf("expected no record and no timer")
	}
}

func TestUnmuteWithoutRecordRemovesRole(t *testing.T) {
	guild := newFakeGuild()
	guild.roles = append(guild.roles, &discordgo.Role{ID: "r-muted", Name: "Muted"})
	guild.members["u2"] = []string{"r-a", "r-muted"}
	svc, _ := newService(guild)

	if !svc.Unmute(context.Background(), "g1", "u2") {
		t.Fatalf("expected unmute to succeed")
	}
	if roles := guild.rolesOf("u2"); len(roles) != 1 || roles[0] != "r-a" {
		t.Fatalf("expected mute role removed, got %v", roles)
	}
	if !svc.Unmute(context.Background(), "g1", "u3") {
		t.Fatalf("expected unmute of unmuted member to succeed")
	}
}

func TestKickAndBan(t *testing.T) {
	guild := newFakeGuild()
	svc, _ := newService(guild)
	ctx := context.Background()

	if !svc.Kick(ctx, "g1", "u1", "") || svc.Kick(ctx, "g1", "missing", "") {
		t.Fatalf("unexpected kick results")
	}
	if !svc.Ban(ctx, "g1", "u1", 30, "") {
		t.Fatalf("expected ban to succeed")
	}
	if guild.banned["u1"] != 7 {
		t.Fatalf("expected delete days clamped to 7, got %d", guild.banned["u1"])
	}
}

func TestClearFiltersByAuthorAndAge(t *testing.T) {
	guild := newFakeGuild()
	svc, fake := newService(guild)
	now := fake.Now()
	guild.messages = []*discordgo.Message{
		{ID: "m1", Author: &discordgo.User{ID: "u1"}, Timestamp: now.Add(-time.Minute)},
		{ID: "m2", Author: &discordgo.User{ID: "u2"}, Timestamp: now.Add(-time.Minute)},
		{ID: "m3", Author: &discordgo.User{ID: "u1"}, Timestamp: now.Add(-time.Hour)},
		{ID: "m4", Author: &discordgo.User{ID: "u1"}, Timestamp: now.Add(-15 * 24 * time.Hour)},
	}

	count, err := svc.Clear(context.Background(), "c1", 5, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 || strings.Join(guild.deleted, ",") != "m1,m3" {
		t.Fatalf("unexpected deletion %d %v", count, guild.deleted)
	}

	if _, err := svc.Clear(context.Background(), "c1", 0, ""); err == nil {
		t.Fatalf("expected limit error")
	}
}

func TestModLogEmbed(t *testing.T) {
	embed := ModLogEmbed("mute", "m1", "u1", "", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if embed.Title != "Moderation Action: Mute" || embed.Color != 0xf39c12 {
		t.Fatalf("unexpected embed %+v", embed)
	}
	if embed.Fields[2].Value != DefaultReason {
		t.Fatalf("expected default reason, got %q", embed.Fields[2].Value)
	}
	if ActionColor("warn") != defaultActionColor {
		t.Fatalf("expected default colour for unknown action")
	}
}
