// Package dispatch classifies chat messages and routes prefixed commands to typed handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type Permission int

const (
	Everyone Permission = iota
	Moderator
	Administrator
)

const moderatorPerms = discordgo.PermissionKickMembers |
	discordgo.PermissionBanMembers |
	discordgo.PermissionManageRoles |
	discordgo.PermissionManageMessages |
	discordgo.PermissionModerateMembers

// Allows reports whether a member holding perms may run a command of class p.
func (p Permission) Allows(perms int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	switch p {
	case Everyone:
		return true
	case Moderator:
		return perms&moderatorPerms != 0
	default:
		return false
	}
}

func (p Permission) String() string {
	switch p {
	case Moderator:
		return "moderator"
	case Administrator:
		return "administrator"
	default:
		return "everyone"
	}
}

type Message struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	AuthorName  string
	AvatarURL   string
	Content     string
	Permissions int64
}

func (m Message) InGuild() bool {
	return m.GuildID != ""
}

// Request is what a handler sees: the message plus the parsed invocation.
type Request struct {
	Message
	Prefix string
	Name   string
	Args   []string
	// Rest is the raw text after the command name.
	Rest string
}

type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
	Files   []*discordgo.File
	Private bool
}

func (r Reply) Empty() bool {
	return r.Content == "" && r.Embed == nil && len(r.Files) == 0
}

type Handler func(ctx context.Context, req *Request) (Reply, error)

type Command struct {
	Name        string
	Usage       string
	Description string
	Permission  Permission
	GuildOnly   bool
	MinArgs     int
	Handler     Handler
}

type Registry struct {
	commands map[string]*Command
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

func (r *Registry) Register(cmd Command) error {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if name == "" {
		return errors.New("command name required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %s: handler required", name)
	}
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	cmd.Name = name
	if cmd.Usage == "" {
		cmd.Usage = name
	}
	r.commands[name] = &cmd
	r.order = append(r.order, name)
	return nil
}

// MustRegister panics on a duplicate or invalid command. Only used while wiring at startup.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Names returns command names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}
