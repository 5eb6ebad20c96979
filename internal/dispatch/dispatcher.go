package dispatch

import (
	"context"
	"fmt"
	"strings"

	"guildbot/internal/analytics"
	"guildbot/internal/settings"

	"go.uber.org/zap"
)

type State int

const (
	StateEmpty State = iota
	StateExecuted
	StateUsage
	StatePermissionDenied
	StateGuildOnly
	StateCustom
	StateSuggestion
	StateFreeText
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateExecuted:
		return "executed"
	case StateUsage:
		return "usage"
	case StatePermissionDenied:
		return "permission_denied"
	case StateGuildOnly:
		return "guild_only"
	case StateCustom:
		return "custom"
	case StateSuggestion:
		return "suggestion"
	case StateFreeText:
		return "free_text"
	default:
		return "unknown"
	}
}

const PrivateMarker = "?"

const (
	deniedMessage    = "You don't have permission to use this command."
	guildOnlyMessage = "This command can only be used in a server."
	failedMessage    = "Something went wrong while running that command."
)

type Result struct {
	State   State
	Command string
	Reply   *Reply
	Err     error
}

type Settings interface {
	String(guildID, key string) string
}

type CustomCommands interface {
	Has(guildID, name string) bool
	Get(guildID, name string) (string, bool)
}

type Responder interface {
	Lookup(ctx context.Context, text string) string
}

type Dispatcher struct {
	registry  *Registry
	settings  Settings
	custom    CustomCommands
	responder Responder
	stats     *analytics.Service
	logger    *zap.Logger
	rules     []rule
}

// parsed is computed once per message and shared by every rule.
type parsed struct {
	msg      Message
	text     string
	prefix   string
	prefixed bool
	name     string
	args     []string
	rest     string
	command  *Command
}

type rule struct {
	name  string
	match func(p *parsed) bool
	apply func(ctx context.Context, p *parsed) Result
}

func New(registry *Registry, guildSettings Settings, custom CustomCommands, responder Responder, stats *analytics.Service, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		settings:  guildSettings,
		custom:    custom,
		responder: responder,
		stats:     stats,
		logger:    logger,
	}
	d.rules = []rule{
		{name: "empty", match: isEmpty, apply: d.empty},
		{name: "command", match: isKnownCommand, apply: d.execute},
		{name: "custom", match: d.isCustomCommand, apply: d.runCustom},
		{name: "unknown", match: isPrefixed, apply: d.suggest},
		{name: "private", match: isPrivate, apply: d.privateLookup},
		{name: "free_text", match: func(*parsed) bool { return true }, apply: d.lookup},
	}
	return d
}

// Dispatch evaluates the rule table once and returns the first matching outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Result {
	p := d.parse(msg)
	if !isEmpty(p) {
		d.stats.RecordMessage(msg.AuthorID)
		if p.prefixed && p.name != "" {
			d.stats.RecordCommand(p.name)
		}
	}
	for _, r := range d.rules {
		if r.match(p) {
			d.logger.Debug("message dispatched", zap.String("rule", r.name), zap.String("user_id", msg.AuthorID))
			return r.apply(ctx, p)
		}
	}
	return Result{State: StateEmpty}
}

func (d *Dispatcher) Prefix(guildID string) string {
	prefix := d.settings.String(guildID, settings.KeyPrefix)
	if prefix == "" {
		return "!"
	}
	return prefix
}

func (d *Dispatcher) parse(msg Message) *parsed {
	p := &parsed{msg: msg, text: strings.TrimSpace(msg.Content), prefix: d.Prefix(msg.GuildID)}
	if p.text == "" || !strings.HasPrefix(p.text, p.prefix) {
		return p
	}
	p.prefixed = true
	body := strings.TrimSpace(strings.TrimPrefix(p.text, p.prefix))
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return p
	}
	p.name = strings.ToLower(fields[0])
	p.args = fields[1:]
	p.rest = strings.TrimSpace(body[len(fields[0]):])
	p.command, _ = d.registry.Lookup(p.name)
	return p
}

func isEmpty(p *parsed) bool { return p.text == "" }

func isKnownCommand(p *parsed) bool { return p.prefixed && p.command != nil }

func isPrefixed(p *parsed) bool { return p.prefixed }

func isPrivate(p *parsed) bool { return strings.HasPrefix(p.text, PrivateMarker) }

func (d *Dispatcher) isCustomCommand(p *parsed) bool {
	return p.prefixed && p.name != "" && p.msg.InGuild() && d.custom != nil && d.custom.Has(p.msg.GuildID, p.name)
}

func (d *Dispatcher) empty(_ context.Context, p *parsed) Result {
	d.logger.Debug("empty message ignored", zap.String("channel_id", p.msg.ChannelID), zap.String("user_id", p.msg.AuthorID))
	return Result{State: StateEmpty}
}

func (d *Dispatcher) execute(ctx context.Context, p *parsed) Result {
	cmd := p.command
	if cmd.GuildOnly && !p.msg.InGuild() {
		return Result{State: StateGuildOnly, Command: cmd.Name, Reply: &Reply{Content: guildOnlyMessage}}
	}
	if !cmd.Permission.Allows(p.msg.Permissions) {
		return Result{State: StatePermissionDenied, Command: cmd.Name, Reply: &Reply{Content: deniedMessage}}
	}
	if len(p.args) < cmd.MinArgs {
		return Result{State: StateUsage, Command: cmd.Name, Reply: &Reply{Content: fmt.Sprintf("Usage: `%s%s`", p.prefix, cmd.Usage)}}
	}

	req := &Request{Message: p.msg, Prefix: p.prefix, Name: cmd.Name, Args: p.args, Rest: p.rest}
	reply, err := cmd.Handler(ctx, req)
	if err != nil {
		d.logger.Warn("command failed", zap.String("command", cmd.Name), zap.String("guild_id", p.msg.GuildID), zap.Error(err))
		return Result{State: StateExecuted, Command: cmd.Name, Reply: &Reply{Content: failedMessage}, Err: err}
	}
	result := Result{State: StateExecuted, Command: cmd.Name}
	if !reply.Empty() {
		result.Reply = &reply
	}
	return result
}

func (d *Dispatcher) runCustom(ctx context.Context, p *parsed) Result {
	response, ok := d.custom.Get(p.msg.GuildID, p.name)
	if !ok {
		// Deleted between Has and Get.
		return d.suggest(ctx, p)
	}
	return Result{State: StateCustom, Command: p.name, Reply: &Reply{Content: response}}
}

func (d *Dispatcher) suggest(_ context.Context, p *parsed) Result {
	var b strings.Builder
	fmt.Fprintf(&b, "Command `%s%s` not found.", p.prefix, p.name)
	if suggestion := Suggest(p.name, d.registry.Names()); suggestion != "" {
		fmt.Fprintf(&b, " Did you mean `%s%s`?", p.prefix, suggestion)
	}
	fmt.Fprintf(&b, " Use `%shelp` to see all commands.", p.prefix)
	return Result{State: StateSuggestion, Command: p.name, Reply: &Reply{Content: b.String()}}
}

func (d *Dispatcher) privateLookup(ctx context.Context, p *parsed) Result {
	text := strings.TrimPrefix(p.text, PrivateMarker)
	return Result{State: StateFreeText, Reply: &Reply{Content: d.responder.Lookup(ctx, text), Private: true}}
}

func (d *Dispatcher) lookup(ctx context.Context, p *parsed) Result {
	return Result{State: StateFreeText, Reply: &Reply{Content: d.responder.Lookup(ctx, p.text)}}
}
