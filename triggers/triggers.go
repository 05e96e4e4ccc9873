// Package triggers answers ?name lookups with canned per-channel responses.
// Channel operators manage them with the trigger command.
package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/telemetry"
)

// maxPerMessage caps how many lookups one message can cause.
const maxPerMessage = 3

var (
	lookupPattern = regexp.MustCompile(`\?([A-Za-z0-9]+)`)
	namePattern   = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// Store persists triggers. Implementations compare channel and name
// case-insensitively.
type Store interface {
	SetTrigger(ctx context.Context, channel, name, response string) error
	DeleteTrigger(ctx context.Context, channel, name string) (bool, error)
	Trigger(ctx context.Context, channel, name string) (response string, ok bool, err error)
	ListTriggers(ctx context.Context, channel string) ([]string, error)
}

// Plugin is the triggers plugin.
type Plugin struct {
	store  Store
	prefix string
}

// New returns a plugin backed by store. prefix is the bot command prefix.
func New(store Store, prefix string) *Plugin {
	return &Plugin{store: store, prefix: prefix}
}

func (p *Plugin) Name() string { return "triggers" }

// Handle implements bot.Plugin.
func (p *Plugin) Handle(ctx context.Context, ev bot.Event) []bot.Reply {
	if ev.Kind != bot.KindMessage || strings.EqualFold(ev.Nick, ev.Self) {
		return nil
	}
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "triggers"))

	if name, args, ok := bot.ParseCommand(p.prefix, ev.Text); ok {
		if name != "trigger" {
			return nil
		}
		text, err := p.command(ctx, ev, args)
		if err != nil {
			log.Warn("trigger command failed", slog.String("channel", ev.Target), slog.Any("err", err))
			return nil
		}
		return []bot.Reply{bot.Respond(ev, text)}
	}

	if !ev.Channel {
		return nil
	}
	var replies []bot.Reply
	for _, name := range lookups(ev.Text) {
		response, found, err := p.store.Trigger(ctx, ev.Target, name)
		if err != nil {
			log.Warn("trigger lookup failed", slog.String("trigger", name), slog.Any("err", err))
			continue
		}
		if found {
			replies = append(replies, bot.Say(ev.Target, "["+bot.Colorize("orange", name)+"] "+response))
		}
	}
	return replies
}

// lookups returns the distinct lower-cased names among the first
// maxPerMessage ?name references in text.
func lookups(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range lookupPattern.FindAllStringSubmatch(text, maxPerMessage) {
		name := strings.ToLower(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (p *Plugin) usage() string {
	return fmt.Sprintf("Usage: %strigger (set <trigger> <response>... | del <trigger> | list)", p.prefix)
}

func (p *Plugin) command(ctx context.Context, ev bot.Event, args string) (string, error) {
	if !ev.Channel {
		return "This command can only be used in channels.", nil
	}
	sub, rest, _ := strings.Cut(args, " ")
	sub = strings.ToLower(sub)
	rest = strings.TrimSpace(rest)

	if (sub == "set" || sub == "del") && !ev.Operator {
		return "Only channel operators may modify channel triggers.", nil
	}

	switch sub {
	case "set":
		name, response, _ := strings.Cut(rest, " ")
		response = strings.TrimSpace(response)
		if name == "" || response == "" {
			return p.usage(), nil
		}
		if !namePattern.MatchString(name) {
			return "Trigger names may only contain letters and digits.", nil
		}
		if err := p.store.SetTrigger(ctx, ev.Target, name, response); err != nil {
			return "", err
		}
		return fmt.Sprintf("Trigger '%s' set.", name), nil
	case "del":
		name, _, _ := strings.Cut(rest, " ")
		if name == "" {
			return p.usage(), nil
		}
		deleted, err := p.store.DeleteTrigger(ctx, ev.Target, name)
		if err != nil {
			return "", err
		}
		if !deleted {
			return "No such trigger.", nil
		}
		return fmt.Sprintf("Deleted trigger '%s'.", name), nil
	case "list":
		names, err := p.store.ListTriggers(ctx, ev.Target)
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return fmt.Sprintf("No triggers available for %s", ev.Target), nil
		}
		return fmt.Sprintf("Available triggers for %s: %s", ev.Target, strings.Join(names, ", ")), nil
	default:
		return p.usage(), nil
	}
}
