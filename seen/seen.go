// Package seen tracks when each nick last spoke in a channel and answers
// "<prefix>seen <nick>" questions about it.
package seen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/telemetry"
)

const dateLayout = "Jan 02 2006 15:04 UTC"

// Store keeps one timestamp per nick. Implementations compare nicks case-insensitively.
type Store interface {
	SetLastSeen(ctx context.Context, nick string, t time.Time) error
	LastSeen(ctx context.Context, nick string) (time.Time, bool, error)
}

// Tracker is the seen plugin.
type Tracker struct {
	store  Store
	prefix string
	now    func() time.Time
}

// New returns a Tracker answering commands that start with prefix.
func New(store Store, prefix string) *Tracker {
	return &Tracker{store: store, prefix: prefix, now: time.Now}
}

func (t *Tracker) Name() string { return "seen" }

// Handle implements bot.Plugin.
func (t *Tracker) Handle(ctx context.Context, ev bot.Event) []bot.Reply {
	if ev.Kind != bot.KindMessage || bot.IsCTCPVersion(ev.Text) {
		return nil
	}
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "seen"))

	if ev.Channel && !strings.EqualFold(ev.Nick, ev.Self) {
		if err := t.store.SetLastSeen(ctx, ev.Nick, t.now().UTC()); err != nil {
			log.Warn("record last seen failed", slog.String("nick", ev.Nick), slog.Any("err", err))
		}
	}

	name, args, ok := bot.ParseCommand(t.prefix, ev.Text)
	if !ok || (name != "seen" && name != "died") {
		return nil
	}
	text, err := t.answer(ctx, ev, args)
	if err != nil {
		log.Warn("last seen lookup failed", slog.Any("err", err))
		return nil
	}
	return []bot.Reply{bot.Respond(ev, text)}
}

func (t *Tracker) answer(ctx context.Context, ev bot.Event, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return fmt.Sprintf("Usage: %sseen <nick>", t.prefix), nil
	}
	nick := fields[0]

	switch {
	case strings.EqualFold(nick, ev.Self):
		return "I'm right here, idiot. -_-", nil
	case strings.EqualFold(nick, ev.Nick):
		return "Are you seriously asking me that?", nil
	}

	last, found, err := t.store.LastSeen(ctx, nick)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("I haven't seen any activity from %s yet.", nick), nil
	}
	last = last.UTC()
	ago := humanize.RelTime(last, t.now(), "ago", "from now")
	return fmt.Sprintf("%s was last seen %s. (%s)", nick, ago, last.Format(dateLayout)), nil
}
