// Package chanlog records channel activity (messages, joins, parts, kicks, topic and mode
// changes, quits and nick changes) into a Store. Private conversations are never logged.
package chanlog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/telemetry"
)

// writeTimeout bounds a single store write so a slow database cannot stall the event loop.
const writeTimeout = 2 * time.Second

// Entry is one logged event. Channel is empty for network-wide events (QUIT, NICK).
type Entry struct {
	Nick    string
	Channel string
	Event   string
	Target  string
	Data    string
	At      time.Time
}

// Store persists entries.
type Store interface {
	InsertChanlog(ctx context.Context, e Entry) error
}

// Logger is the chanlog plugin.
type Logger struct {
	store Store
}

// New returns a Logger writing to store.
func New(store Store) *Logger {
	return &Logger{store: store}
}

func (l *Logger) Name() string { return "chanlog" }

// Handle implements bot.Plugin. It never replies.
func (l *Logger) Handle(ctx context.Context, ev bot.Event) []bot.Reply {
	if e, ok := entryFor(ev); ok {
		l.write(ctx, e)
	}
	return nil
}

// OnSent logs the bot's own channel messages.
func (l *Logger) OnSent(ctx context.Context, gw bot.Gateway, rep bot.Reply) {
	if rep.Kind != bot.ReplyChannel || !gw.IsChannel(rep.To) {
		return
	}
	l.write(ctx, Entry{Nick: gw.Nick(), Channel: rep.To, Event: bot.KindMessage.String(), Data: rep.Text, At: time.Now().UTC()})
}

// entryFor maps ev to a log entry; ok is false for events that are not logged.
func entryFor(ev bot.Event) (e Entry, ok bool) {
	if ev.Nick == "" {
		// server-originated
		return Entry{}, false
	}
	e = Entry{Nick: ev.Nick, Event: ev.Kind.String(), At: ev.At}

	switch ev.Kind {
	case bot.KindMessage:
		if !ev.Channel || bot.IsCTCPVersion(ev.Text) {
			return Entry{}, false
		}
		e.Channel, e.Data = ev.Target, ev.Text
	case bot.KindJoin, bot.KindPart, bot.KindTopic:
		e.Channel, e.Data = ev.Target, ev.Text
	case bot.KindQuit:
		e.Data = strings.ReplaceAll(ev.Text, "Quit: ", "")
	case bot.KindKick:
		e.Channel, e.Target = ev.Target, ev.Extra
		if ev.Text != ev.Nick {
			e.Data = ev.Text
		}
	case bot.KindNick:
		e.Data = ev.Extra
	case bot.KindMode:
		if !ev.Channel {
			return Entry{}, false
		}
		e.Channel, e.Data, e.Target = ev.Target, ev.Text, ev.Extra
	default:
		return Entry{}, false
	}

	e.Data = strings.ReplaceAll(e.Data, "\x00", "")
	return e, true
}

func (l *Logger) write(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := l.store.InsertChanlog(ctx, e); err != nil {
		telemetry.IncChanlogFailure()
		telemetry.LoggerWithCorr(ctx).Warn("chanlog write failed",
			slog.String("event", e.Event),
			slog.String("channel", e.Channel),
			slog.Any("err", err),
			slog.String("component", "chanlog"))
	}
}
