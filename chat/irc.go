package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/lrstanley/girc"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/config"
	"github.com/onnwee/cappuccino/telemetry"
)

const ircName = "irc"

// IRC connects the router to a classic IRC network. It is the bot.Gateway for
// the events it dispatches.
type IRC struct {
	cfg       config.IRC
	router    *bot.Router
	client    *girc.Client
	connected atomic.Bool
}

// NewIRC prepares a client for cfg. Nothing is dialed until Run.
func NewIRC(cfg config.IRC, router *bot.Router) *IRC {
	gc := girc.Config{
		Server: cfg.Server,
		Port:   cfg.Port,
		Nick:   cfg.Nick,
		User:   cfg.User,
		Name:   cfg.RealName,
		SSL:    cfg.TLS,
	}
	if cfg.SASLUser != "" {
		gc.SASL = &girc.SASLPlain{User: cfg.SASLUser, Pass: cfg.SASLPass}
	}
	return &IRC{cfg: cfg, router: router, client: girc.New(gc)}
}

// Name identifies the transport in metrics and status output.
func (i *IRC) Name() string { return ircName }

// Connected reports whether the client is registered with the server.
func (i *IRC) Connected() bool { return i.connected.Load() }

// Run connects and dispatches events until ctx is canceled.
func (i *IRC) Run(ctx context.Context) error {
	log := slog.Default().With(slog.String("component", "chat"), slog.String("transport", ircName))

	i.client.Handlers.Add(girc.CONNECTED, func(c *girc.Client, _ girc.Event) {
		i.connected.Store(true)
		telemetry.SetTransportUp(ircName, true)
		log.Info("irc connected", slog.String("server", i.cfg.Server), slog.Any("channels", i.cfg.Channels))
		if len(i.cfg.Channels) > 0 {
			c.Cmd.Join(i.cfg.Channels...)
		}
	})
	i.client.Handlers.Add(girc.DISCONNECTED, func(*girc.Client, girc.Event) {
		i.connected.Store(false)
		telemetry.SetTransportUp(ircName, false)
	})
	for _, cmd := range []string{girc.PRIVMSG, girc.JOIN, girc.PART, girc.QUIT, girc.KICK, girc.NICK, girc.TOPIC, girc.MODE} {
		i.client.Handlers.Add(cmd, func(c *girc.Client, e girc.Event) {
			ev, ok := toEvent(e)
			if !ok {
				return
			}
			if ev.Kind == bot.KindMessage {
				ev.Operator = isOperator(c, ev.Target, ev.Nick)
			}
			if err := i.router.Dispatch(ctx, i, ev); err != nil {
				log.Debug("dropping event", slog.String("kind", ev.Kind.String()), slog.Any("err", err))
			}
		})
	}

	// Close makes a blocked Connect return.
	stop := context.AfterFunc(ctx, func() { i.client.Close() })
	defer stop()

	return runWithReconnect(ctx, ircName, func() error {
		err := i.client.Connect()
		i.connected.Store(false)
		return err
	})
}

// toEvent maps an IRC message onto a bot event; ok is false for messages the
// bot does not handle.
func toEvent(e girc.Event) (ev bot.Event, ok bool) {
	if e.Source != nil {
		ev.Nick = e.Source.Name
	}
	param := func(n int) string {
		if n < len(e.Params) {
			return e.Params[n]
		}
		return ""
	}

	switch e.Command {
	case girc.PRIVMSG:
		text := param(1)
		if strings.HasPrefix(text, "\x01") && !e.IsAction() {
			// CTCP requests other than ACTION are answered by the client library.
			return bot.Event{}, false
		}
		ev.Kind, ev.Target, ev.Text = bot.KindMessage, param(0), text
	case girc.JOIN:
		ev.Kind, ev.Target = bot.KindJoin, param(0)
	case girc.PART:
		ev.Kind, ev.Target, ev.Text = bot.KindPart, param(0), param(1)
	case girc.QUIT:
		ev.Kind, ev.Text = bot.KindQuit, param(0)
	case girc.KICK:
		ev.Kind, ev.Target, ev.Extra, ev.Text = bot.KindKick, param(0), param(1), param(2)
	case girc.NICK:
		ev.Kind, ev.Extra = bot.KindNick, param(0)
	case girc.TOPIC:
		ev.Kind, ev.Target, ev.Text = bot.KindTopic, param(0), param(1)
	case girc.MODE:
		ev.Kind, ev.Target, ev.Text = bot.KindMode, param(0), param(1)
		if len(e.Params) > 2 {
			ev.Extra = strings.Join(e.Params[2:], " ")
		}
	default:
		return bot.Event{}, false
	}
	return ev, true
}

// isOperator reports whether nick holds op or higher in channel, according to
// the client's state tracking.
func isOperator(c *girc.Client, channel, nick string) bool {
	user := c.LookupUser(nick)
	if user == nil || user.Perms == nil {
		return false
	}
	perms, ok := user.Perms.Lookup(channel)
	return ok && perms.IsAdmin()
}

func (i *IRC) SendChannelMessage(target, text string) error {
	if !i.client.IsConnected() {
		return ErrNotConnected
	}
	i.client.Cmd.Message(target, text)
	return nil
}

func (i *IRC) SendPrivateMessage(user, text string) error {
	return i.SendChannelMessage(user, text)
}

func (i *IRC) SendNotice(user, text string) error {
	if !i.client.IsConnected() {
		return ErrNotConnected
	}
	i.client.Cmd.Notice(user, text)
	return nil
}

func (i *IRC) IsChannel(target string) bool { return girc.IsValidChannel(target) }

func (i *IRC) Nick() string { return i.client.GetNick() }
