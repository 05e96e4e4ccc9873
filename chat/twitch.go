package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/config"
	"github.com/onnwee/cappuccino/telemetry"
)

const twitchName = "twitch"

// Twitch connects the router to Twitch chat.
type Twitch struct {
	cfg       config.Twitch
	router    *bot.Router
	client    *twitch.Client
	connected atomic.Bool
}

// NewTwitch prepares a client for cfg. Nothing is dialed until Run.
func NewTwitch(cfg config.Twitch, router *bot.Router) *Twitch {
	return &Twitch{cfg: cfg, router: router, client: twitch.NewClient(cfg.BotUsername, cfg.OAuthToken)}
}

// Name identifies the transport in metrics and status output.
func (t *Twitch) Name() string { return twitchName }

// Connected reports whether the client is logged in.
func (t *Twitch) Connected() bool { return t.connected.Load() }

// Run connects and dispatches events until ctx is canceled.
func (t *Twitch) Run(ctx context.Context) error {
	log := slog.Default().With(slog.String("component", "chat"), slog.String("transport", twitchName))

	dispatch := func(ev bot.Event) {
		gw := &twitchGateway{say: t.say, nick: t.cfg.BotUsername, channel: ev.Target}
		if err := t.router.Dispatch(ctx, gw, ev); err != nil {
			log.Debug("dropping event", slog.String("kind", ev.Kind.String()), slog.Any("err", err))
		}
	}

	t.client.OnConnect(func() {
		t.connected.Store(true)
		telemetry.SetTransportUp(twitchName, true)
		log.Info("twitch connected", slog.Any("channels", t.cfg.Channels))
	})
	t.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		text := msg.Message
		if msg.Action {
			text = "\x01ACTION " + text + "\x01"
		}
		dispatch(bot.Event{
			Kind:     bot.KindMessage,
			Nick:     msg.User.Name,
			Target:   channelName(msg.Channel),
			Text:     text,
			Operator: isModerator(msg.User.Badges),
		})
	})
	t.client.OnUserJoinMessage(func(msg twitch.UserJoinMessage) {
		dispatch(bot.Event{Kind: bot.KindJoin, Nick: msg.User, Target: channelName(msg.Channel)})
	})
	t.client.OnUserPartMessage(func(msg twitch.UserPartMessage) {
		dispatch(bot.Event{Kind: bot.KindPart, Nick: msg.User, Target: channelName(msg.Channel)})
	})

	// Handle context cancellation by closing the client
	stop := context.AfterFunc(ctx, func() { t.client.Disconnect() })
	defer stop()

	t.client.Join(t.cfg.Channels...)
	return runWithReconnect(ctx, twitchName, func() error {
		err := t.client.Connect()
		t.connected.Store(false)
		return err
	})
}

func (t *Twitch) say(channel, text string) error {
	if !t.connected.Load() {
		return ErrNotConnected
	}
	t.client.Say(strings.TrimPrefix(channel, "#"), singleLine(text))
	return nil
}

// lineBreaks would end the PRIVMSG early and start a new raw command.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func singleLine(text string) string {
	return lineBreaks.Replace(text)
}

// isModerator reports whether the badges allow moderating the channel.
func isModerator(badges map[string]int) bool {
	_, owner := badges["broadcaster"]
	_, mod := badges["moderator"]
	return owner || mod
}

// channelName gives Twitch channels the same '#' form IRC channels have.
func channelName(ch string) string {
	return "#" + strings.TrimPrefix(strings.ToLower(ch), "#")
}

// twitchGateway answers one event. Notices and private replies become
// channel messages addressed to the user. Twitch shows IRC formatting codes
// as raw bytes, so they are removed.
type twitchGateway struct {
	say     func(channel, text string) error
	nick    string
	channel string
}

func (g *twitchGateway) send(channel, text string) error {
	return g.say(channel, singleLine(bot.Unstyle(text)))
}

func (g *twitchGateway) SendChannelMessage(target, text string) error {
	return g.send(target, text)
}

func (g *twitchGateway) SendPrivateMessage(user, text string) error {
	return g.send(g.channel, "@"+user+" "+text)
}

func (g *twitchGateway) SendNotice(user, text string) error {
	return g.send(g.channel, "@"+user+" "+text)
}

func (g *twitchGateway) IsChannel(target string) bool { return strings.HasPrefix(target, "#") }

func (g *twitchGateway) Nick() string { return strings.ToLower(g.nick) }
