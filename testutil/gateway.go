package testutil

import (
	"strings"
	"sync"

	"github.com/onnwee/cappuccino/bot"
)

// RecordingGateway is a bot.Gateway that keeps every reply in memory instead
// of sending it anywhere. Channels are targets starting with '#' or '&'.
type RecordingGateway struct {
	BotNick string
	// Err, when set, is returned from every send (the reply is still recorded).
	Err error

	mu   sync.Mutex
	sent []bot.Reply
}

// NewRecordingGateway returns a gateway for a bot called nick.
func NewRecordingGateway(nick string) *RecordingGateway {
	return &RecordingGateway{BotNick: nick}
}

func (g *RecordingGateway) record(kind bot.ReplyKind, to, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, bot.Reply{Kind: kind, To: to, Text: text})
	return g.Err
}

func (g *RecordingGateway) SendChannelMessage(target, text string) error {
	return g.record(bot.ReplyChannel, target, text)
}

func (g *RecordingGateway) SendPrivateMessage(user, text string) error {
	return g.record(bot.ReplyPrivate, user, text)
}

func (g *RecordingGateway) SendNotice(user, text string) error {
	return g.record(bot.ReplyNotice, user, text)
}

func (g *RecordingGateway) IsChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

func (g *RecordingGateway) Nick() string { return g.BotNick }

// Sent returns a copy of the recorded replies in send order.
func (g *RecordingGateway) Sent() []bot.Reply {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]bot.Reply, len(g.sent))
	copy(out, g.sent)
	return out
}

// Reset forgets everything recorded so far.
func (g *RecordingGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
}
