package bot

import (
	"context"
	"strings"
	"time"
)

// Kind identifies what happened on the network.
type Kind int

const (
	KindMessage Kind = iota
	KindJoin
	KindPart
	KindQuit
	KindKick
	KindNick
	KindTopic
	KindMode
)

// String returns the IRC verb for the kind.
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "PRIVMSG"
	case KindJoin:
		return "JOIN"
	case KindPart:
		return "PART"
	case KindQuit:
		return "QUIT"
	case KindKick:
		return "KICK"
	case KindNick:
		return "NICK"
	case KindTopic:
		return "TOPIC"
	case KindMode:
		return "MODE"
	default:
		return "UNKNOWN"
	}
}

// Event is a parsed inbound network event.
//
// Target is the channel for channel-scoped events or the bot's own nick for
// private messages. Self is the bot's nick on the network the event came
// from. Extra carries the secondary parameter of an event: the
// kicked nick for KICK, the mode arguments for MODE, the new nick for NICK.
// Operator is set by the transport when Nick may moderate the channel
// (IRC op or higher, Twitch broadcaster or moderator).
type Event struct {
	ID       string
	Kind     Kind
	Nick     string
	Target   string
	Text     string
	Extra    string
	Self     string
	Channel  bool
	Operator bool
	At       time.Time
}

// Conversation returns the key under which per-conversation state is kept:
// the channel name for channel events, the peer's nick otherwise.
func (e Event) Conversation() string {
	if e.Channel {
		return e.Target
	}
	return e.Nick
}

// ReplyKind selects how a reply is delivered.
type ReplyKind int

const (
	ReplyChannel ReplyKind = iota
	ReplyPrivate
	ReplyNotice
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyChannel:
		return "channel"
	case ReplyPrivate:
		return "private"
	case ReplyNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Reply is one outgoing line produced by a plugin.
type Reply struct {
	Kind ReplyKind
	To   string
	Text string
}

// Say posts text to a channel.
func Say(target, text string) Reply { return Reply{Kind: ReplyChannel, To: target, Text: text} }

// Private sends text directly to a user.
func Private(user, text string) Reply { return Reply{Kind: ReplyPrivate, To: user, Text: text} }

// Notice sends a notice to a user.
func Notice(user, text string) Reply { return Reply{Kind: ReplyNotice, To: user, Text: text} }

// Respond answers ev where it came from: in the channel for channel events,
// privately otherwise.
func Respond(ev Event, text string) Reply {
	if ev.Channel {
		return Say(ev.Target, text)
	}
	return Private(ev.Nick, text)
}

// Gateway is the outbound half of a transport.
type Gateway interface {
	SendChannelMessage(target, text string) error
	SendPrivateMessage(user, text string) error
	SendNotice(user, text string) error
	// IsChannel reports whether target denotes a multi-user channel.
	IsChannel(target string) bool
	// Nick is the bot's current nick on this network.
	Nick() string
}

// Plugin handles events and returns the replies to send, in order.
type Plugin interface {
	Name() string
	Handle(ctx context.Context, ev Event) []Reply
}

// SentObserver is implemented by plugins that want to see the bot's own
// replies after they were delivered.
type SentObserver interface {
	OnSent(ctx context.Context, gw Gateway, rep Reply)
}

const (
	ctcpDelim   = "\x01"
	ctcpAction  = "\x01ACTION "
	ctcpVersion = "\x01VERSION"
)

// StripCTCPAction reduces a CTCP ACTION (/me) to its payload. Other text is
// returned with stray CTCP delimiters removed.
func StripCTCPAction(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, ctcpAction, ""), ctcpDelim, "")
}

// IsCTCPVersion reports whether text is a CTCP VERSION request.
func IsCTCPVersion(text string) bool {
	return strings.HasPrefix(text, ctcpVersion)
}
