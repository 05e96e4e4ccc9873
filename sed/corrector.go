package sed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/telemetry"
)

const (
	// DefaultMaxExtraChars is how much longer than the original line a
	// correction may grow.
	DefaultMaxExtraChars = 32
	// DefaultMaxLength is the absolute cap on a posted correction.
	DefaultMaxLength = 256

	tooLongMsg   = "Replacement would be too long. I won't post it to prevent potential spam."
	multilineMsg = "Replacement would span multiple lines. I won't post it."
)

// Outcome labels for the corrections metric.
const (
	OutcomePosted      = "posted"
	OutcomePrivate     = "private"
	OutcomeTooLong     = "too_long"
	OutcomeMultiline   = "multiline"
	OutcomeEditorError = "editor_error"
	OutcomeNoMatch     = "no_match"
)

// commandPattern recognises correction commands. The expression itself is
// validated by the editor, not here.
var commandPattern = regexp.MustCompile(`^\s*s[/|\\!.,].+`)

// IsCommand reports whether text looks like a correction command.
func IsCommand(text string) bool {
	return commandPattern.MatchString(text)
}

// Config tunes the corrector.
type Config struct {
	HistorySize   int
	MaxExtraChars int
	MaxLength     int
	// CommandPrefix marks bot commands, which are never remembered.
	CommandPrefix string
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.MaxExtraChars <= 0 {
		c.MaxExtraChars = DefaultMaxExtraChars
	}
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	return c
}

// Corrector is the sed plugin: it remembers recent chat and answers
// s/find/replace/ commands against it.
type Corrector struct {
	cfg     Config
	editor  Editor
	history *History
}

// NewCorrector builds a corrector that runs substitutions through ed.
func NewCorrector(cfg Config, ed Editor) *Corrector {
	cfg = cfg.withDefaults()
	return &Corrector{cfg: cfg, editor: ed, history: NewHistory(cfg.HistorySize)}
}

// Name implements bot.Plugin.
func (c *Corrector) Name() string { return "sed" }

// History exposes the remembered lines.
func (c *Corrector) History() *History { return c.history }

// Handle implements bot.Plugin. Ordinary chat is remembered; correction
// commands are answered and never remembered.
func (c *Corrector) Handle(ctx context.Context, ev bot.Event) []bot.Reply {
	if ev.Kind != bot.KindMessage {
		return nil
	}
	if IsCommand(ev.Text) {
		return c.Correct(ctx, ev)
	}
	if c.cfg.CommandPrefix != "" && strings.HasPrefix(ev.Text, c.cfg.CommandPrefix) {
		return nil
	}
	c.history.Record(ev.Conversation(), ev.Nick, ev.Text)
	telemetry.SetSedConversations(c.history.Conversations())
	return nil
}

// Correct applies the command in ev to the newest remembered line it changes
// and returns at most one reply.
func (c *Corrector) Correct(ctx context.Context, ev bot.Event) []bot.Reply {
	conversation := ev.Conversation()
	if !c.history.Has(conversation) {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "sed", "sed.correct",
		telemetry.ConversationAttr(conversation), telemetry.NickAttr(ev.Nick))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "sed"), slog.String("conversation", conversation))

	for _, line := range c.history.Entries(conversation) {
		original := strings.TrimSpace(line.Text)
		corrected, err := Edit(ctx, c.editor, original, ev.Text)
		if err != nil {
			// A malformed expression fails the same way on every line.
			telemetry.RecordError(span, err)
			telemetry.IncSedOutcome(OutcomeEditorError)
			return []bot.Reply{bot.Notice(ev.Nick, editorMessage(log, err))}
		}
		if corrected == "" || corrected == original {
			continue
		}

		// A chat line cannot carry a line break; sed emits one for \n in the replacement.
		if strings.ContainsAny(corrected, "\r\n") {
			telemetry.IncSedOutcome(OutcomeMultiline)
			log.Debug("correction rejected as multi-line")
			return []bot.Reply{bot.Notice(ev.Nick, bot.Colorize("red", multilineMsg))}
		}

		if c.tooLong(original, corrected) {
			telemetry.IncSedOutcome(OutcomeTooLong)
			log.Debug("correction rejected as too long", slog.Int("length", utf8.RuneCountInString(corrected)))
			return []bot.Reply{bot.Notice(ev.Nick, bot.Colorize("red", tooLongMsg))}
		}

		telemetry.SetSpanSuccess(span)
		meant := bot.Bold("meant")
		if ev.Nick == line.Author {
			if !ev.Channel {
				telemetry.IncSedOutcome(OutcomePrivate)
				return []bot.Reply{bot.Private(ev.Nick, corrected)}
			}
			telemetry.IncSedOutcome(OutcomePosted)
			return []bot.Reply{bot.Say(ev.Target, fmt.Sprintf("%s %s to say: %s", ev.Nick, meant, corrected))}
		}
		telemetry.IncSedOutcome(OutcomePosted)
		return []bot.Reply{bot.Say(ev.Target, fmt.Sprintf("%s thinks %s %s to say: %s", ev.Nick, line.Author, meant, corrected))}
	}

	telemetry.IncSedOutcome(OutcomeNoMatch)
	return nil
}

// tooLong is the spam guard. Lengths are counted in characters.
func (c *Corrector) tooLong(original, corrected string) bool {
	n := utf8.RuneCountInString(corrected)
	return n > utf8.RuneCountInString(original)+c.cfg.MaxExtraChars || n > c.cfg.MaxLength
}

func editorMessage(log *slog.Logger, err error) string {
	var edErr *EditorError
	if !errors.As(err, &edErr) {
		log.Warn("editor failed", slog.Any("err", err))
		return unknownErrorMsg
	}
	if edErr.Err != nil {
		log.Debug("editor rejected command", slog.String("msg", edErr.Msg), slog.Any("err", edErr.Err))
	}
	return edErr.Msg
}
