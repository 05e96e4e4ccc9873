package sed

import (
	"sync"

	"github.com/onnwee/cappuccino/bot"
)

// DefaultHistorySize is the number of lines kept per conversation.
const DefaultHistorySize = 25

// ChatLine is one remembered message.
type ChatLine struct {
	Author string
	Text   string
}

// History keeps the most recent lines of each conversation in a fixed-size
// ring. The zero value is not usable; call NewHistory.
type History struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*ring
}

type ring struct {
	lines []ChatLine
	start int // index of the oldest line once the ring is full
}

// NewHistory returns a history keeping capacity lines per conversation.
// Non-positive capacities fall back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity, rings: make(map[string]*ring)}
}

// Capacity returns the per-conversation line limit.
func (h *History) Capacity() int { return h.capacity }

// Record appends a line to the conversation, evicting the oldest line when
// the conversation is full. CTCP ACTION wrapping is stripped first.
func (h *History) Record(conversation, author, text string) {
	line := ChatLine{Author: author, Text: bot.StripCTCPAction(text)}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rings[conversation]
	if !ok {
		r = &ring{lines: make([]ChatLine, 0, h.capacity)}
		h.rings[conversation] = r
	}
	if len(r.lines) < h.capacity {
		r.lines = append(r.lines, line)
		return
	}
	r.lines[r.start] = line
	r.start = (r.start + 1) % h.capacity
}

// Entries returns the conversation's lines newest first. Unknown
// conversations yield nil.
func (h *History) Entries(conversation string) []ChatLine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rings[conversation]
	if !ok {
		return nil
	}
	n := len(r.lines)
	out := make([]ChatLine, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, r.lines[(r.start+i)%n])
	}
	return out
}

// Has reports whether anything was recorded for the conversation.
func (h *History) Has(conversation string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rings[conversation]
	return ok
}

// Len returns the number of lines held for the conversation.
func (h *History) Len(conversation string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rings[conversation]; ok {
		return len(r.lines)
	}
	return 0
}

// Conversations returns how many conversations have history.
func (h *History) Conversations() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rings)
}
