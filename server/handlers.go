package server

import (
	"database/sql"
	"time"
)

// Transport is a chat connection whose state is reported by the health endpoints.
type Transport interface {
	Name() string
	Connected() bool
}

// ConversationCounter reports how many conversations have correction history.
type ConversationCounter interface {
	Conversations() int
}

// Options are the dependencies the handlers report on. Every field is optional.
type Options struct {
	DB         *sql.DB
	Transports []Transport
	History    ConversationCounter
	Plugins    []string
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	opts    Options
	started time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{opts: opts, started: time.Now()}
}
