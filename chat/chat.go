package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/onnwee/cappuccino/telemetry"
)

// ErrNotConnected is returned by sends attempted while a transport is offline.
var ErrNotConnected = errors.New("chat: not connected")

// Reconnect pacing. stableSession is how long a connection must last before
// the backoff starts over from its initial interval.
var (
	reconnectInitial = 2 * time.Second
	reconnectMax     = 2 * time.Minute
	stableSession    = 5 * time.Minute
)

// session runs one connection and blocks until it ends.
type session func() error

// runWithReconnect calls connect until ctx is canceled, waiting with
// exponential backoff between sessions that ended on their own.
func runWithReconnect(ctx context.Context, transport string, connect session) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitial
	b.MaxInterval = reconnectMax
	log := slog.Default().With(slog.String("component", "chat"), slog.String("transport", transport))

	for ctx.Err() == nil {
		started := time.Now()
		err := connect()
		telemetry.SetTransportUp(transport, false)
		if ctx.Err() != nil {
			log.Info("chat transport stopped")
			return nil
		}
		if time.Since(started) > stableSession {
			b.Reset()
		}
		wait := b.NextBackOff()
		log.Warn("chat connection lost, reconnecting", slog.Any("err", err), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("chat transport stopped")
			return nil
		case <-timer.C:
		}
	}
	return nil
}
