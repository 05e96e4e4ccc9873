package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/cappuccino/telemetry"
)

// queueSize bounds how many inbound events may wait for the event loop.
const queueSize = 256

type inbound struct {
	gw Gateway
	ev Event
}

// Router fans events out to a fixed list of plugins on a single goroutine.
type Router struct {
	plugins []Plugin
	queue   chan inbound
	now     func() time.Time
}

// NewRouter returns a router that calls plugins in the given order.
func NewRouter(plugins ...Plugin) *Router {
	return &Router{
		plugins: plugins,
		queue:   make(chan inbound, queueSize),
		now:     time.Now,
	}
}

// Plugins returns the registered plugin names in call order.
func (r *Router) Plugins() []string {
	names := make([]string, 0, len(r.plugins))
	for _, p := range r.plugins {
		names = append(names, p.Name())
	}
	return names
}

// Dispatch queues an event for the event loop. It blocks while the queue is
// full and gives up when ctx is done.
func (r *Router) Dispatch(ctx context.Context, gw Gateway, ev Event) error {
	select {
	case r.queue <- inbound{gw: gw, ev: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued events one at a time until ctx is canceled.
func (r *Router) Run(ctx context.Context) error {
	slog.Info("router started", slog.Any("plugins", r.Plugins()), slog.String("component", "router"))
	for {
		select {
		case <-ctx.Done():
			slog.Info("router stopped", slog.String("component", "router"))
			return nil
		case in := <-r.queue:
			r.Handle(ctx, in.gw, in.ev)
		}
	}
}

// Handle runs every plugin against ev and delivers their replies through gw
// before returning.
func (r *Router) Handle(ctx context.Context, gw Gateway, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = r.now().UTC()
	}
	ev.Channel = gw.IsChannel(ev.Target)
	ev.Self = gw.Nick()
	ctx = telemetry.WithCorrelation(ctx, ev.ID)
	telemetry.IncEvent(ev.Kind.String())

	for _, p := range r.plugins {
		replies := r.runPlugin(ctx, p, ev)
		if len(replies) > 0 {
			r.notifySent(ctx, gw, Deliver(ctx, gw, replies))
		}
	}
}

func (r *Router) notifySent(ctx context.Context, gw Gateway, sent []Reply) {
	for _, p := range r.plugins {
		obs, ok := p.(SentObserver)
		if !ok {
			continue
		}
		for _, rep := range sent {
			obs.OnSent(ctx, gw, rep)
		}
	}
}

func (r *Router) runPlugin(ctx context.Context, p Plugin, ev Event) (replies []Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.IncPluginPanic(p.Name())
			telemetry.LoggerWithCorr(ctx).Error("plugin panic",
				slog.String("plugin", p.Name()),
				slog.Any("err", fmt.Errorf("%v", rec)),
				slog.String("component", "router"))
			replies = nil
		}
	}()
	return p.Handle(ctx, ev)
}

// Deliver sends replies through gw in order and returns the ones that went
// out. Send failures are logged and do not stop the remaining replies.
func Deliver(ctx context.Context, gw Gateway, replies []Reply) []Reply {
	sent := make([]Reply, 0, len(replies))
	for _, rep := range replies {
		var err error
		switch rep.Kind {
		case ReplyChannel:
			err = gw.SendChannelMessage(rep.To, rep.Text)
		case ReplyPrivate:
			err = gw.SendPrivateMessage(rep.To, rep.Text)
		case ReplyNotice:
			err = gw.SendNotice(rep.To, rep.Text)
		default:
			err = fmt.Errorf("unknown reply kind %d", rep.Kind)
		}
		telemetry.IncReply(rep.Kind.String(), err)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("reply failed",
				slog.String("kind", rep.Kind.String()),
				slog.String("to", rep.To),
				slog.Any("err", err),
				slog.String("component", "router"))
			continue
		}
		sent = append(sent, rep)
	}
	return sent
}
