package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/telemetry"
	"github.com/onnwee/cappuccino/testutil"
)

type funcPlugin struct {
	name string
	fn   func(ctx context.Context, ev bot.Event) []bot.Reply
}

func (p funcPlugin) Name() string { return p.name }

func (p funcPlugin) Handle(ctx context.Context, ev bot.Event) []bot.Reply { return p.fn(ctx, ev) }

func TestMain(m *testing.M) {
	telemetry.Init()
	goleak.VerifyTestMain(m)
}

func TestHandleDeliversRepliesInPluginOrder(t *testing.T) {
	first := funcPlugin{name: "first", fn: func(_ context.Context, ev bot.Event) []bot.Reply {
		return []bot.Reply{bot.Say(ev.Target, "one"), bot.Notice(ev.Nick, "two")}
	}}
	second := funcPlugin{name: "second", fn: func(_ context.Context, ev bot.Event) []bot.Reply {
		return []bot.Reply{bot.Private(ev.Nick, "three")}
	}}
	r := bot.NewRouter(first, second)
	gw := testutil.NewRecordingGateway("cappuccino")

	r.Handle(context.Background(), gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "#go", Text: "hi"})

	assert.Equal(t, []bot.Reply{
		{Kind: bot.ReplyChannel, To: "#go", Text: "one"},
		{Kind: bot.ReplyNotice, To: "alice", Text: "two"},
		{Kind: bot.ReplyPrivate, To: "alice", Text: "three"},
	}, gw.Sent())
	assert.Equal(t, []string{"first", "second"}, r.Plugins())
}

func TestHandleFillsEventMetadata(t *testing.T) {
	var seen []bot.Event
	p := funcPlugin{name: "spy", fn: func(ctx context.Context, ev bot.Event) []bot.Reply {
		assert.Equal(t, ev.ID, telemetry.GetCorrelation(ctx))
		seen = append(seen, ev)
		return nil
	}}
	r := bot.NewRouter(p)
	gw := testutil.NewRecordingGateway("cappuccino")

	r.Handle(context.Background(), gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "#go"})
	r.Handle(context.Background(), gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "cappuccino"})

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Channel)
	assert.Equal(t, "#go", seen[0].Conversation())
	assert.False(t, seen[1].Channel)
	assert.Equal(t, "alice", seen[1].Conversation())
	for _, ev := range seen {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.At.IsZero())
		assert.Equal(t, "cappuccino", ev.Self)
	}
	assert.NotEqual(t, seen[0].ID, seen[1].ID)
}

func TestHandleRecoversPluginPanic(t *testing.T) {
	boom := funcPlugin{name: "boom", fn: func(context.Context, bot.Event) []bot.Reply { panic("kaboom") }}
	after := funcPlugin{name: "after", fn: func(_ context.Context, ev bot.Event) []bot.Reply {
		return []bot.Reply{bot.Say(ev.Target, "still here")}
	}}
	r := bot.NewRouter(boom, after)
	gw := testutil.NewRecordingGateway("cappuccino")

	require.NotPanics(t, func() {
		r.Handle(context.Background(), gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "#go"})
	})
	assert.Equal(t, []bot.Reply{bot.Say("#go", "still here")}, gw.Sent())
}

func TestDeliverContinuesAfterSendError(t *testing.T) {
	gw := testutil.NewRecordingGateway("cappuccino")
	gw.Err = errors.New("write: broken pipe")

	sent := bot.Deliver(context.Background(), gw, []bot.Reply{bot.Say("#go", "a"), bot.Notice("bob", "b")})

	assert.Len(t, gw.Sent(), 2)
	assert.Empty(t, sent)
}

type observingPlugin struct {
	funcPlugin
	mu   sync.Mutex
	seen []bot.Reply
}

func (p *observingPlugin) OnSent(_ context.Context, _ bot.Gateway, rep bot.Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, rep)
}

func TestHandleNotifiesSentObservers(t *testing.T) {
	talker := funcPlugin{name: "talker", fn: func(_ context.Context, ev bot.Event) []bot.Reply {
		return []bot.Reply{bot.Say(ev.Target, "hello"), bot.Notice(ev.Nick, "psst")}
	}}
	obs := &observingPlugin{funcPlugin: funcPlugin{name: "observer", fn: func(context.Context, bot.Event) []bot.Reply { return nil }}}
	r := bot.NewRouter(talker, obs)
	gw := testutil.NewRecordingGateway("cappuccino")

	r.Handle(context.Background(), gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "#go", Text: "hi"})

	assert.Equal(t, []bot.Reply{bot.Say("#go", "hello"), bot.Notice("alice", "psst")}, obs.seen)

	gw.Err = errors.New("closed")
	obs.seen = nil
	r.Handle(context.Background(), gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "#go", Text: "hi"})
	assert.Empty(t, obs.seen)
}

func TestRunProcessesDispatchedEventsSequentially(t *testing.T) {
	var (
		mu      sync.Mutex
		order   []string
		running int
		overlap bool
	)
	done := make(chan struct{})
	p := funcPlugin{name: "slow", fn: func(_ context.Context, ev bot.Event) []bot.Reply {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running--
		order = append(order, ev.Text)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	}}
	r := bot.NewRouter(p)
	gw := testutil.NewRecordingGateway("cappuccino")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, r.Dispatch(ctx, gw, bot.Event{Kind: bot.KindMessage, Nick: "alice", Target: "#go", Text: text}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events were not processed")
	}
	cancel()
	require.NoError(t, <-errc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.False(t, overlap, "plugin ran concurrently")
}

func TestDispatchHonoursCanceledContext(t *testing.T) {
	r := bot.NewRouter()
	gw := testutil.NewRecordingGateway("cappuccino")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The queue has room, so either outcome is valid for one event; a full
	// queue must report the cancellation.
	var err error
	for i := 0; i < 1000 && err == nil; i++ {
		err = r.Dispatch(ctx, gw, bot.Event{})
	}
	assert.ErrorIs(t, err, context.Canceled)
}
