package control

import (
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/bucketctl/internal/backend"
	"github.com/bamsammich/bucketctl/internal/cache"
	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/protocol"
	"github.com/bamsammich/bucketctl/internal/ratelimit"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeBackend records the command lines a socket writes.
type fakeBackend struct {
	lines     []string
	instance  uint64
	mu        sync.Mutex
	failWrite bool
	stopped   bool
}

func (b *fakeBackend) SendLine(text string) error {
	if err := protocol.CheckLine(text); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWrite {
		return errBrokenPipe
	}
	b.lines = append(b.lines, text)
	return nil
}

func (b *fakeBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

func (b *fakeBackend) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *fakeBackend) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// harness drives a Socket synchronously from the test goroutine.
type harness struct {
	t        *testing.T
	socket   *Socket
	cache    *cache.Cache
	events   chan event.Event
	backends []*fakeBackend
	results  []Result
	notices  []Notice
	mu       sync.Mutex
}

func newHarness(t *testing.T, c *cache.Cache, limiter *ratelimit.Limiter) *harness {
	t.Helper()
	if c == nil {
		c = cache.New(cache.DefaultConfig())
	}
	h := &harness{t: t, cache: c, events: make(chan event.Event, 64)}
	h.socket = NewSocket(Options{
		Cache:     c,
		Limiter:   limiter,
		Events:    h.events,
		Logger:    slog.New(slog.DiscardHandler),
		SessionID: "test-session",
		Spawner: func(instance uint64, _ chan<- backend.Delivery) (Backend, error) {
			b := &fakeBackend{instance: instance}
			h.backends = append(h.backends, b)
			return b, nil
		},
	}, Hooks{
		Notify: func(n Notice) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notices = append(h.notices, n)
		},
		Finished: func(r Result) {
			h.results = append(h.results, r)
		},
	})
	return h
}

func (h *harness) backend() *fakeBackend {
	h.t.Helper()
	require.NotEmpty(h.t, h.backends, "no backend spawned")
	return h.backends[len(h.backends)-1]
}

func (h *harness) lastLine() string {
	h.t.Helper()
	lines := h.backend().Lines()
	require.NotEmpty(h.t, lines, "no command sent")
	return lines[len(lines)-1]
}

func (h *harness) lineCount() int {
	return len(h.backend().Lines())
}

func (h *harness) deliver(kind protocol.Kind, text ...string) {
	msg := protocol.Message{Kind: kind}
	copy(msg.Text[:], text)
	h.socket.HandleDelivery(backend.Delivery{Instance: h.socket.instance, Message: msg})
}

func (h *harness) reply(text string) { h.deliver(protocol.Reply, text) }

func (h *harness) done(code string) { h.deliver(protocol.Done, code) }

// result returns the only result recorded since the previous call.
func (h *harness) result() Result {
	h.t.Helper()
	require.Len(h.t, h.results, 1, "expected exactly one finished command")
	r := h.results[0]
	h.results = nil
	return r
}

func (h *harness) noResult() {
	h.t.Helper()
	require.Empty(h.t, h.results, "command finished unexpectedly")
}

func (h *harness) takeNotices() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.notices
	h.notices = nil
	return n
}

func (h *harness) drainEvents() []event.Type {
	var types []event.Type
	for {
		select {
		case ev := <-h.events:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

// connect runs the full login sequence.
func (h *harness) connect() {
	h.t.Helper()
	require.Equal(h.t, reply.WouldBlock, h.socket.Connect(Server{Host: "store.example", User: "alice", Pass: "secret"}))
	h.reply(protocol.Greeting(protocol.ProtocolVersion))
	require.Equal(h.t, "host store.example", h.lastLine())
	h.reply("host ok")
	require.Equal(h.t, "user alice", h.lastLine())
	h.reply("user ok")
	require.Equal(h.t, "pass secret", h.lastLine())
	h.reply("logged in")
	require.Equal(h.t, reply.OK, h.result().Code)
	require.True(h.t, h.socket.Connected())
}

// listRoot lists "/" with the given bucket name/id pairs.
func (h *harness) listRoot(pairs ...string) {
	h.t.Helper()
	require.Equal(h.t, reply.WouldBlock, h.socket.List(remote.Root(), "", ListRefresh))
	require.Equal(h.t, "list-buckets", h.lastLine())
	for i := 0; i+1 < len(pairs); i += 2 {
		h.deliver(protocol.ListEntry, pairs[i], "", pairs[i+1])
	}
	h.done("1")
	require.Equal(h.t, reply.OK, h.result().Code)
}
