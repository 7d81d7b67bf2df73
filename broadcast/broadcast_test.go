package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/cachefake"
)

// hub delivers every publish synchronously to every subscriber.
type hub struct {
	mu   sync.Mutex
	subs map[string][]nats.MsgHandler
	fail error
}

func newHub() *hub { return &hub{subs: make(map[string][]nats.MsgHandler)} }

func (h *hub) Publish(subj string, data []byte) error {
	h.mu.Lock()
	handlers := append([]nats.MsgHandler(nil), h.subs[subj]...)
	fail := h.fail
	h.mu.Unlock()
	if fail != nil {
		return fail
	}
	for _, cb := range handlers {
		cb(&nats.Msg{Subject: subj, Data: data})
	}
	return nil
}

func (h *hub) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[subj] = append(h.subs[subj], cb)
	return &nats.Subscription{Subject: subj}, nil
}

func put(t *testing.T, c *newscache.Cache, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.SetExact(context.Background(), k, []byte(`{}`), time.Minute))
	}
}

func TestPeersDropPublishedKeys(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	local, peer := cachefake.New(), cachefake.New()
	put(t, local.Cache(), "news:2024:10")
	put(t, peer.Cache(), "news:2024:10", "news:2024:10:时政")

	a := New(h, "", zaptest.NewLogger(t))
	b := New(h, "", zaptest.NewLogger(t))
	require.NoError(t, a.Listen(local.Cache()))
	require.NoError(t, b.Listen(peer.Cache()))

	require.NoError(t, a.PublishKeys(ctx, []string{"news:2024:10"}))

	_, ok, _ := peer.Cache().Get(ctx, "news:2024:10")
	assert.False(t, ok)
	_, ok, _ = peer.Cache().Get(ctx, "news:2024:10:时政")
	assert.True(t, ok)
	local.AssertTotal(t, cachefake.OpDeleteMany, 0)
	_, ok, _ = local.Cache().Get(ctx, "news:2024:10")
	assert.True(t, ok, "own messages are ignored")
}

func TestListenTwiceFails(t *testing.T) {
	b := New(newHub(), "custom", nil)
	require.NoError(t, b.Listen(cachefake.New().Cache()))
	assert.Error(t, b.Listen(cachefake.New().Cache()))
}

func TestPublishErrors(t *testing.T) {
	h := newHub()
	h.fail = errors.New("nats: connection closed")
	b := New(h, "", nil)
	assert.ErrorContains(t, b.PublishKeys(context.Background(), []string{"news:2024:10"}), "connection closed")
	assert.NoError(t, b.PublishKeys(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.PublishKeys(ctx, []string{"news:2024:10"}), context.Canceled)
}

func TestGarbageMessagesAreIgnored(t *testing.T) {
	fake := cachefake.New()
	b := New(newHub(), "", zaptest.NewLogger(t))
	b.apply(fake.Cache(), []byte("not json"))
	b.apply(fake.Cache(), []byte(`{"origin":"other","keys":[]}`))
	fake.AssertTotal(t, cachefake.OpDeleteMany, 0)
}

func TestCloseWithoutListen(t *testing.T) {
	assert.NoError(t, New(newHub(), "", nil).Close())
}
