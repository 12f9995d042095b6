package relay

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/linkvault/pkg/bus"
	"github.com/tinyland-inc/linkvault/pkg/channels"
	"github.com/tinyland-inc/linkvault/pkg/config"
	"github.com/tinyland-inc/linkvault/pkg/vault"
)

type fakeDeliverer struct {
	err   error
	calls int
}

func (d *fakeDeliverer) Deliver(_ context.Context, _ string, _ vault.Reference) error {
	d.calls++
	return d.err
}

type fakeManager struct {
	deliverer *fakeDeliverer
}

func (m *fakeManager) Deliverer(string) (channels.Deliverer, bool) {
	return m.deliverer, true
}

func (m *fakeManager) DeepLinker(string) (channels.DeepLinker, bool) {
	return m, true
}

func (m *fakeManager) DeepLink(token string) string {
	return "https://t.me/testbot?start=" + token
}

func newTestRelay(t *testing.T) (*Relay, *bus.MessageBus, *vault.Store, *fakeDeliverer) {
	t.Helper()

	store, err := vault.Open(filepath.Join(t.TempDir(), "vault.json"))
	require.NoError(t, err)

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	deliverer := &fakeDeliverer{}
	r := New(config.DefaultConfig(), mb, store)
	r.SetChannelManager(&fakeManager{deliverer: deliverer})
	return r, mb, store, deliverer
}

func takeOutbound(t *testing.T, mb *bus.MessageBus) bus.OutboundMessage {
	t.Helper()
	msg, ok := mb.SubscribeOutbound(context.Background())
	require.True(t, ok, "expected an outbound reply")
	return msg
}

func assertNoOutbound(t *testing.T, mb *bus.MessageBus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := mb.SubscribeOutbound(ctx)
	assert.False(t, ok, "expected no outbound reply")
}

func TestArchive_RepliesWithDeepLink(t *testing.T) {
	r, mb, store, _ := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel:   "telegram",
		Kind:      bus.KindGroupMessage,
		ChatID:    "-1001234567890",
		MessageID: "42",
		Peer:      bus.Peer{Kind: "group", ID: "-1001234567890"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, "telegram", out.Channel)
	assert.Equal(t, "-1001234567890", out.ChatID)
	assert.Equal(t, "42", out.ReplyTo)
	assert.True(t, out.DisablePreview)
	assert.Contains(t, out.Content, "https://t.me/testbot?start=")

	require.Equal(t, 1, store.Len())
	tok := store.Tokens()[0]
	assert.Contains(t, out.Content, tok)

	ref, err := store.Get(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), ref.ChatID)
	assert.Equal(t, 42, ref.MessageID)
	assert.NotEmpty(t, ref.CreatedAt)
}

func TestArchive_BadIDsDropped(t *testing.T) {
	r, mb, store, _ := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel:   "telegram",
		Kind:      bus.KindGroupMessage,
		ChatID:    "not-a-number",
		MessageID: "42",
	})

	assertNoOutbound(t, mb)
	assert.Equal(t, 0, store.Len())
}

func TestResolve_UnknownToken(t *testing.T) {
	r, mb, store, deliverer := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Content: "missing99",
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, msgUnavailable, out.Content)
	assert.Equal(t, 0, deliverer.calls, "no delivery attempted for unknown token")
	assert.Equal(t, 0, store.Len(), "resolve must not mutate the store")
}

func TestResolve_DeliversKnownToken(t *testing.T) {
	r, mb, store, deliverer := newTestRelay(t)
	require.NoError(t, store.Put("abc123XY", vault.Reference{ChatID: -100, MessageID: 7}))

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Content: "abc123XY",
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	assert.Equal(t, 1, deliverer.calls)
	assertNoOutbound(t, mb)
}

func TestResolve_ContentGoneReadsLikeUnknown(t *testing.T) {
	r, mb, store, deliverer := newTestRelay(t)
	require.NoError(t, store.Put("abc123XY", vault.Reference{ChatID: -100, MessageID: 7}))
	deliverer.err = fmt.Errorf("%w: message to copy not found", channels.ErrContentUnavailable)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Content: "abc123XY",
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, msgUnavailable, out.Content)
}

func TestResolve_TransportExhaustionApologizes(t *testing.T) {
	r, mb, store, deliverer := newTestRelay(t)
	require.NoError(t, store.Put("abc123XY", vault.Reference{ChatID: -100, MessageID: 7}))
	deliverer.err = errors.New("network down")

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Content: "abc123XY",
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, msgFailed, out.Content)
	assert.NotContains(t, out.Content, "network", "raw transport text must not leak")
}

func TestResolve_BareStartWelcomes(t *testing.T) {
	r, mb, _, _ := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, msgWelcome, out.Content)
}

func TestResolve_MalformedToken(t *testing.T) {
	r, mb, _, deliverer := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Content: "nope;drop table",
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, msgInvalidLink, out.Content)
	assert.Equal(t, 0, deliverer.calls)
}

func TestResolve_StartInGroupRedirects(t *testing.T) {
	r, mb, _, _ := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "-55",
		Content: "abc123XY",
		Peer:    bus.Peer{Kind: "group", ID: "-55"},
	})

	out := takeOutbound(t, mb)
	assert.Equal(t, msgGroupStart, out.Content)
}

func TestArchiveThenResolve_EndToEnd(t *testing.T) {
	r, mb, store, deliverer := newTestRelay(t)

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel:   "telegram",
		Kind:      bus.KindGroupMessage,
		ChatID:    "-1001234567890",
		MessageID: "42",
		Peer:      bus.Peer{Kind: "group", ID: "-1001234567890"},
	})
	out := takeOutbound(t, mb)

	// Pull the token back out of the shared link.
	idx := strings.LastIndex(out.Content, "start=")
	require.Positive(t, idx)
	tok := out.Content[idx+len("start="):]

	r.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Kind:    bus.KindDeepLinkStart,
		ChatID:  "99",
		Content: tok,
		Peer:    bus.Peer{Kind: "direct", ID: "99"},
	})

	assert.Equal(t, 1, deliverer.calls)
	assert.Equal(t, 1, store.Len())
}
