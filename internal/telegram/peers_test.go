package telegram

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgops/internal/domain"
)

func TestClassifyIdentifier(t *testing.T) {
	for _, tt := range []struct {
		raw  string
		kind identifierKind
		key  string
		id   int64
	}{
		{raw: "@Durov", kind: identUsername, key: "@durov"},
		{raw: "durov", kind: identUsername, key: "@durov"},
		{raw: "https://t.me/durov", kind: identUsername, key: "@durov"},
		{raw: "+15551234567", kind: identPhone, key: "+15551234567"},
		{raw: "me", kind: identSelf, key: "self"},
		{raw: "42", kind: identUserID, key: "42", id: 42},
		{raw: "-123", kind: identChatID, key: "-123", id: 123},
		{raw: "-1001234567890", kind: identChannelID, key: "-1001234567890", id: 1234567890},
		{raw: "https://t.me/+AbCdEf_123", kind: identInvite, key: "invite:AbCdEf_123"},
		{raw: "t.me/joinchat/XyZ", kind: identInvite, key: "invite:XyZ"},
	} {
		t.Run(tt.raw, func(t *testing.T) {
			ident, err := classifyIdentifier(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ident.kind)
			assert.Equal(t, tt.key, ident.key)
			assert.Equal(t, tt.id, ident.id)
		})
	}
}

func TestClassifyIdentifierRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "0", "@ab", "@1abc", "hello world", "a-b-c"} {
		_, err := classifyIdentifier(raw)
		requireKind(t, err, KindInvalidPeerShape)
	}
}

func TestPeerRefShapes(t *testing.T) {
	user := userRef(7, 70)
	chat := chatRef(8)
	channel := channelRef(9, 90, true)

	assert.Equal(t, int64(7), user.ChatID())
	assert.Equal(t, int64(-8), chat.ChatID())
	assert.Equal(t, -(channelChatIDOffset + 9), channel.ChatID())

	assert.Equal(t, &tg.InputPeerUser{UserID: 7, AccessHash: 70}, user.InputPeer())
	assert.Equal(t, &tg.InputPeerChat{ChatID: 8}, chat.InputPeer())
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 9, AccessHash: 90}, channel.InputPeer())

	_, err := chat.InputUser()
	requireKind(t, err, KindInvalidPeerShape)
	_, err = user.InputChannel()
	requireKind(t, err, KindInvalidPeerShape)
}

func resolvedChannel(id, hash int64, username string) *tg.ContactsResolvedPeer {
	return &tg.ContactsResolvedPeer{
		Peer: &tg.PeerChannel{ChannelID: id},
		Chats: []tg.ChatClass{&tg.Channel{
			ID:         id,
			AccessHash: hash,
			Title:      "Channel " + username,
			Username:   username,
			Photo:      &tg.ChatPhotoEmpty{},
		}},
	}
}

func TestResolveMemoizes(t *testing.T) {
	inv := newFakeInvoker().on("contacts.resolveUsername", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.ContactsResolveUsernameRequest)
		assert.Equal(t, "news", r.Username)
		return resolvedChannel(100, 1000, "news"), nil
	})
	c := newTestClient(t, inv)
	ctx := context.Background()

	first, err := c.Resolve(ctx, "@news")
	require.NoError(t, err)
	assert.Equal(t, channelRef(100, 1000, false), first)

	var wg sync.WaitGroup
	for _, raw := range []string{"news", "@NEWS", "https://t.me/news", "@news"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := c.Resolve(ctx, raw)
			assert.NoError(t, err)
			assert.Equal(t, first, ref)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inv.count("contacts.resolveUsername"))
	assert.Equal(t, int64(1), c.Resolver().Lookups())
}

func TestResolveNotFound(t *testing.T) {
	inv := newFakeInvoker().on("contacts.resolveUsername", func(bin.Encoder) (bin.Encoder, error) {
		return nil, tgerr.New(400, "USERNAME_NOT_OCCUPIED")
	})
	c := newTestClient(t, inv)

	_, err := c.Resolve(context.Background(), "@nobody_here")
	requireKind(t, err, KindResolution)
	assert.False(t, IsRetryable(err))

	_, err = c.Resolve(context.Background(), "@nobody_here")
	requireKind(t, err, KindResolution)
	assert.Equal(t, 2, inv.count("contacts.resolveUsername"), "failures are not cached")
}

func TestResolveTransportFailureIsRetryable(t *testing.T) {
	inv := newFakeInvoker().on("contacts.resolveUsername", func(bin.Encoder) (bin.Encoder, error) {
		return nil, tgerr.New(500, "INTERNAL")
	})
	c := newTestClient(t, inv)

	_, err := c.Resolve(context.Background(), "@someone")
	requireKind(t, err, KindTransport)
	assert.True(t, IsRetryable(err))
}

func TestResolveInviteLinkIsNotAPeer(t *testing.T) {
	c := newTestClient(t, newFakeInvoker())
	_, err := c.Resolve(context.Background(), "https://t.me/+AbCdEf")
	requireKind(t, err, KindInvalidPeerShape)
}

func TestResolveBasicChat(t *testing.T) {
	inv := newFakeInvoker().on("messages.getChats", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesGetChatsRequest)
		assert.Equal(t, []int64{55}, r.ID)
		return &tg.MessagesChats{Chats: []tg.ChatClass{&tg.Chat{ID: 55, Title: "group", Photo: &tg.ChatPhotoEmpty{}}}}, nil
	})
	c := newTestClient(t, inv)

	ref, err := c.Resolve(context.Background(), "-55")
	require.NoError(t, err)
	assert.Equal(t, chatRef(55), ref)
}

type memoryPeerStore struct {
	mu    sync.Mutex
	peers map[string]domain.CachedPeer
}

func (m *memoryPeerStore) LoadPeer(_ context.Context, _ int64, identifier string) (domain.CachedPeer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[identifier]
	return p, ok, nil
}

func (m *memoryPeerStore) SavePeer(_ context.Context, _ int64, peer domain.CachedPeer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[peer.Identifier] = peer
	return nil
}

func (m *memoryPeerStore) DeletePeer(_ context.Context, _ int64, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, identifier)
	return nil
}

func TestPeerCacheWritesThrough(t *testing.T) {
	store := &memoryPeerStore{peers: map[string]domain.CachedPeer{}}
	ctx := context.Background()

	first := NewPeerCache(4, store, 777, nil)
	first.Add(ctx, "@news", channelRef(1, 2, true), time.Now())
	require.Contains(t, store.peers, "@news")

	second := NewPeerCache(4, store, 777, nil)
	ref, ok := second.Get(ctx, "@news")
	require.True(t, ok)
	assert.Equal(t, channelRef(1, 2, true), ref)

	second.Remove(ctx, "@news")
	assert.NotContains(t, store.peers, "@news")

	anonymous := NewPeerCache(4, store, 0, nil)
	anonymous.Add(ctx, "@other", userRef(3, 4), time.Now())
	assert.NotContains(t, store.peers, "@other", "no account means no persistence")
}

type brokenPeerStore struct{}

func (brokenPeerStore) LoadPeer(context.Context, int64, string) (domain.CachedPeer, bool, error) {
	return domain.CachedPeer{}, false, errors.New("disk full")
}

func (brokenPeerStore) SavePeer(context.Context, int64, domain.CachedPeer) error {
	return errors.New("disk full")
}

func (brokenPeerStore) DeletePeer(context.Context, int64, string) error {
	return errors.New("disk full")
}

func TestPeerCacheLogsStoreFailures(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil)).With("component", "peer-cache")
	cache := NewPeerCache(4, brokenPeerStore{}, 1, log)
	ctx := context.Background()

	cache.Add(ctx, "@news", userRef(1, 2), time.Now())
	ref, ok := cache.Get(ctx, "@news")
	require.True(t, ok, "memory entry survives a failed save")
	assert.Equal(t, userRef(1, 2), ref)

	_, ok = cache.Get(ctx, "@missing")
	assert.False(t, ok)
	cache.Remove(ctx, "@news")

	out := buf.String()
	assert.Contains(t, out, "peer store save failed")
	assert.Contains(t, out, "peer store load failed")
	assert.Contains(t, out, "peer store delete failed")
	assert.Contains(t, out, "component=peer-cache")
	assert.Contains(t, out, "disk full")
}
