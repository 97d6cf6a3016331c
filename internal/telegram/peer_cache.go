package telegram

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"tgops/internal/domain"
)

const defaultPeerCacheSize = 1024

// PeerStore persists resolved peers between runs. Entries are scoped by the
// account that resolved them since access hashes are per account.
type PeerStore interface {
	LoadPeer(ctx context.Context, account int64, identifier string) (domain.CachedPeer, bool, error)
	SavePeer(ctx context.Context, account int64, peer domain.CachedPeer) error
	DeletePeer(ctx context.Context, account int64, identifier string) error
}

// PeerCache is an in-memory LRU of resolved peers with an optional
// write-through PeerStore behind it.
type PeerCache struct {
	entries *lru.Cache[string, PeerRef]
	store   PeerStore
	account int64
	log     *slog.Logger
}

func NewPeerCache(size int, store PeerStore, account int64, log *slog.Logger) *PeerCache {
	if size <= 0 {
		size = defaultPeerCacheSize
	}
	entries, err := lru.New[string, PeerRef](size)
	if err != nil {
		panic(err)
	}
	if account == 0 {
		store = nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &PeerCache{entries: entries, store: store, account: account, log: log}
}

func (c *PeerCache) Get(ctx context.Context, key string) (PeerRef, bool) {
	if ref, ok := c.entries.Get(key); ok {
		return ref, true
	}
	if c.store == nil {
		return PeerRef{}, false
	}
	stored, ok, err := c.store.LoadPeer(ctx, c.account, key)
	if err != nil {
		c.log.Warn("peer store load failed", "identifier", key, "error", err)
		return PeerRef{}, false
	}
	if !ok {
		return PeerRef{}, false
	}
	ref := PeerRef{Kind: PeerKind(stored.Kind), ID: stored.ID, AccessHash: stored.AccessHash, Megagroup: stored.Megagroup}
	switch ref.Kind {
	case PeerUser, PeerChat, PeerChannel:
	default:
		return PeerRef{}, false
	}
	c.entries.Add(key, ref)
	return ref, true
}

func (c *PeerCache) Add(ctx context.Context, key string, ref PeerRef, at time.Time) {
	c.entries.Add(key, ref)
	if c.store == nil {
		return
	}
	err := c.store.SavePeer(ctx, c.account, domain.CachedPeer{
		Identifier: key,
		Kind:       string(ref.Kind),
		ID:         ref.ID,
		AccessHash: ref.AccessHash,
		Megagroup:  ref.Megagroup,
		ResolvedAt: at,
	})
	if err != nil {
		c.log.Warn("peer store save failed", "identifier", key, "error", err)
	}
}

func (c *PeerCache) Remove(ctx context.Context, key string) {
	c.entries.Remove(key)
	if c.store == nil {
		return
	}
	if err := c.store.DeletePeer(ctx, c.account, key); err != nil {
		c.log.Warn("peer store delete failed", "identifier", key, "error", err)
	}
}
