package telegram

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"time"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/tg"
)

// Client bundles everything one authenticated session needs to run
// operations: the invoker, the peer resolver with its cache and the upload
// pipeline. Clients share nothing, so several sessions can run side by side.
type Client struct {
	api      *tg.Client
	resolver *Resolver
	uploader *Uploader
	log      *slog.Logger
	now      func() time.Time
	rand     io.Reader
}

type ClientOptions struct {
	PeerCache     *PeerCache
	UploadWorkers int
	Logger        *slog.Logger
}

func NewClient(invoker tg.Invoker, opts ClientOptions) *Client {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api:      tg.NewClient(invoker),
		resolver: NewResolver(invoker, opts.PeerCache, log.With("component", "resolver")),
		uploader: NewUploader(invoker, opts.UploadWorkers, log.With("component", "upload")),
		log:      log,
		now:      time.Now,
		rand:     rand.Reader,
	}
}

func (c *Client) Resolver() *Resolver { return c.resolver }

func (c *Client) Resolve(ctx context.Context, peer string) (PeerRef, error) {
	return c.resolver.Resolve(ctx, peer)
}

func (c *Client) randomID() (int64, error) {
	id, err := crypto.RandInt64(c.rand)
	if err != nil {
		return 0, newError(KindTransport, err, "generate random id")
	}
	return id, nil
}

// withPeer resolves raw and runs fn with the result. When the server
// rejects a cached reference as invalid, the cache entry is dropped and fn
// runs once more with a freshly resolved reference.
func (c *Client) withPeer(ctx context.Context, raw string, fn func(PeerRef) error) error {
	ref, err := c.resolver.Resolve(ctx, raw)
	if err != nil {
		return err
	}
	err = fn(ref)
	if err == nil || !isPeerInvalid(err) {
		return err
	}

	c.log.Debug("peer reference rejected, resolving again", "identifier", raw, "peer", ref.String(), "error", rpcType(err))
	c.resolver.Forget(ctx, raw)
	ref, err = c.resolver.Resolve(ctx, raw)
	if err != nil {
		return err
	}
	err = fn(ref)
	if isPeerInvalid(err) {
		return newError(KindResolution, err, "peer %s rejected by server: %s", raw, rpcType(err))
	}
	return err
}
