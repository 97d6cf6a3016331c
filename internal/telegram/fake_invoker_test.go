package telegram

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(req bin.Encoder) (bin.Encoder, error)

// fakeInvoker answers RPC calls from per-method handlers and records the
// method names it saw.
type fakeInvoker struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    []string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{handlers: map[string]handlerFunc{}}
}

func (f *fakeInvoker) on(method string, h handlerFunc) *fakeInvoker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
	return f
}

func (f *fakeInvoker) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call == method {
			n++
		}
	}
	return n
}

func (f *fakeInvoker) Invoke(_ context.Context, input bin.Encoder, output bin.Decoder) error {
	name := methodName(input)
	f.mu.Lock()
	f.calls = append(f.calls, name)
	h := f.handlers[name]
	f.mu.Unlock()
	if h == nil {
		return errors.Errorf("unexpected call %s", name)
	}
	res, err := h(input)
	if err != nil {
		return err
	}
	var buf bin.Buffer
	if err := res.Encode(&buf); err != nil {
		return err
	}
	return output.Decode(&buf)
}

// fixedRand yields a deterministic byte stream for random ids.
type fixedRand struct{ next byte }

func (r *fixedRand) Read(p []byte) (int, error) {
	for i := range p {
		r.next++
		p[i] = r.next
	}
	return len(p), nil
}

func newTestClient(t *testing.T, inv *fakeInvoker) *Client {
	t.Helper()
	c := NewClient(inv, ClientOptions{PeerCache: NewPeerCache(16, nil, 0, nil)})
	c.rand = &fixedRand{}
	return c
}

func seedPeer(t *testing.T, c *Client, raw string, ref PeerRef) {
	t.Helper()
	ident, err := classifyIdentifier(raw)
	require.NoError(t, err)
	c.resolver.cache.Add(context.Background(), ident.key, ref, c.now())
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}
