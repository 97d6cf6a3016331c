package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer

	quiet := New(&buf, Options{})
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelDebug))
	quiet.Info("hello", "peer", "@a")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "peer=@a")
	assert.NotContains(t, buf.String(), "\x1b[", "buffers get no color")

	verbose := New(&buf, Options{Verbose: true})
	assert.True(t, verbose.Enabled(context.Background(), slog.LevelDebug))

	warnOnly := New(&buf, Options{Verbose: true, Level: "warn"})
	assert.False(t, warnOnly.Enabled(context.Background(), slog.LevelInfo))
}

func TestTransport(t *testing.T) {
	assert.False(t, Transport(false).Core().Enabled(-1))
	assert.True(t, Transport(true).Core().Enabled(0))
	assert.False(t, Transport(true).Core().Enabled(-1))
}
