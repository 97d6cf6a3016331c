// Package logging builds the console logger shared by commands and the
// zap logger handed to the MTProto transport.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type Options struct {
	Verbose bool
	// Level overrides the level picked from Verbose (debug, info, warn, error).
	Level string
}

// New returns a tint handled slog.Logger writing to w. Color is enabled
// only when w is a terminal.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	if opts.Level != "" {
		_ = level.UnmarshalText([]byte(strings.ToUpper(opts.Level)))
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "Jan 02 15:04:05.000",
		NoColor:    noColor,
	}))
}

// Transport returns the logger for the MTProto client: a no-op unless
// verbose output was requested.
func Transport(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment(
		zap.IncreaseLevel(zapcore.InfoLevel),
		zap.AddStacktrace(zapcore.FatalLevel),
	)
	if err != nil {
		return zap.NewNop()
	}
	return log.Named("mtproto")
}
