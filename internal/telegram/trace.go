package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/gotd/td/bin"
	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

type typeNamer interface {
	TypeName() string
}

func methodName(input bin.Encoder) string {
	if named, ok := input.(typeNamer); ok {
		return named.TypeName()
	}
	return "unknown"
}

// traceMiddleware logs every RPC call at debug level.
func traceMiddleware(log *slog.Logger, now func() time.Time) tdtelegram.Middleware {
	return tdtelegram.MiddlewareFunc(func(next tg.Invoker) tdtelegram.InvokeFunc {
		return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
			started := now()
			err := next.Invoke(ctx, input, output)
			attrs := []any{"method", methodName(input), "duration", now().Sub(started)}
			if err != nil {
				attrs = append(attrs, "error", errorLabel(err))
			}
			log.Debug("rpc", attrs...)
			return err
		}
	})
}
