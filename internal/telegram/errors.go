package telegram

import (
	"context"
	"fmt"
	"net"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tgerr"
)

// Kind classifies every failure an operation can return.
type Kind string

const (
	KindResolution           Kind = "ResolutionError"
	KindInvalidPeerShape     Kind = "InvalidPeerShape"
	KindUpload               Kind = "UploadError"
	KindTransport            Kind = "TransportError"
	KindNotAUser             Kind = "NotAUser"
	KindNotAChat             Kind = "NotAChat"
	KindNormalization        Kind = "NormalizationError"
	KindUnsupportedOperation Kind = "UnsupportedOperation"
	KindInvalidParameters    Kind = "InvalidParameters"
	KindUnauthorized         Kind = "Unauthorized"
	KindPartialDelete        Kind = "PartialDeletion"
)

var (
	ErrNotConfigured  = errors.New("telegram api credentials are not configured")
	ErrPasswordNeeded = errors.New("telegram password is required")
	ErrUnauthorized   = errors.New("telegram session is not authorized")
)

// Error is the single error type returned across the operation boundary.
// Msg is safe to show to callers; Err keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Msg
	}
	return string(e.Kind) + ": " + e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// NewError returns an *Error of kind whose message is safe to show to
// callers.
func NewError(kind Kind, cause error, format string, args ...any) *Error {
	return newError(kind, cause, format, args...)
}

// KindOf returns the taxonomy kind of err, or an empty Kind for errors
// that did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transport level failure.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

var peerInvalidTypes = []string{
	"PEER_ID_INVALID",
	"CHANNEL_INVALID",
	"USER_ID_INVALID",
	"CHAT_ID_INVALID",
}

var notFoundTypes = []string{
	"USERNAME_NOT_OCCUPIED",
	"USERNAME_INVALID",
	"PHONE_NOT_OCCUPIED",
	"CHANNEL_PRIVATE",
}

func isPeerInvalid(err error) bool {
	return tgerr.Is(err, peerInvalidTypes...)
}

func isNotFound(err error) bool {
	return tgerr.Is(err, notFoundTypes...)
}

// transportError classifies an error returned by the invoker. RPC errors
// keep their type in the message, everything else is reported generically.
func transportError(method string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTransport, err, "%s: %s", method, err.Error())
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return newError(KindTransport, err, "%s: flood wait %s", method, wait)
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return newError(KindTransport, err, "%s: rpc error %d %s", method, rpcErr.Code, rpcErr.Type)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(KindTransport, err, "%s: network failure", method)
	}
	return newError(KindTransport, err, "%s failed", method)
}

// rpcType returns the RPC error type of err, if any.
func rpcType(err error) string {
	if rpcErr, ok := tgerr.As(err); ok {
		return rpcErr.Type
	}
	return ""
}
