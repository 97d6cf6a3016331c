package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"tgops/internal/domain"
	"tgops/internal/telegram"
)

// Operations is the facade a batch runs against. *telegram.Client
// implements it.
type Operations interface {
	Resolve(ctx context.Context, peer string) (telegram.PeerRef, error)
	SendText(ctx context.Context, m telegram.TextMessage) (domain.Message, error)
	SendMedia(ctx context.Context, m telegram.MediaMessage) (domain.Message, error)
	Forward(ctx context.Context, f telegram.ForwardRequest) ([]domain.ForwardedMessage, error)
	Delete(ctx context.Context, peer string, ids []int, revoke bool) (domain.DeleteResult, error)
	History(ctx context.Context, q telegram.HistoryQuery) ([]domain.Message, error)
	Members(ctx context.Context, peer string, limit int) ([]domain.ChatMember, error)
	Administrators(ctx context.Context, peer string) ([]domain.ChatAdmin, error)
	Join(ctx context.Context, peer string) (domain.Membership, error)
	Leave(ctx context.Context, peer string) (domain.Membership, error)
	UserInfo(ctx context.Context, peer string) (domain.UserInfo, error)
	ChatInfo(ctx context.Context, peer string) (domain.ChatInfo, error)
	Edit(ctx context.Context, m telegram.EditMessage) (domain.Message, error)
	Pin(ctx context.Context, peer string, id int, silent bool) error
	Unpin(ctx context.Context, peer string, id int) error
}

var _ Operations = (*telegram.Client)(nil)

// Session connects, runs fn with a live facade and disconnects.
type Session interface {
	Run(ctx context.Context, fn func(context.Context, Operations) error) error
}

// ServiceSession runs batches on a telegram.Service.
type ServiceSession struct {
	Service *telegram.Service
}

func (s ServiceSession) Run(ctx context.Context, fn func(context.Context, Operations) error) error {
	return s.Service.Run(ctx, func(ctx context.Context, c *telegram.Client) error {
		return fn(ctx, c)
	})
}

type Request struct {
	Operation string         `json:"operation" yaml:"operation"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

type Options struct {
	// ContinueOnFail records failed items and keeps going instead of
	// aborting the batch.
	ContinueOnFail bool
	// ItemTimeout bounds every item without its own timeout parameter.
	ItemTimeout time.Duration
}

type ErrorRecord struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the outcome of one item. It marshals to a flat object: item,
// operation and success next to the operation's own fields.
type Result struct {
	Item      int
	Operation string
	Success   bool
	Data      map[string]any
	Error     *ErrorRecord
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Data)+4)
	for k, v := range r.Data {
		out[k] = v
	}
	out["item"] = r.Item
	out["operation"] = r.Operation
	out["success"] = r.Success
	if r.Error != nil {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// ItemError aborts a batch at the first failed item.
type ItemError struct {
	Item      int
	Operation string
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("batch item %d (%s): %v", e.Item, e.Operation, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Executor runs batches of requests within a single session.
type Executor struct {
	session Session
	log     *slog.Logger
	now     func() time.Time
}

func NewExecutor(session Session, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{session: session, log: log, now: time.Now}
}

// Execute runs reqs in order. A session that cannot be established fails
// the whole batch. With ContinueOnFail unset the first failed item aborts
// the batch with an *ItemError and no results.
func (e *Executor) Execute(ctx context.Context, reqs []Request, opts Options) ([]Result, error) {
	runID := uuid.NewString()
	log := e.log.With("run", runID)
	started := e.now()

	var (
		results = make([]Result, 0, len(reqs))
		ran     bool
		done    bool
		abort   *ItemError
	)
	err := e.session.Run(ctx, func(ctx context.Context, ops Operations) error {
		ran = true
		for i, req := range reqs {
			data, err := e.executeOne(ctx, ops, req, opts)
			if err == nil {
				results = append(results, Result{Item: i, Operation: req.Operation, Success: true, Data: data})
				continue
			}
			log.Warn("batch item failed", "item", i, "operation", req.Operation, "error", err)
			if !opts.ContinueOnFail {
				abort = &ItemError{Item: i, Operation: req.Operation, Err: err}
				return abort
			}
			results = append(results, Result{Item: i, Operation: req.Operation, Error: recordOf(err)})
		}
		done = true
		return nil
	})

	switch {
	case abort != nil:
		return nil, abort
	case !ran:
		log.Error("session failed", "error", err)
		return nil, sessionError(err)
	case err != nil && done:
		log.Warn("disconnect failed", "error", err)
	}
	log.Info("batch finished", "items", len(reqs), "duration", e.now().Sub(started))
	return results, nil
}

func (e *Executor) executeOne(ctx context.Context, ops Operations, req Request, opts Options) (map[string]any, error) {
	op, ok := lookupOperation(req.Operation)
	if !ok {
		return nil, telegram.NewError(telegram.KindUnsupportedOperation, nil, "operation %q is not supported", req.Operation)
	}
	params := mergeOptions(req.Params)

	timeout := opts.ItemTimeout
	if v, ok := params["timeout"]; ok {
		if d, ok := timeoutOf(v); ok {
			timeout = d
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return op.run(ctx, ops, params)
}

func recordOf(err error) *ErrorRecord {
	var e *telegram.Error
	if errors.As(err, &e) {
		return &ErrorRecord{Kind: string(e.Kind), Message: e.Msg}
	}
	return &ErrorRecord{Kind: string(telegram.KindTransport), Message: "operation failed"}
}

func sessionError(err error) error {
	if err == nil {
		return telegram.NewError(telegram.KindTransport, nil, "session ended unexpectedly")
	}
	if telegram.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return telegram.NewError(telegram.KindTransport, err, "session interrupted")
	}
	return telegram.NewError(telegram.KindTransport, err, "connect failed")
}
