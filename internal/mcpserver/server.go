package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tgops/internal/batch"
	"tgops/internal/domain"
	"tgops/internal/telegram"
)

// Runner executes batches. *batch.Executor implements it.
type Runner interface {
	Execute(ctx context.Context, reqs []batch.Request, opts batch.Options) ([]batch.Result, error)
}

var _ Runner = (*batch.Executor)(nil)

type Server struct {
	mu        sync.RWMutex
	runner    Runner
	log       *slog.Logger
	httpSrv   *http.Server
	endpoint  string
	startedAt time.Time
}

func New(runner Runner, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{runner: runner, log: log}
}

func (s *Server) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

func (s *Server) newMCPServer() *mcp.Server {
	impl := &mcp.Implementation{Name: "tgops-mcp", Version: "0.1.0"}
	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_batch",
		Description: "Run a list of Telegram operations in one session",
	}, s.executeBatchTool)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_message",
		Description: "Send a text message to a chat",
	}, s.sendMessageTool)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_message_history",
		Description: "Read recent messages of a chat, optionally filtered by a search query",
	}, s.historyTool)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_operations",
		Description: "List the operations execute_batch accepts",
	}, s.listOperationsTool)
	return server
}

func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return err
	}

	server := s.newMCPServer()
	streamHandler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", withOriginValidation(streamHandler))
	httpSrv := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("mcp server stopped", "error", err)
		}
	}()

	s.httpSrv = httpSrv
	s.endpoint = "http://" + listener.Addr().String() + "/mcp"
	s.startedAt = time.Now()
	s.log.Info("mcp server listening", "endpoint", s.endpoint)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv == nil {
		return nil
	}
	err := s.httpSrv.Shutdown(ctx)
	s.log.Info("mcp server stopped", "uptime", time.Since(s.startedAt).Round(time.Second))
	s.httpSrv = nil
	s.endpoint = ""
	return err
}

type batchItem struct {
	Operation string         `json:"operation" jsonschema:"Operation name, see list_operations"`
	Params    map[string]any `json:"params,omitempty" jsonschema:"Operation parameters such as chatId and messageText"`
}

type executeBatchInput struct {
	Items          []batchItem `json:"items" jsonschema:"Operations to run in order"`
	ContinueOnFail bool        `json:"continue_on_fail,omitempty" jsonschema:"Record failed items and keep going"`
}

type executeBatchOutput struct {
	Results []batch.Result `json:"results"`
}

func (s *Server) executeBatchTool(ctx context.Context, _ *mcp.CallToolRequest, in *executeBatchInput) (*mcp.CallToolResult, any, error) {
	if in == nil || len(in.Items) == 0 {
		return nil, nil, errors.New("items are required")
	}
	reqs := make([]batch.Request, 0, len(in.Items))
	for _, item := range in.Items {
		reqs = append(reqs, batch.Request{Operation: item.Operation, Params: item.Params})
	}
	results, err := s.runner.Execute(ctx, reqs, batch.Options{ContinueOnFail: in.ContinueOnFail})
	if err != nil {
		return nil, nil, publicError(err)
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Ran %d items, %d failed", len(results), failed)}},
	}, executeBatchOutput{Results: results}, nil
}

type sendMessageInput struct {
	ChatID    string `json:"chat_id" jsonschema:"Username, id, phone or t.me link of the chat"`
	Text      string `json:"text" jsonschema:"Message text"`
	ParseMode string `json:"parse_mode,omitempty" jsonschema:"none, markdown or html"`
	ReplyTo   int    `json:"reply_to,omitempty" jsonschema:"Message ID to reply to"`
	Silent    bool   `json:"silent,omitempty" jsonschema:"Send without notification"`
}

type sendMessageOutput struct {
	MessageID int       `json:"message_id"`
	ChatID    int64     `json:"chat_id"`
	Date      time.Time `json:"date"`
	DeepLink  string    `json:"deep_link,omitempty"`
}

func (s *Server) sendMessageTool(ctx context.Context, _ *mcp.CallToolRequest, in *sendMessageInput) (*mcp.CallToolResult, any, error) {
	if in == nil || strings.TrimSpace(in.ChatID) == "" || in.Text == "" {
		return nil, nil, errors.New("chat_id and text are required")
	}
	req := batch.Request{Operation: "sendMessage", Params: map[string]any{
		"chatId":      in.ChatID,
		"messageText": in.Text,
		"parseMode":   in.ParseMode,
		"silent":      in.Silent,
	}}
	if in.ReplyTo > 0 {
		req.Operation = "replyToMessage"
		req.Params["messageId"] = in.ReplyTo
	}
	data, err := s.single(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	out := sendMessageOutput{}
	out.MessageID, _ = data["messageId"].(int)
	out.ChatID, _ = data["chatId"].(int64)
	out.Date, _ = data["date"].(time.Time)
	out.DeepLink = buildDeepLink(out.ChatID, out.MessageID)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Sent message %d", out.MessageID)}},
	}, out, nil
}

type historyInput struct {
	ChatID   string `json:"chat_id" jsonschema:"Username, id, phone or t.me link of the chat"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of messages, default 100"`
	Query    string `json:"query,omitempty" jsonschema:"Optional search query"`
	OffsetID int    `json:"offset_id,omitempty" jsonschema:"Return messages older than this ID"`
}

type historyOutput struct {
	Messages []historyMessage `json:"messages"`
}

type historyMessage struct {
	domain.Message
	DeepLink string `json:"deep_link,omitempty"`
}

func (s *Server) historyTool(ctx context.Context, _ *mcp.CallToolRequest, in *historyInput) (*mcp.CallToolResult, any, error) {
	if in == nil || strings.TrimSpace(in.ChatID) == "" {
		return nil, nil, errors.New("chat_id is required")
	}
	req := batch.Request{Operation: "getMessageHistory", Params: map[string]any{
		"chatId":   in.ChatID,
		"limit":    in.Limit,
		"offsetId": in.OffsetID,
	}}
	if strings.TrimSpace(in.Query) != "" {
		req.Operation = "searchMessages"
		req.Params["query"] = in.Query
	}
	data, err := s.single(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	msgs, _ := data["messages"].([]domain.Message)
	payload := make([]historyMessage, 0, len(msgs))
	for _, msg := range msgs {
		payload = append(payload, historyMessage{Message: msg, DeepLink: buildDeepLink(msg.ChatID, msg.ID)})
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Returned %d messages", len(payload))}},
	}, historyOutput{Messages: payload}, nil
}

type listOperationsOutput struct {
	Operations []batch.OperationInfo `json:"operations"`
}

func (s *Server) listOperationsTool(_ context.Context, _ *mcp.CallToolRequest, _ *struct{}) (*mcp.CallToolResult, any, error) {
	ops := batch.List()
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Returned %d operations", len(ops))}},
	}, listOperationsOutput{Operations: ops}, nil
}

// single runs req as a one item batch and returns its payload.
func (s *Server) single(ctx context.Context, req batch.Request) (map[string]any, error) {
	results, err := s.runner.Execute(ctx, []batch.Request{req}, batch.Options{ContinueOnFail: true})
	if err != nil {
		return nil, publicError(err)
	}
	if len(results) != 1 {
		return nil, errors.New("operation returned no result")
	}
	if rec := results[0].Error; rec != nil {
		return nil, fmt.Errorf("%s: %s", rec.Kind, rec.Message)
	}
	return results[0].Data, nil
}

// publicError strips causes that may carry transport internals.
func publicError(err error) error {
	msg := "operation failed"
	var e *telegram.Error
	if errors.As(err, &e) {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	var item *batch.ItemError
	if errors.As(err, &item) {
		return fmt.Errorf("item %d (%s): %s", item.Item, item.Operation, msg)
	}
	return errors.New(msg)
}

func withOriginValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !isLocalOrigin(origin) {
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLocalOrigin(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func buildDeepLink(chatID int64, msgID int) string {
	if chatID == 0 || msgID == 0 {
		return ""
	}
	if channelID, ok := toTmeChannelID(chatID); ok {
		return fmt.Sprintf("https://t.me/c/%d/%d", channelID, msgID)
	}
	return fmt.Sprintf("tg://openmessage?chat_id=%d&message_id=%d", chatID, msgID)
}

func toTmeChannelID(chatID int64) (int64, bool) {
	if chatID > -1000000000000 {
		return 0, false
	}
	channelID := (-chatID) - 1000000000000
	if channelID <= 0 {
		return 0, false
	}
	return channelID, true
}
