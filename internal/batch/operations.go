package batch

import (
	"context"
	"sort"

	"tgops/internal/domain"
	"tgops/internal/telegram"
)

type operation struct {
	name        string
	description string
	run         func(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error)
}

type textParams struct {
	ChatID      string `param:"chatId"`
	MessageText string `param:"messageText"`
	MessageID   int    `param:"messageId"`
	ParseMode   string `param:"parseMode"`
	Silent      bool   `param:"silent"`
	NoWebpage   bool   `param:"noWebpage"`
}

type mediaParams struct {
	ChatID    string `param:"chatId"`
	FilePath  string `param:"filePath"`
	MediaType string `param:"mediaType"`
	Caption   string `param:"caption"`
	ParseMode string `param:"parseMode"`
	MimeType  string `param:"mimeType"`
	MessageID int    `param:"messageId"`
	Silent    bool   `param:"silent"`
}

type messagesParams struct {
	ChatID     string `param:"chatId"`
	ToChatID   string `param:"toChatId"`
	MessageID  int    `param:"messageId"`
	MessageIDs []int  `param:"messageIds"`
	Revoke     *bool  `param:"revoke"`
	Silent     bool   `param:"silent"`
	DropAuthor bool   `param:"dropAuthor"`
}

type chatParams struct {
	ChatID   string `param:"chatId"`
	UserID   string `param:"userId"`
	Query    string `param:"query"`
	OffsetID int    `param:"offsetId"`
}

var operations = map[string]operation{}

func register(op operation) {
	operations[op.name] = op
}

func lookupOperation(name string) (operation, bool) {
	op, ok := operations[name]
	return op, ok
}

type OperationInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List returns every supported operation sorted by name.
func List() []OperationInfo {
	out := make([]OperationInfo, 0, len(operations))
	for _, op := range operations {
		out = append(out, OperationInfo{Name: op.name, Description: op.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func init() {
	register(operation{name: "sendMessage", description: "Send a text message to chatId.", run: sendMessage})
	register(operation{name: "replyToMessage", description: "Reply to messageId in chatId.", run: replyToMessage})
	register(operation{name: "sendMediaMessage", description: "Upload filePath and send it as mediaType.", run: sendMediaMessage})
	register(operation{name: "sendFile", description: "Upload filePath and send it as a document.", run: sendFile})
	register(operation{name: "forwardMessage", description: "Forward messageId or messageIds from chatId to toChatId.", run: forwardMessage})
	register(operation{name: "deleteMessages", description: "Delete messageId or messageIds in chatId.", run: deleteMessages})
	register(operation{name: "getMessageHistory", description: "Read recent messages of chatId.", run: getMessageHistory})
	register(operation{name: "searchMessages", description: "Search chatId for query.", run: searchMessages})
	register(operation{name: "getChatMembers", description: "List members of a group or channel.", run: getChatMembers})
	register(operation{name: "getAdministrators", description: "List administrators of a group or channel.", run: getAdministrators})
	register(operation{name: "joinChat", description: "Join a channel or accept an invite link.", run: joinChat})
	register(operation{name: "leaveChat", description: "Leave a group or channel.", run: leaveChat})
	register(operation{name: "getUserInfo", description: "Read the profile of userId.", run: getUserInfo})
	register(operation{name: "getChatInfo", description: "Read details of a group or channel.", run: getChatInfo})
	register(operation{name: "editMessage", description: "Replace the text of messageId in chatId.", run: editMessage})
	register(operation{name: "pinMessage", description: "Pin messageId in chatId.", run: pinMessage})
	register(operation{name: "unpinMessage", description: "Unpin messageId, or all messages, in chatId.", run: unpinMessage})
	register(operation{name: "resolvePeer", description: "Resolve chatId to its kind and id.", run: resolvePeer})
}

func decodeText(params map[string]any) (textParams, telegram.ParseMode, error) {
	var p textParams
	if err := decodeParams(params, &p); err != nil {
		return p, "", err
	}
	if err := required("chatId", p.ChatID); err != nil {
		return p, "", err
	}
	if err := required("messageText", p.MessageText); err != nil {
		return p, "", err
	}
	mode, err := telegram.ParseModeOf(p.ParseMode)
	return p, mode, err
}

func sentPayload(msg domain.Message) map[string]any {
	return map[string]any{
		"messageId": msg.ID,
		"date":      msg.Date,
		"text":      msg.Text,
		"chatId":    msg.ChatID,
	}
}

func sendMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, mode, err := decodeText(params)
	if err != nil {
		return nil, err
	}
	msg, err := ops.SendText(ctx, telegram.TextMessage{
		Peer:      p.ChatID,
		Text:      p.MessageText,
		ParseMode: mode,
		Silent:    p.Silent,
		NoWebpage: p.NoWebpage,
	})
	if err != nil {
		return nil, err
	}
	return sentPayload(msg), nil
}

func replyToMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, mode, err := decodeText(params)
	if err != nil {
		return nil, err
	}
	if p.MessageID <= 0 {
		return nil, telegram.NewError(telegram.KindInvalidParameters, nil, "messageId is required")
	}
	msg, err := ops.SendText(ctx, telegram.TextMessage{
		Peer:      p.ChatID,
		Text:      p.MessageText,
		ParseMode: mode,
		ReplyTo:   p.MessageID,
		Silent:    p.Silent,
		NoWebpage: p.NoWebpage,
	})
	if err != nil {
		return nil, err
	}
	out := sentPayload(msg)
	out["replyToMessageId"] = p.MessageID
	return out, nil
}

func sendMedia(ctx context.Context, ops Operations, params map[string]any, kind domain.MediaType) (mediaParams, domain.Message, error) {
	var p mediaParams
	if err := decodeParams(params, &p); err != nil {
		return p, domain.Message{}, err
	}
	if err := required("chatId", p.ChatID); err != nil {
		return p, domain.Message{}, err
	}
	if err := required("filePath", p.FilePath); err != nil {
		return p, domain.Message{}, err
	}
	if kind == "" {
		kind = domain.MediaType(p.MediaType)
	}
	mode, err := telegram.ParseModeOf(p.ParseMode)
	if err != nil {
		return p, domain.Message{}, err
	}
	msg, err := ops.SendMedia(ctx, telegram.MediaMessage{
		Peer:      p.ChatID,
		Source:    telegram.FileSource(p.FilePath),
		Kind:      kind,
		Caption:   p.Caption,
		ParseMode: mode,
		ReplyTo:   p.MessageID,
		Silent:    p.Silent,
		MimeType:  p.MimeType,
	})
	return p, msg, err
}

func sendMediaMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, msg, err := sendMedia(ctx, ops, params, "")
	if err != nil {
		return nil, err
	}
	out := sentPayload(msg)
	out["mediaType"] = p.MediaType
	if p.MediaType == "" {
		out["mediaType"] = domain.MediaDocument
	}
	return out, nil
}

func sendFile(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, msg, err := sendMedia(ctx, ops, params, domain.MediaDocument)
	if err != nil {
		return nil, err
	}
	out := sentPayload(msg)
	out["filePath"] = p.FilePath
	return out, nil
}

func decodeMessages(params map[string]any) (messagesParams, []int, error) {
	var p messagesParams
	if err := decodeParams(params, &p); err != nil {
		return p, nil, err
	}
	if err := required("chatId", p.ChatID); err != nil {
		return p, nil, err
	}
	ids := messageIDs(p.MessageID, p.MessageIDs)
	if len(ids) == 0 {
		return p, nil, telegram.NewError(telegram.KindInvalidParameters, nil, "messageId or messageIds is required")
	}
	return p, ids, nil
}

func forwardMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, ids, err := decodeMessages(params)
	if err != nil {
		return nil, err
	}
	if err := required("toChatId", p.ToChatID); err != nil {
		return nil, err
	}
	forwarded, err := ops.Forward(ctx, telegram.ForwardRequest{
		From:       p.ChatID,
		To:         p.ToChatID,
		IDs:        ids,
		Silent:     p.Silent,
		DropAuthor: p.DropAuthor,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"originalMessageId": ids[0],
		"forwardedMessages": forwarded,
		"fromChatId":        p.ChatID,
		"toChatId":          p.ToChatID,
	}, nil
}

func deleteMessages(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, ids, err := decodeMessages(params)
	if err != nil {
		return nil, err
	}
	revoke := true
	if p.Revoke != nil {
		revoke = *p.Revoke
	}
	res, err := ops.Delete(ctx, p.ChatID, ids, revoke)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"deletedMessageId":  ids[0],
		"deletedMessageIds": res.Deleted,
		"revoke":            res.Revoke,
		"count":             res.Count,
	}, nil
}

func decodeChat(params map[string]any, key string) (chatParams, string, error) {
	var p chatParams
	if err := decodeParams(params, &p); err != nil {
		return p, "", err
	}
	peer := p.ChatID
	if key == "userId" {
		peer = p.UserID
	}
	if err := required(key, peer); err != nil {
		return p, "", err
	}
	return p, peer, nil
}

func getMessageHistory(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	msgs, err := ops.History(ctx, telegram.HistoryQuery{Peer: peer, Limit: limitOf(params["limit"]), OffsetID: p.OffsetID})
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": msgs}, nil
}

func searchMessages(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	if err := required("query", p.Query); err != nil {
		return nil, err
	}
	msgs, err := ops.History(ctx, telegram.HistoryQuery{Peer: peer, Search: p.Query, Limit: limitOf(params["limit"]), OffsetID: p.OffsetID})
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": msgs}, nil
}

func getChatMembers(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	members, err := ops.Members(ctx, peer, limitOf(params["limit"]))
	if err != nil {
		return nil, err
	}
	return map[string]any{"members": members}, nil
}

func getAdministrators(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	admins, err := ops.Administrators(ctx, peer)
	if err != nil {
		return nil, err
	}
	return map[string]any{"administrators": admins}, nil
}

func membershipPayload(peer string, m domain.Membership) map[string]any {
	out := map[string]any{"chatId": peer}
	if m.Joined {
		out["joined"] = true
	}
	if m.Left {
		out["left"] = true
	}
	if m.ChatID != 0 {
		out["resolvedChatId"] = m.ChatID
	}
	if m.Outcome != "" {
		out["outcome"] = m.Outcome
	}
	return out
}

func joinChat(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	m, err := ops.Join(ctx, peer)
	if err != nil {
		return nil, err
	}
	return membershipPayload(peer, m), nil
}

func leaveChat(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	m, err := ops.Leave(ctx, peer)
	if err != nil {
		return nil, err
	}
	return membershipPayload(peer, m), nil
}

func getUserInfo(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "userId")
	if err != nil {
		return nil, err
	}
	user, err := ops.UserInfo(ctx, peer)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": user}, nil
}

func getChatInfo(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	chat, err := ops.ChatInfo(ctx, peer)
	if err != nil {
		return nil, err
	}
	return map[string]any{"chat": chat}, nil
}

func editMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	p, mode, err := decodeText(params)
	if err != nil {
		return nil, err
	}
	msg, err := ops.Edit(ctx, telegram.EditMessage{
		Peer:      p.ChatID,
		ID:        p.MessageID,
		Text:      p.MessageText,
		ParseMode: mode,
		NoWebpage: p.NoWebpage,
	})
	if err != nil {
		return nil, err
	}
	out := sentPayload(msg)
	if msg.Edited != nil {
		out["editDate"] = *msg.Edited
	}
	return out, nil
}

func pinMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	var p messagesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("chatId", p.ChatID); err != nil {
		return nil, err
	}
	if err := ops.Pin(ctx, p.ChatID, p.MessageID, p.Silent); err != nil {
		return nil, err
	}
	return map[string]any{"pinned": true, "messageId": p.MessageID, "chatId": p.ChatID}, nil
}

func unpinMessage(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	var p messagesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("chatId", p.ChatID); err != nil {
		return nil, err
	}
	if err := ops.Unpin(ctx, p.ChatID, p.MessageID); err != nil {
		return nil, err
	}
	out := map[string]any{"unpinned": true, "chatId": p.ChatID}
	if p.MessageID > 0 {
		out["messageId"] = p.MessageID
	}
	return out, nil
}

func resolvePeer(ctx context.Context, ops Operations, params map[string]any) (map[string]any, error) {
	_, peer, err := decodeChat(params, "chatId")
	if err != nil {
		return nil, err
	}
	ref, err := ops.Resolve(ctx, peer)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"peer": domain.PeerSummary{Kind: string(ref.Kind), ID: ref.ChatID()},
	}, nil
}
