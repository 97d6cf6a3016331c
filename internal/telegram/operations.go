package telegram

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"tgops/internal/domain"
)

const (
	defaultHistoryLimit = 100
	historyPageSize     = 100
	participantsPage    = 200
)

type TextMessage struct {
	Peer      string
	Text      string
	ParseMode ParseMode
	ReplyTo   int
	Silent    bool
	NoWebpage bool
}

type MediaMessage struct {
	Peer      string
	Source    Source
	Kind      domain.MediaType
	Caption   string
	ParseMode ParseMode
	ReplyTo   int
	Silent    bool
	MimeType  string
}

type ForwardRequest struct {
	From       string
	To         string
	IDs        []int
	Silent     bool
	DropAuthor bool
}

type HistoryQuery struct {
	Peer     string
	Search   string
	Limit    int
	OffsetID int
}

type EditMessage struct {
	Peer      string
	ID        int
	Text      string
	ParseMode ParseMode
	NoWebpage bool
}

func replyHeader(id int) tg.InputReplyToClass {
	if id <= 0 {
		return nil
	}
	return &tg.InputReplyToMessage{ReplyToMsgID: id}
}

// SendText sends a text message, or a reply when m.ReplyTo is set.
func (c *Client) SendText(ctx context.Context, m TextMessage) (domain.Message, error) {
	if strings.TrimSpace(m.Text) == "" {
		return domain.Message{}, newError(KindInvalidParameters, nil, "message text is required")
	}
	text, entities, err := formatText(m.ParseMode, m.Text)
	if err != nil {
		return domain.Message{}, err
	}
	randomID, err := c.randomID()
	if err != nil {
		return domain.Message{}, err
	}

	var out domain.Message
	err = c.withPeer(ctx, m.Peer, func(ref PeerRef) error {
		req := &tg.MessagesSendMessageRequest{
			Peer:      ref.InputPeer(),
			Message:   text,
			RandomID:  randomID,
			Silent:    m.Silent,
			NoWebpage: m.NoWebpage,
			Entities:  entities,
		}
		if reply := replyHeader(m.ReplyTo); reply != nil {
			req.ReplyTo = reply
		}
		updates, err := c.api.MessagesSendMessage(ctx, req)
		if err != nil {
			return transportError("messages.sendMessage", err)
		}
		out, err = sentMessage(updates, randomID, text)
		if err != nil {
			return err
		}
		if out.ChatID == 0 {
			out.ChatID = ref.ChatID()
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if out.Text == "" {
		out.Text = text
	}
	if out.ReplyTo == 0 {
		out.ReplyTo = m.ReplyTo
	}
	return out, nil
}

// SendMedia uploads m.Source and sends it as a single media message.
func (c *Client) SendMedia(ctx context.Context, m MediaMessage) (domain.Message, error) {
	kind := m.Kind
	switch kind {
	case "":
		kind = domain.MediaDocument
	case domain.MediaPhoto, domain.MediaVideo, domain.MediaAudio, domain.MediaVoice, domain.MediaDocument:
	default:
		return domain.Message{}, newError(KindInvalidParameters, nil, "unsupported media type %q", m.Kind)
	}
	caption, entities, err := formatText(m.ParseMode, m.Caption)
	if err != nil {
		return domain.Message{}, err
	}
	randomID, err := c.randomID()
	if err != nil {
		return domain.Message{}, err
	}

	var (
		out    domain.Message
		handle *UploadHandle
	)
	err = c.withPeer(ctx, m.Peer, func(ref PeerRef) error {
		if handle == nil {
			h, err := c.uploader.Upload(ctx, m.Source)
			if err != nil {
				return err
			}
			handle = &h
		}
		req := &tg.MessagesSendMediaRequest{
			Peer:     ref.InputPeer(),
			Media:    inputMedia(kind, *handle, m.MimeType),
			Message:  caption,
			RandomID: randomID,
			Silent:   m.Silent,
			Entities: entities,
		}
		if reply := replyHeader(m.ReplyTo); reply != nil {
			req.ReplyTo = reply
		}
		updates, err := c.api.MessagesSendMedia(ctx, req)
		if err != nil {
			return transportError("messages.sendMedia", err)
		}
		out, err = sentMessage(updates, randomID, caption)
		if err != nil {
			return err
		}
		if out.ChatID == 0 {
			out.ChatID = ref.ChatID()
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if out.Media == nil {
		out.Media = &domain.MediaSummary{Type: kind, FileName: handle.Name, Size: handle.Size}
	}
	return out, nil
}

func inputMedia(kind domain.MediaType, h UploadHandle, mimeType string) tg.InputMediaClass {
	if kind == domain.MediaPhoto {
		return &tg.InputMediaUploadedPhoto{File: h.InputFile()}
	}
	if mimeType == "" {
		mimeType = guessMimeType(h.Name, kind)
	}
	doc := &tg.InputMediaUploadedDocument{
		File:     h.InputFile(),
		MimeType: mimeType,
	}
	switch kind {
	case domain.MediaVideo:
		doc.Attributes = append(doc.Attributes, &tg.DocumentAttributeVideo{SupportsStreaming: true})
	case domain.MediaAudio:
		doc.Attributes = append(doc.Attributes, &tg.DocumentAttributeAudio{Voice: false})
	case domain.MediaVoice:
		doc.Attributes = append(doc.Attributes, &tg.DocumentAttributeAudio{Voice: true})
	default:
		doc.ForceFile = true
	}
	if h.Name != "" {
		doc.Attributes = append(doc.Attributes, &tg.DocumentAttributeFilename{FileName: h.Name})
	}
	return doc
}

func guessMimeType(name string, kind domain.MediaType) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	switch kind {
	case domain.MediaVoice:
		return "audio/ogg"
	case domain.MediaAudio:
		return "audio/mpeg"
	case domain.MediaVideo:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// Forward copies f.IDs from f.From to f.To and returns the new ids in the
// order of f.IDs.
func (c *Client) Forward(ctx context.Context, f ForwardRequest) ([]domain.ForwardedMessage, error) {
	if len(f.IDs) == 0 {
		return nil, newError(KindInvalidParameters, nil, "at least one message id is required")
	}
	randomIDs := make([]int64, len(f.IDs))
	for i := range randomIDs {
		id, err := c.randomID()
		if err != nil {
			return nil, err
		}
		randomIDs[i] = id
	}

	var out []domain.ForwardedMessage
	err := c.withPeer(ctx, f.From, func(from PeerRef) error {
		return c.withPeer(ctx, f.To, func(to PeerRef) error {
			updates, err := c.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
				FromPeer:   from.InputPeer(),
				ID:         append([]int(nil), f.IDs...),
				RandomID:   randomIDs,
				ToPeer:     to.InputPeer(),
				Silent:     f.Silent,
				DropAuthor: f.DropAuthor,
			})
			if err != nil {
				return transportError("messages.forwardMessages", err)
			}
			out, err = forwardedMessages(updates, f.IDs, randomIDs)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes ids in one batched call. revoke deletes for everyone.
func (c *Client) Delete(ctx context.Context, peer string, ids []int, revoke bool) (domain.DeleteResult, error) {
	if len(ids) == 0 {
		return domain.DeleteResult{}, newError(KindInvalidParameters, nil, "at least one message id is required")
	}
	var affected *tg.MessagesAffectedMessages
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		var err error
		if ref.Kind == PeerChannel {
			channel, shapeErr := ref.InputChannel()
			if shapeErr != nil {
				return shapeErr
			}
			affected, err = c.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
				Channel: channel,
				ID:      ids,
			})
			if err != nil {
				return transportError("channels.deleteMessages", err)
			}
			return nil
		}
		affected, err = c.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
			Revoke: revoke,
			ID:     ids,
		})
		if err != nil {
			return transportError("messages.deleteMessages", err)
		}
		return nil
	})
	if err != nil {
		return domain.DeleteResult{}, err
	}
	if affected.PtsCount < len(ids) {
		c.log.Warn("fewer messages deleted than requested", "peer", peer, "requested", len(ids), "deleted", affected.PtsCount)
		return domain.DeleteResult{}, newError(KindPartialDelete, nil, "deleted %d of %d messages", affected.PtsCount, len(ids))
	}
	return domain.DeleteResult{
		Deleted: append([]int(nil), ids...),
		Revoke:  revoke,
		Pts:     affected.Pts,
		Count:   affected.PtsCount,
	}, nil
}

// History returns up to q.Limit messages, newest first. A non-empty
// q.Search switches to messages.search with the same paging.
func (c *Client) History(ctx context.Context, q HistoryQuery) ([]domain.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var out []domain.Message
	err := c.withPeer(ctx, q.Peer, func(ref PeerRef) error {
		out = out[:0]
		offset := q.OffsetID
		for len(out) < limit {
			page := min(limit-len(out), historyPageSize)
			var (
				res    tg.MessagesMessagesClass
				err    error
				method string
			)
			if q.Search != "" {
				method = "messages.search"
				res, err = c.api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
					Peer:     ref.InputPeer(),
					Q:        q.Search,
					Filter:   &tg.InputMessagesFilterEmpty{},
					OffsetID: offset,
					Limit:    page,
				})
			} else {
				method = "messages.getHistory"
				res, err = c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
					Peer:     ref.InputPeer(),
					OffsetID: offset,
					Limit:    page,
				})
			}
			if err != nil {
				return transportError(method, err)
			}
			modified, ok := res.AsModified()
			if !ok {
				return nil
			}
			raw := modified.GetMessages()
			msgs, err := normalizeMessages(raw)
			if err != nil {
				return err
			}
			out = append(out, msgs...)
			if len(raw) < page {
				return nil
			}
			offset = raw[len(raw)-1].GetID()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Join joins a channel, or imports an invite link.
func (c *Client) Join(ctx context.Context, peer string) (domain.Membership, error) {
	if ident, err := classifyIdentifier(peer); err == nil && ident.kind == identInvite {
		updates, err := c.api.MessagesImportChatInvite(ctx, ident.value)
		if tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
			return domain.Membership{Joined: true, Outcome: rpcType(err)}, nil
		}
		if err != nil {
			return domain.Membership{}, transportError("messages.importChatInvite", err)
		}
		return domain.Membership{ChatID: chatIDFromUpdates(updates), Joined: true}, nil
	}

	var out domain.Membership
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		if ref.Kind == PeerChat {
			return newError(KindInvalidPeerShape, nil, "basic group %d can only be joined with an invite link", ref.ID)
		}
		channel, err := ref.InputChannel()
		if err != nil {
			return err
		}
		out = domain.Membership{ChatID: ref.ChatID(), Joined: true}
		_, err = c.api.ChannelsJoinChannel(ctx, channel)
		if tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
			out.Outcome = rpcType(err)
			return nil
		}
		if err != nil {
			return transportError("channels.joinChannel", err)
		}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return out, nil
}

// Leave leaves a channel or removes the current account from a basic group.
func (c *Client) Leave(ctx context.Context, peer string) (domain.Membership, error) {
	var out domain.Membership
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		out = domain.Membership{ChatID: ref.ChatID(), Left: true}
		var (
			err    error
			method string
		)
		switch ref.Kind {
		case PeerChannel:
			channel, _ := ref.InputChannel()
			method = "channels.leaveChannel"
			_, err = c.api.ChannelsLeaveChannel(ctx, channel)
		case PeerChat:
			method = "messages.deleteChatUser"
			_, err = c.api.MessagesDeleteChatUser(ctx, &tg.MessagesDeleteChatUserRequest{
				ChatID: ref.ID,
				UserID: &tg.InputUserSelf{},
			})
		default:
			return newError(KindInvalidPeerShape, nil, "cannot leave a private chat with user %d", ref.ID)
		}
		if tgerr.Is(err, "USER_NOT_PARTICIPANT", "CHANNEL_PRIVATE") {
			out.Outcome = rpcType(err)
			return nil
		}
		if err != nil {
			return transportError(method, err)
		}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return out, nil
}

func chatIDFromUpdates(updates tg.UpdatesClass) int64 {
	var chats []tg.ChatClass
	switch u := updates.(type) {
	case *tg.Updates:
		chats = u.Chats
	case *tg.UpdatesCombined:
		chats = u.Chats
	}
	for _, chat := range chats {
		switch c := chat.(type) {
		case *tg.Chat:
			return -c.ID
		case *tg.Channel:
			return -(channelChatIDOffset + c.ID)
		}
	}
	return 0
}

// UserInfo returns profile details of a user. Groups and channels yield a
// NotAUser error.
func (c *Client) UserInfo(ctx context.Context, peer string) (domain.UserInfo, error) {
	var out domain.UserInfo
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		if ref.Kind != PeerUser {
			return newError(KindNotAUser, nil, "%s is a %s, not a user", peer, ref.Kind)
		}
		input, _ := ref.InputUser()
		full, err := c.api.UsersGetFullUser(ctx, input)
		if err != nil {
			return transportError("users.getFullUser", err)
		}
		lookup := buildEntityLookup(full.Users, full.Chats)
		user, ok := lookup.users[ref.ID]
		if !ok {
			return newError(KindNormalization, nil, "users.getFullUser returned no user %d", ref.ID)
		}
		out = domain.UserInfo{
			ID:         user.ID,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			Username:   user.Username,
			Phone:      user.Phone,
			About:      full.FullUser.About,
			Bot:        user.Bot,
			Verified:   user.Verified,
			Premium:    user.Premium,
			Restricted: user.Restricted,
			Scam:       user.Scam,
			Fake:       user.Fake,
		}
		return nil
	})
	if err != nil {
		return domain.UserInfo{}, err
	}
	return out, nil
}

// ChatInfo returns details of a group or channel. Users yield a NotAChat
// error.
func (c *Client) ChatInfo(ctx context.Context, peer string) (domain.ChatInfo, error) {
	var out domain.ChatInfo
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		switch ref.Kind {
		case PeerChat:
			res, err := c.api.MessagesGetFullChat(ctx, ref.ID)
			if err != nil {
				return transportError("messages.getFullChat", err)
			}
			full, ok := res.FullChat.(*tg.ChatFull)
			if !ok {
				return newError(KindNormalization, nil, "unexpected full chat record %T", res.FullChat)
			}
			chat, ok := buildEntityLookup(res.Users, res.Chats).chats[ref.ID]
			if !ok {
				return newError(KindNormalization, nil, "messages.getFullChat returned no chat %d", ref.ID)
			}
			out = domain.ChatInfo{
				ID:          ref.ChatID(),
				Title:       chat.Title,
				Type:        domain.ChatGroup,
				Description: full.About,
				MemberCount: chat.ParticipantsCount,
			}
			return nil
		case PeerChannel:
			input, _ := ref.InputChannel()
			res, err := c.api.ChannelsGetFullChannel(ctx, input)
			if err != nil {
				return transportError("channels.getFullChannel", err)
			}
			full, ok := res.FullChat.(*tg.ChannelFull)
			if !ok {
				return newError(KindNormalization, nil, "unexpected full channel record %T", res.FullChat)
			}
			channel, ok := buildEntityLookup(res.Users, res.Chats).channels[ref.ID]
			if !ok {
				return newError(KindNormalization, nil, "channels.getFullChannel returned no channel %d", ref.ID)
			}
			out = domain.ChatInfo{
				ID:          ref.ChatID(),
				Title:       channel.Title,
				Type:        domain.ChatChannel,
				Username:    channel.Username,
				Description: full.About,
			}
			if channel.Megagroup {
				out.Type = domain.ChatSupergroup
			}
			if count, ok := full.GetParticipantsCount(); ok {
				out.MemberCount = count
			}
			return nil
		default:
			return newError(KindNotAChat, nil, "%s is a user, not a chat", peer)
		}
	})
	if err != nil {
		return domain.ChatInfo{}, err
	}
	return out, nil
}

// Members lists up to limit members of a group or channel.
func (c *Client) Members(ctx context.Context, peer string, limit int) ([]domain.ChatMember, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var out []domain.ChatMember
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		out = out[:0]
		switch ref.Kind {
		case PeerChat:
			users, participants, err := c.fullChatParticipants(ctx, ref)
			if err != nil {
				return err
			}
			for _, p := range participants {
				if user, ok := users.users[p.GetUserID()]; ok && len(out) < limit {
					out = append(out, userToMember(user))
				}
			}
			return nil
		case PeerChannel:
			return c.channelParticipants(ctx, ref, &tg.ChannelParticipantsRecent{}, limit, func(user *tg.User, _ tg.ChannelParticipantClass) {
				out = append(out, userToMember(user))
			})
		default:
			return newError(KindNotAChat, nil, "%s is a user, not a chat", peer)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Administrators lists the creator and admins of a group or channel.
func (c *Client) Administrators(ctx context.Context, peer string) ([]domain.ChatAdmin, error) {
	var out []domain.ChatAdmin
	err := c.withPeer(ctx, peer, func(ref PeerRef) error {
		out = out[:0]
		switch ref.Kind {
		case PeerChat:
			users, participants, err := c.fullChatParticipants(ctx, ref)
			if err != nil {
				return err
			}
			for _, p := range participants {
				user, ok := users.users[p.GetUserID()]
				if !ok {
					continue
				}
				switch p.(type) {
				case *tg.ChatParticipantCreator:
					out = append(out, domain.ChatAdmin{ChatMember: userToMember(user), Creator: true})
				case *tg.ChatParticipantAdmin:
					out = append(out, domain.ChatAdmin{ChatMember: userToMember(user)})
				}
			}
			return nil
		case PeerChannel:
			return c.channelParticipants(ctx, ref, &tg.ChannelParticipantsAdmins{}, participantsPage, func(user *tg.User, p tg.ChannelParticipantClass) {
				admin := domain.ChatAdmin{ChatMember: userToMember(user)}
				switch v := p.(type) {
				case *tg.ChannelParticipantCreator:
					admin.Creator = true
					admin.Rank = v.Rank
				case *tg.ChannelParticipantAdmin:
					admin.Rank = v.Rank
				}
				out = append(out, admin)
			})
		default:
			return newError(KindNotAChat, nil, "%s is a user, not a chat", peer)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) fullChatParticipants(ctx context.Context, ref PeerRef) (entityLookup, []tg.ChatParticipantClass, error) {
	res, err := c.api.MessagesGetFullChat(ctx, ref.ID)
	if err != nil {
		return entityLookup{}, nil, transportError("messages.getFullChat", err)
	}
	full, ok := res.FullChat.(*tg.ChatFull)
	if !ok {
		return entityLookup{}, nil, newError(KindNormalization, nil, "unexpected full chat record %T", res.FullChat)
	}
	switch p := full.Participants.(type) {
	case *tg.ChatParticipants:
		return buildEntityLookup(res.Users, res.Chats), p.Participants, nil
	case *tg.ChatParticipantsForbidden:
		return entityLookup{}, nil, newError(KindResolution, nil, "members of chat %d are not visible to this account", ref.ID)
	default:
		return entityLookup{}, nil, newError(KindNormalization, nil, "unexpected participants record %T", full.Participants)
	}
}

func (c *Client) channelParticipants(
	ctx context.Context,
	ref PeerRef,
	filter tg.ChannelParticipantsFilterClass,
	limit int,
	yield func(*tg.User, tg.ChannelParticipantClass),
) error {
	channel, err := ref.InputChannel()
	if err != nil {
		return err
	}
	seen := 0
	offset := 0
	for seen < limit {
		page := min(limit-seen, participantsPage)
		res, err := c.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: channel,
			Filter:  filter,
			Offset:  offset,
			Limit:   page,
		})
		if err != nil {
			return transportError("channels.getParticipants", err)
		}
		participants, ok := res.(*tg.ChannelsChannelParticipants)
		if !ok {
			return nil
		}
		users := buildEntityLookup(participants.Users, participants.Chats)
		for _, p := range participants.Participants {
			id, ok := participantUserID(p)
			if !ok {
				continue
			}
			if user, ok := users.users[id]; ok && seen < limit {
				yield(user, p)
				seen++
			}
		}
		if len(participants.Participants) < page {
			return nil
		}
		offset += len(participants.Participants)
	}
	return nil
}

func participantUserID(p tg.ChannelParticipantClass) (int64, bool) {
	switch v := p.(type) {
	case *tg.ChannelParticipant:
		return v.UserID, true
	case *tg.ChannelParticipantSelf:
		return v.UserID, true
	case *tg.ChannelParticipantCreator:
		return v.UserID, true
	case *tg.ChannelParticipantAdmin:
		return v.UserID, true
	case *tg.ChannelParticipantBanned:
		if user, ok := v.Peer.(*tg.PeerUser); ok {
			return user.UserID, true
		}
	case *tg.ChannelParticipantLeft:
		if user, ok := v.Peer.(*tg.PeerUser); ok {
			return user.UserID, true
		}
	}
	return 0, false
}

// Edit replaces the text of an existing message.
func (c *Client) Edit(ctx context.Context, m EditMessage) (domain.Message, error) {
	if m.ID <= 0 {
		return domain.Message{}, newError(KindInvalidParameters, nil, "message id is required")
	}
	text, entities, err := formatText(m.ParseMode, m.Text)
	if err != nil {
		return domain.Message{}, err
	}
	var out domain.Message
	err = c.withPeer(ctx, m.Peer, func(ref PeerRef) error {
		updates, err := c.api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
			Peer:      ref.InputPeer(),
			ID:        m.ID,
			Message:   text,
			Entities:  entities,
			NoWebpage: m.NoWebpage,
		})
		if err != nil {
			return transportError("messages.editMessage", err)
		}
		list, date, err := updateList(updates)
		if err != nil {
			return err
		}
		for _, msg := range newMessages(list) {
			if msg.GetID() != m.ID {
				continue
			}
			normalized, ok, err := normalizeMessage(msg)
			if err != nil {
				return err
			}
			if ok {
				out = normalized
				return nil
			}
		}
		out = domain.Message{ID: m.ID, Date: intToTimeUTC(date), Text: text, ChatID: ref.ChatID()}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return out, nil
}

// Pin pins message id in peer. silent skips the notification.
func (c *Client) Pin(ctx context.Context, peer string, id int, silent bool) error {
	if id <= 0 {
		return newError(KindInvalidParameters, nil, "message id is required")
	}
	return c.withPeer(ctx, peer, func(ref PeerRef) error {
		_, err := c.api.MessagesUpdatePinnedMessage(ctx, &tg.MessagesUpdatePinnedMessageRequest{
			Peer:   ref.InputPeer(),
			ID:     id,
			Silent: silent,
		})
		if err != nil {
			return transportError("messages.updatePinnedMessage", err)
		}
		return nil
	})
}

// Unpin unpins message id, or every pinned message when id is zero.
func (c *Client) Unpin(ctx context.Context, peer string, id int) error {
	return c.withPeer(ctx, peer, func(ref PeerRef) error {
		if id <= 0 {
			_, err := c.api.MessagesUnpinAllMessages(ctx, &tg.MessagesUnpinAllMessagesRequest{Peer: ref.InputPeer()})
			if err != nil {
				return transportError("messages.unpinAllMessages", err)
			}
			return nil
		}
		_, err := c.api.MessagesUpdatePinnedMessage(ctx, &tg.MessagesUpdatePinnedMessageRequest{
			Peer:  ref.InputPeer(),
			ID:    id,
			Unpin: true,
		})
		if err != nil {
			return transportError("messages.updatePinnedMessage", err)
		}
		return nil
	})
}
