package telegram

import (
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"tgops/internal/domain"
)

func intToTimeUTC(value int) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(value), 0).UTC()
}

func peerToChatID(peer tg.PeerClass) (int64, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID, true
	case *tg.PeerChat:
		return -p.ChatID, true
	case *tg.PeerChannel:
		return -(channelChatIDOffset + p.ChannelID), true
	default:
		return 0, false
	}
}

// normalizeMessage maps one message record. ok is false for messageEmpty,
// which carries nothing worth reporting.
func normalizeMessage(m tg.MessageClass) (domain.Message, bool, error) {
	switch msg := m.(type) {
	case *tg.Message:
		out := domain.Message{
			ID:   msg.ID,
			Date: intToTimeUTC(msg.Date),
			Text: msg.Message,
		}
		if chatID, ok := peerToChatID(msg.PeerID); ok {
			out.ChatID = chatID
		}
		if from, ok := msg.GetFromID(); ok {
			if id, ok := peerToChatID(from); ok {
				out.FromID = &id
			}
		}
		if reply, ok := msg.GetReplyTo(); ok {
			if header, ok := reply.(*tg.MessageReplyHeader); ok {
				out.ReplyTo = header.ReplyToMsgID
			}
		}
		if edit, ok := msg.GetEditDate(); ok && edit > 0 {
			t := intToTimeUTC(edit)
			out.Edited = &t
		}
		if media, ok := msg.GetMedia(); ok {
			summary, err := summarizeMedia(media)
			if err != nil {
				return domain.Message{}, false, err
			}
			out.Media = summary
		}
		return out, true, nil
	case *tg.MessageService:
		out := domain.Message{
			ID:      msg.ID,
			Date:    intToTimeUTC(msg.Date),
			Service: serviceActionName(msg.Action),
		}
		if chatID, ok := peerToChatID(msg.PeerID); ok {
			out.ChatID = chatID
		}
		if from, ok := msg.GetFromID(); ok {
			if id, ok := peerToChatID(from); ok {
				out.FromID = &id
			}
		}
		return out, true, nil
	case *tg.MessageEmpty:
		return domain.Message{}, false, nil
	default:
		return domain.Message{}, false, newError(KindNormalization, nil, "unrecognized message record %T", m)
	}
}

func serviceActionName(action tg.MessageActionClass) string {
	if action == nil {
		return "unknown"
	}
	// messageActionChatAddUser -> chatAddUser
	name := action.TypeName()
	return strings.TrimPrefix(name, "messageAction")
}

func normalizeMessages(list []tg.MessageClass) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(list))
	for _, m := range list {
		msg, ok, err := normalizeMessage(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func summarizeMedia(media tg.MessageMediaClass) (*domain.MediaSummary, error) {
	var kind domain.MediaType
	switch m := media.(type) {
	case *tg.MessageMediaEmpty:
		return nil, nil
	case *tg.MessageMediaPhoto:
		kind = domain.MediaPhoto
	case *tg.MessageMediaDocument:
		doc, ok := m.GetDocument()
		if !ok {
			return &domain.MediaSummary{Type: domain.MediaDocument}, nil
		}
		return summarizeDocument(doc)
	case *tg.MessageMediaWebPage:
		kind = domain.MediaWebPage
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		kind = domain.MediaLocation
	case *tg.MessageMediaContact:
		kind = domain.MediaContact
	case *tg.MessageMediaPoll:
		kind = domain.MediaPoll
	case *tg.MessageMediaDice:
		kind = domain.MediaDice
	case *tg.MessageMediaGame:
		kind = domain.MediaGame
	case *tg.MessageMediaInvoice:
		kind = domain.MediaInvoice
	case *tg.MessageMediaStory:
		kind = domain.MediaStory
	case *tg.MessageMediaGiveaway, *tg.MessageMediaGiveawayResults:
		kind = domain.MediaGiveaway
	case *tg.MessageMediaPaidMedia:
		kind = domain.MediaPaid
	case *tg.MessageMediaUnsupported:
		kind = domain.MediaUnsupported
	default:
		return nil, newError(KindNormalization, nil, "unrecognized media descriptor %T", media)
	}
	return &domain.MediaSummary{Type: kind}, nil
}

func summarizeDocument(doc tg.DocumentClass) (*domain.MediaSummary, error) {
	switch d := doc.(type) {
	case *tg.DocumentEmpty:
		return &domain.MediaSummary{Type: domain.MediaDocument}, nil
	case *tg.Document:
		out := &domain.MediaSummary{Type: domain.MediaDocument, MimeType: d.MimeType, Size: d.Size}
		for _, attr := range d.Attributes {
			switch a := attr.(type) {
			case *tg.DocumentAttributeFilename:
				out.FileName = a.FileName
			case *tg.DocumentAttributeVideo:
				out.Type = domain.MediaVideo
			case *tg.DocumentAttributeAudio:
				if a.Voice {
					out.Type = domain.MediaVoice
				} else {
					out.Type = domain.MediaAudio
				}
			case *tg.DocumentAttributeSticker:
				out.Type = domain.MediaSticker
			}
		}
		return out, nil
	default:
		return nil, newError(KindNormalization, nil, "unrecognized document record %T", doc)
	}
}

// sentMessage extracts the message created by a send call. randomID ties
// the update back to the request when the server returns a full update
// list.
func sentMessage(updates tg.UpdatesClass, randomID int64, fallbackText string) (domain.Message, error) {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		out := domain.Message{ID: u.ID, Date: intToTimeUTC(u.Date), Text: fallbackText}
		if media, ok := u.GetMedia(); ok {
			summary, err := summarizeMedia(media)
			if err != nil {
				return domain.Message{}, err
			}
			out.Media = summary
		}
		return out, nil
	case *tg.UpdateShortMessage:
		return domain.Message{ID: u.ID, Date: intToTimeUTC(u.Date), Text: u.Message}, nil
	case *tg.UpdateShortChatMessage:
		return domain.Message{ID: u.ID, Date: intToTimeUTC(u.Date), Text: u.Message}, nil
	case *tg.UpdateShort:
		return messageFromUpdateList([]tg.UpdateClass{u.Update}, randomID, u.Date)
	case *tg.Updates:
		return messageFromUpdateList(u.Updates, randomID, u.Date)
	case *tg.UpdatesCombined:
		return messageFromUpdateList(u.Updates, randomID, u.Date)
	default:
		return domain.Message{}, newError(KindNormalization, nil, "unrecognized send result %T", updates)
	}
}

func messageFromUpdateList(list []tg.UpdateClass, randomID int64, date int) (domain.Message, error) {
	id := 0
	for _, upd := range list {
		if m, ok := upd.(*tg.UpdateMessageID); ok && (randomID == 0 || m.RandomID == randomID) {
			id = m.ID
			break
		}
	}
	for _, m := range newMessages(list) {
		if id != 0 && m.GetID() != id {
			continue
		}
		msg, ok, err := normalizeMessage(m)
		if err != nil {
			return domain.Message{}, err
		}
		if ok {
			return msg, nil
		}
	}
	if id != 0 {
		return domain.Message{ID: id, Date: intToTimeUTC(date)}, nil
	}
	return domain.Message{}, newError(KindNormalization, nil, "no message found in %d updates", len(list))
}

func newMessages(list []tg.UpdateClass) []tg.MessageClass {
	var out []tg.MessageClass
	for _, upd := range list {
		switch u := upd.(type) {
		case *tg.UpdateNewMessage:
			out = append(out, u.Message)
		case *tg.UpdateNewChannelMessage:
			out = append(out, u.Message)
		case *tg.UpdateNewScheduledMessage:
			out = append(out, u.Message)
		case *tg.UpdateEditMessage:
			out = append(out, u.Message)
		case *tg.UpdateEditChannelMessage:
			out = append(out, u.Message)
		}
	}
	return out
}

func updateList(updates tg.UpdatesClass) ([]tg.UpdateClass, int, error) {
	switch u := updates.(type) {
	case *tg.Updates:
		return u.Updates, u.Date, nil
	case *tg.UpdatesCombined:
		return u.Updates, u.Date, nil
	case *tg.UpdateShort:
		return []tg.UpdateClass{u.Update}, u.Date, nil
	case *tg.UpdatesTooLong:
		return nil, 0, nil
	default:
		return nil, 0, newError(KindNormalization, nil, "unrecognized updates container %T", updates)
	}
}

// forwardedMessages pairs the ids assigned by the server with the source
// ids in request order. randomIDs[i] is the random id sent for ids[i].
func forwardedMessages(updates tg.UpdatesClass, ids []int, randomIDs []int64) ([]domain.ForwardedMessage, error) {
	list, date, err := updateList(updates)
	if err != nil {
		return nil, err
	}
	var assigned []*tg.UpdateMessageID
	for _, upd := range list {
		if m, ok := upd.(*tg.UpdateMessageID); ok {
			assigned = append(assigned, m)
		}
	}
	if len(assigned) != len(ids) {
		return nil, newError(KindNormalization, nil, "forward returned %d new ids for %d messages", len(assigned), len(ids))
	}

	dates := map[int]int{}
	for _, m := range newMessages(list) {
		switch msg := m.(type) {
		case *tg.Message:
			dates[msg.ID] = msg.Date
		case *tg.MessageService:
			dates[msg.ID] = msg.Date
		}
	}

	byRandom := make(map[int64]int, len(assigned))
	for _, m := range assigned {
		byRandom[m.RandomID] = m.ID
	}
	matched := len(byRandom) == len(ids)
	for _, rid := range randomIDs {
		if _, ok := byRandom[rid]; !ok {
			matched = false
			break
		}
	}

	out := make([]domain.ForwardedMessage, len(ids))
	for i, original := range ids {
		newID := assigned[i].ID
		if matched {
			newID = byRandom[randomIDs[i]]
		}
		msgDate := date
		if d, ok := dates[newID]; ok {
			msgDate = d
		}
		out[i] = domain.ForwardedMessage{OriginalID: original, ID: newID, Date: intToTimeUTC(msgDate)}
	}
	return out, nil
}

func userToMember(user *tg.User) domain.ChatMember {
	return domain.ChatMember{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
		Phone:     user.Phone,
		Bot:       user.Bot,
		Scam:      user.Scam,
		Fake:      user.Fake,
	}
}

type entityLookup struct {
	users    map[int64]*tg.User
	chats    map[int64]*tg.Chat
	channels map[int64]*tg.Channel
}

func buildEntityLookup(users []tg.UserClass, chats []tg.ChatClass) entityLookup {
	lookup := entityLookup{
		users:    make(map[int64]*tg.User, len(users)),
		chats:    map[int64]*tg.Chat{},
		channels: map[int64]*tg.Channel{},
	}
	for _, userClass := range users {
		if user, ok := userClass.(*tg.User); ok && user != nil {
			lookup.users[user.ID] = user
		}
	}
	for _, chatClass := range chats {
		switch entry := chatClass.(type) {
		case *tg.Chat:
			lookup.chats[entry.ID] = entry
		case *tg.Channel:
			lookup.channels[entry.ID] = entry
		}
	}
	return lookup
}
