package telegram

import (
	"context"
	"testing"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgops/internal/domain"
)

const testDate = 1_700_000_000

func TestSendTextWithoutParseModeKeepsText(t *testing.T) {
	const text = "*not bold* <b>raw</b> _x_"
	var got *tg.MessagesSendMessageRequest
	inv := newFakeInvoker().on("messages.sendMessage", func(req bin.Encoder) (bin.Encoder, error) {
		got = req.(*tg.MessagesSendMessageRequest)
		return &tg.UpdateShortSentMessage{ID: 10, Date: testDate}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "42", userRef(42, 4242))

	msg, err := c.SendText(context.Background(), TextMessage{Peer: "42", Text: text, ReplyTo: 7})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, text, got.Message)
	assert.Empty(t, got.Entities)
	assert.Equal(t, &tg.InputPeerUser{UserID: 42, AccessHash: 4242}, got.Peer)
	assert.Equal(t, &tg.InputReplyToMessage{ReplyToMsgID: 7}, got.ReplyTo)
	assert.NotZero(t, got.RandomID)

	assert.Equal(t, 10, msg.ID)
	assert.Equal(t, text, msg.Text)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, 7, msg.ReplyTo)
	assert.Equal(t, int64(testDate), msg.Date.Unix())
}

func TestSendTextMarkdown(t *testing.T) {
	var got *tg.MessagesSendMessageRequest
	inv := newFakeInvoker().on("messages.sendMessage", func(req bin.Encoder) (bin.Encoder, error) {
		got = req.(*tg.MessagesSendMessageRequest)
		return &tg.UpdateShortSentMessage{ID: 11, Date: testDate}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "42", userRef(42, 1))

	_, err := c.SendText(context.Background(), TextMessage{Peer: "42", Text: "**bold** and _it_", ParseMode: ParseMarkdown})
	require.NoError(t, err)

	assert.Equal(t, "bold and it", got.Message)
	assert.Equal(t, []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 4},
		&tg.MessageEntityItalic{Offset: 9, Length: 2},
	}, got.Entities)
}

func TestSendTextRejectsEmptyText(t *testing.T) {
	inv := newFakeInvoker()
	c := newTestClient(t, inv)

	_, err := c.SendText(context.Background(), TextMessage{Peer: "42", Text: "  "})
	requireKind(t, err, KindInvalidParameters)
	assert.Empty(t, inv.calls)
}

func TestSendTextReResolvesRejectedPeer(t *testing.T) {
	inv := newFakeInvoker().
		on("contacts.resolveUsername", func(bin.Encoder) (bin.Encoder, error) {
			return resolvedChannel(5, 2, "chan"), nil
		}).
		on("messages.sendMessage", func(req bin.Encoder) (bin.Encoder, error) {
			peer := req.(*tg.MessagesSendMessageRequest).Peer.(*tg.InputPeerChannel)
			if peer.AccessHash == 1 {
				return nil, tgerr.New(400, "CHANNEL_INVALID")
			}
			return &tg.UpdateShortSentMessage{ID: 3, Date: testDate}, nil
		})
	c := newTestClient(t, inv)
	seedPeer(t, c, "@chan", channelRef(5, 1, false))

	msg, err := c.SendText(context.Background(), TextMessage{Peer: "@chan", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 3, msg.ID)
	assert.Equal(t, 2, inv.count("messages.sendMessage"))
	assert.Equal(t, 1, inv.count("contacts.resolveUsername"))

	ref, err := c.Resolve(context.Background(), "@chan")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ref.AccessHash)
}

func TestSendTextGivesUpAfterOneRetry(t *testing.T) {
	inv := newFakeInvoker().
		on("contacts.resolveUsername", func(bin.Encoder) (bin.Encoder, error) {
			return resolvedChannel(5, 2, "chan"), nil
		}).
		on("messages.sendMessage", func(bin.Encoder) (bin.Encoder, error) {
			return nil, tgerr.New(400, "PEER_ID_INVALID")
		})
	c := newTestClient(t, inv)

	_, err := c.SendText(context.Background(), TextMessage{Peer: "@chan", Text: "hi"})
	requireKind(t, err, KindResolution)
	assert.Equal(t, 2, inv.count("messages.sendMessage"))
}

func TestSendMediaUploadsBeforeSending(t *testing.T) {
	var uploaded int
	var got *tg.MessagesSendMediaRequest
	inv := newFakeInvoker().
		on("upload.saveFilePart", func(bin.Encoder) (bin.Encoder, error) {
			uploaded++
			return &tg.BoolTrue{}, nil
		}).
		on("messages.sendMedia", func(req bin.Encoder) (bin.Encoder, error) {
			assert.Equal(t, 1, uploaded, "send must follow a finished upload")
			got = req.(*tg.MessagesSendMediaRequest)
			return &tg.UpdateShortSentMessage{ID: 20, Date: testDate}, nil
		})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-77", chatRef(77))

	msg, err := c.SendMedia(context.Background(), MediaMessage{
		Peer:    "-77",
		Source:  BytesSource("clip.mp4", []byte("not really a video")),
		Kind:    domain.MediaVideo,
		Caption: "look",
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "look", got.Message)
	doc, ok := got.Media.(*tg.InputMediaUploadedDocument)
	require.True(t, ok, "got %T", got.Media)
	assert.Equal(t, "video/mp4", doc.MimeType)
	file, ok := doc.File.(*tg.InputFile)
	require.True(t, ok)
	assert.Equal(t, 1, file.Parts)
	assert.Equal(t, "clip.mp4", file.Name)

	assert.Equal(t, 20, msg.ID)
	assert.Equal(t, int64(-77), msg.ChatID)
	require.NotNil(t, msg.Media)
	assert.Equal(t, domain.MediaVideo, msg.Media.Type)
}

func TestSendMediaPhoto(t *testing.T) {
	var got *tg.MessagesSendMediaRequest
	inv := newFakeInvoker().
		on("upload.saveFilePart", func(bin.Encoder) (bin.Encoder, error) { return &tg.BoolTrue{}, nil }).
		on("messages.sendMedia", func(req bin.Encoder) (bin.Encoder, error) {
			got = req.(*tg.MessagesSendMediaRequest)
			return &tg.UpdateShortSentMessage{ID: 21, Date: testDate}, nil
		})
	c := newTestClient(t, inv)
	seedPeer(t, c, "42", userRef(42, 1))

	_, err := c.SendMedia(context.Background(), MediaMessage{
		Peer:   "42",
		Source: BytesSource("cat.jpg", []byte{0xff, 0xd8, 0xff}),
		Kind:   domain.MediaPhoto,
	})
	require.NoError(t, err)
	_, ok := got.Media.(*tg.InputMediaUploadedPhoto)
	assert.True(t, ok, "got %T", got.Media)
}

func TestSendMediaRejectsUnknownKind(t *testing.T) {
	c := newTestClient(t, newFakeInvoker())
	_, err := c.SendMedia(context.Background(), MediaMessage{Peer: "42", Kind: domain.MediaPoll, Source: BytesSource("x", []byte("x"))})
	requireKind(t, err, KindInvalidParameters)
}

func TestForwardKeepsRequestOrder(t *testing.T) {
	inv := newFakeInvoker().on("messages.forwardMessages", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesForwardMessagesRequest)
		require.Len(t, r.RandomID, 3)
		// The server reports new ids in reverse order.
		updates := &tg.Updates{Date: testDate}
		for i := len(r.ID) - 1; i >= 0; i-- {
			updates.Updates = append(updates.Updates, &tg.UpdateMessageID{ID: 500 + r.ID[i], RandomID: r.RandomID[i]})
		}
		return updates, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-1", chatRef(1))
	seedPeer(t, c, "-2", chatRef(2))

	out, err := c.Forward(context.Background(), ForwardRequest{From: "-1", To: "-2", IDs: []int{3, 1, 2}})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, original := range []int{3, 1, 2} {
		assert.Equal(t, original, out[i].OriginalID)
		assert.Equal(t, 500+original, out[i].ID)
		assert.Equal(t, int64(testDate), out[i].Date.Unix())
	}
}

func TestForwardCountMismatch(t *testing.T) {
	inv := newFakeInvoker().on("messages.forwardMessages", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesForwardMessagesRequest)
		return &tg.Updates{Date: testDate, Updates: []tg.UpdateClass{
			&tg.UpdateMessageID{ID: 900, RandomID: r.RandomID[0]},
		}}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-1", chatRef(1))
	seedPeer(t, c, "-2", chatRef(2))

	_, err := c.Forward(context.Background(), ForwardRequest{From: "-1", To: "-2", IDs: []int{1, 2}})
	requireKind(t, err, KindNormalization)
}

func TestDeleteUsesChannelMethodForChannels(t *testing.T) {
	inv := newFakeInvoker().on("channels.deleteMessages", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.ChannelsDeleteMessagesRequest)
		assert.Equal(t, []int{4, 5}, r.ID)
		return &tg.MessagesAffectedMessages{Pts: 10, PtsCount: 2}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "@chan", channelRef(5, 9, true))

	res, err := c.Delete(context.Background(), "@chan", []int{4, 5}, true)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, res.Deleted)
	assert.Equal(t, 2, res.Count)
	assert.Zero(t, inv.count("messages.deleteMessages"))
}

func TestDeleteShortCountFails(t *testing.T) {
	inv := newFakeInvoker().on("messages.deleteMessages", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesDeleteMessagesRequest)
		assert.Equal(t, []int{4, 5}, r.ID)
		return &tg.MessagesAffectedMessages{Pts: 11, PtsCount: 1}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-1", chatRef(1))

	res, err := c.Delete(context.Background(), "-1", []int{4, 5}, true)
	requireKind(t, err, KindPartialDelete)
	assert.Contains(t, err.Error(), "deleted 1 of 2 messages")
	assert.Empty(t, res.Deleted)
	assert.Equal(t, 1, inv.count("messages.deleteMessages"))
}

func historyPage(from, n int) *tg.MessagesMessages {
	page := &tg.MessagesMessages{}
	for i := 0; i < n; i++ {
		page.Messages = append(page.Messages, &tg.Message{
			ID:      from - i,
			PeerID:  &tg.PeerChat{ChatID: 1},
			Date:    testDate,
			Message: "m",
		})
	}
	return page
}

func TestHistoryPagesPastServerLimit(t *testing.T) {
	var offsets []int
	inv := newFakeInvoker().on("messages.getHistory", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesGetHistoryRequest)
		offsets = append(offsets, r.OffsetID)
		top := 1000
		if r.OffsetID != 0 {
			top = r.OffsetID - 1
		}
		return historyPage(top, r.Limit), nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-1", chatRef(1))

	msgs, err := c.History(context.Background(), HistoryQuery{Peer: "-1", Limit: 150})
	require.NoError(t, err)
	require.Len(t, msgs, 150)
	assert.Equal(t, []int{0, 901}, offsets)
	assert.Equal(t, 1000, msgs[0].ID)
	assert.Equal(t, 851, msgs[149].ID)
	assert.Equal(t, int64(-1), msgs[0].ChatID)
}

func TestHistorySearchStopsOnShortPage(t *testing.T) {
	inv := newFakeInvoker().on("messages.search", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesSearchRequest)
		assert.Equal(t, "needle", r.Q)
		return historyPage(50, 3), nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-1", chatRef(1))

	msgs, err := c.History(context.Background(), HistoryQuery{Peer: "-1", Search: "needle"})
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.Equal(t, 1, inv.count("messages.search"))
}

func TestJoinIsIdempotent(t *testing.T) {
	joined := false
	inv := newFakeInvoker().on("channels.joinChannel", func(bin.Encoder) (bin.Encoder, error) {
		if joined {
			return nil, tgerr.New(400, "USER_ALREADY_PARTICIPANT")
		}
		joined = true
		return &tg.Updates{Date: testDate}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "@chan", channelRef(5, 9, false))

	first, err := c.Join(context.Background(), "@chan")
	require.NoError(t, err)
	assert.True(t, first.Joined)
	assert.Empty(t, first.Outcome)

	second, err := c.Join(context.Background(), "@chan")
	require.NoError(t, err)
	assert.True(t, second.Joined)
	assert.Equal(t, "USER_ALREADY_PARTICIPANT", second.Outcome)
	assert.Equal(t, first.ChatID, second.ChatID)
}

func TestJoinInviteLink(t *testing.T) {
	inv := newFakeInvoker().on("messages.importChatInvite", func(req bin.Encoder) (bin.Encoder, error) {
		assert.Equal(t, "AbCd", req.(*tg.MessagesImportChatInviteRequest).Hash)
		return &tg.Updates{Date: testDate, Chats: []tg.ChatClass{&tg.Chat{ID: 12, Title: "g", Photo: &tg.ChatPhotoEmpty{}}}}, nil
	})
	c := newTestClient(t, inv)

	res, err := c.Join(context.Background(), "https://t.me/+AbCd")
	require.NoError(t, err)
	assert.Equal(t, int64(-12), res.ChatID)
}

func TestJoinBasicGroupNeedsInvite(t *testing.T) {
	c := newTestClient(t, newFakeInvoker())
	seedPeer(t, c, "-12", chatRef(12))

	_, err := c.Join(context.Background(), "-12")
	requireKind(t, err, KindInvalidPeerShape)
}

func TestLeaveWhenNotParticipant(t *testing.T) {
	inv := newFakeInvoker().on("messages.deleteChatUser", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesDeleteChatUserRequest)
		assert.Equal(t, int64(12), r.ChatID)
		assert.Equal(t, &tg.InputUserSelf{}, r.UserID)
		return nil, tgerr.New(400, "USER_NOT_PARTICIPANT")
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-12", chatRef(12))

	res, err := c.Leave(context.Background(), "-12")
	require.NoError(t, err)
	assert.True(t, res.Left)
	assert.Equal(t, "USER_NOT_PARTICIPANT", res.Outcome)
}

func TestEntityKindDiscrimination(t *testing.T) {
	inv := newFakeInvoker()
	c := newTestClient(t, inv)
	seedPeer(t, c, "@chan", channelRef(5, 9, false))
	seedPeer(t, c, "42", userRef(42, 1))
	ctx := context.Background()

	_, err := c.UserInfo(ctx, "@chan")
	requireKind(t, err, KindNotAUser)
	_, err = c.ChatInfo(ctx, "42")
	requireKind(t, err, KindNotAChat)
	_, err = c.Members(ctx, "42", 10)
	requireKind(t, err, KindNotAChat)
	_, err = c.Administrators(ctx, "42")
	requireKind(t, err, KindNotAChat)
	assert.Empty(t, inv.calls)
}

func TestUserInfo(t *testing.T) {
	inv := newFakeInvoker().on("users.getFullUser", func(req bin.Encoder) (bin.Encoder, error) {
		assert.Equal(t, &tg.InputUser{UserID: 42, AccessHash: 1}, req.(*tg.UsersGetFullUserRequest).ID)
		return &tg.UsersUserFull{
			FullUser: tg.UserFull{ID: 42, About: "bio"},
			Users:    []tg.UserClass{&tg.User{ID: 42, FirstName: "Ann", Username: "ann", Premium: true}},
		}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "42", userRef(42, 1))

	info, err := c.UserInfo(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.UserInfo{ID: 42, FirstName: "Ann", Username: "ann", About: "bio", Premium: true}, info)
}

func fullChat() *tg.MessagesChatFull {
	return &tg.MessagesChatFull{
		FullChat: &tg.ChatFull{
			ID:    12,
			About: "about",
			Participants: &tg.ChatParticipants{ChatID: 12, Participants: []tg.ChatParticipantClass{
				&tg.ChatParticipantCreator{UserID: 1},
				&tg.ChatParticipantAdmin{UserID: 2, InviterID: 1, Date: testDate},
				&tg.ChatParticipant{UserID: 3, InviterID: 1, Date: testDate},
			}},
		},
		Chats: []tg.ChatClass{&tg.Chat{ID: 12, Title: "team", ParticipantsCount: 3, Photo: &tg.ChatPhotoEmpty{}}},
		Users: []tg.UserClass{
			&tg.User{ID: 1, FirstName: "Owner"},
			&tg.User{ID: 2, FirstName: "Admin"},
			&tg.User{ID: 3, FirstName: "Member"},
		},
	}
}

func TestBasicGroupInfoMembersAndAdmins(t *testing.T) {
	inv := newFakeInvoker().on("messages.getFullChat", func(bin.Encoder) (bin.Encoder, error) {
		return fullChat(), nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-12", chatRef(12))
	ctx := context.Background()

	info, err := c.ChatInfo(ctx, "-12")
	require.NoError(t, err)
	assert.Equal(t, domain.ChatInfo{ID: -12, Title: "team", Type: domain.ChatGroup, Description: "about", MemberCount: 3}, info)

	members, err := c.Members(ctx, "-12", 2)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Owner", members[0].FirstName)
	assert.Equal(t, "Admin", members[1].FirstName)

	admins, err := c.Administrators(ctx, "-12")
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.True(t, admins[0].Creator)
	assert.Equal(t, int64(2), admins[1].ID)
	assert.False(t, admins[1].Creator)
}

func TestChannelAdministrators(t *testing.T) {
	inv := newFakeInvoker().on("channels.getParticipants", func(req bin.Encoder) (bin.Encoder, error) {
		_, ok := req.(*tg.ChannelsGetParticipantsRequest).Filter.(*tg.ChannelParticipantsAdmins)
		assert.True(t, ok)
		return &tg.ChannelsChannelParticipants{
			Count: 2,
			Participants: []tg.ChannelParticipantClass{
				&tg.ChannelParticipantCreator{UserID: 1, Rank: "boss"},
				&tg.ChannelParticipantAdmin{UserID: 2, Date: testDate, Rank: "mod"},
			},
			Users: []tg.UserClass{&tg.User{ID: 1}, &tg.User{ID: 2}},
		}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "@chan", channelRef(5, 9, true))

	admins, err := c.Administrators(context.Background(), "@chan")
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, domain.ChatAdmin{ChatMember: domain.ChatMember{ID: 1}, Creator: true, Rank: "boss"}, admins[0])
	assert.Equal(t, "mod", admins[1].Rank)
}

func TestEditReturnsEditedMessage(t *testing.T) {
	inv := newFakeInvoker().on("messages.editMessage", func(req bin.Encoder) (bin.Encoder, error) {
		r := req.(*tg.MessagesEditMessageRequest)
		return &tg.Updates{Date: testDate, Updates: []tg.UpdateClass{
			&tg.UpdateEditMessage{Message: &tg.Message{
				ID:       r.ID,
				PeerID:   &tg.PeerUser{UserID: 42},
				Date:     testDate - 60,
				EditDate: testDate,
				Message:  r.Message,
			}},
		}}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "42", userRef(42, 1))

	msg, err := c.Edit(context.Background(), EditMessage{Peer: "42", ID: 8, Text: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, 8, msg.ID)
	assert.Equal(t, "fixed", msg.Text)
	require.NotNil(t, msg.Edited)
	assert.Equal(t, int64(testDate), msg.Edited.Unix())
}

func TestUnpinAll(t *testing.T) {
	inv := newFakeInvoker().on("messages.unpinAllMessages", func(bin.Encoder) (bin.Encoder, error) {
		return &tg.MessagesAffectedHistory{Pts: 1, PtsCount: 1}, nil
	})
	c := newTestClient(t, inv)
	seedPeer(t, c, "-12", chatRef(12))

	require.NoError(t, c.Unpin(context.Background(), "-12", 0))
	assert.Equal(t, 1, inv.count("messages.unpinAllMessages"))
}
