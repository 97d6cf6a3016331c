package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgops/internal/domain"
)

func documentMedia(doc tg.DocumentClass) *tg.MessageMediaDocument {
	media := &tg.MessageMediaDocument{}
	media.SetDocument(doc)
	return media
}

func TestNormalizeMessage(t *testing.T) {
	msg := &tg.Message{
		ID:      5,
		PeerID:  &tg.PeerChannel{ChannelID: 9},
		Date:    testDate,
		Message: "hello",
	}
	msg.SetFromID(&tg.PeerUser{UserID: 42})
	msg.SetReplyTo(&tg.MessageReplyHeader{ReplyToMsgID: 4})
	msg.SetMedia(documentMedia(&tg.Document{
		MimeType:   "audio/ogg",
		Size:       321,
		Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true}, &tg.DocumentAttributeFilename{FileName: "v.ogg"}},
	}))

	out, ok, err := normalizeMessage(msg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, out.ID)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, -(channelChatIDOffset + 9), out.ChatID)
	require.NotNil(t, out.FromID)
	assert.Equal(t, int64(42), *out.FromID)
	assert.Equal(t, 4, out.ReplyTo)
	assert.Nil(t, out.Edited)
	assert.Equal(t, &domain.MediaSummary{Type: domain.MediaVoice, FileName: "v.ogg", MimeType: "audio/ogg", Size: 321}, out.Media)
}

func TestNormalizeServiceAndEmpty(t *testing.T) {
	out, ok, err := normalizeMessage(&tg.MessageService{
		ID:     6,
		PeerID: &tg.PeerChat{ChatID: 3},
		Date:   testDate,
		Action: &tg.MessageActionChatAddUser{Users: []int64{1}},
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ChatAddUser", out.Service)
	assert.Equal(t, int64(-3), out.ChatID)

	_, ok, err = normalizeMessage(&tg.MessageEmpty{ID: 7})
	require.NoError(t, err)
	assert.False(t, ok)

	msgs, err := normalizeMessages([]tg.MessageClass{&tg.MessageEmpty{ID: 1}, &tg.Message{ID: 2, PeerID: &tg.PeerUser{UserID: 1}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, msgs[0].ID)
}

func TestNormalizeUnknownRecordsFail(t *testing.T) {
	_, _, err := normalizeMessage(nil)
	requireKind(t, err, KindNormalization)

	_, err = sentMessage(&tg.UpdatesTooLong{}, 1, "x")
	requireKind(t, err, KindNormalization)
}

func TestSentMessageMatchesRandomID(t *testing.T) {
	updates := &tg.Updates{Date: testDate, Updates: []tg.UpdateClass{
		&tg.UpdateMessageID{ID: 70, RandomID: 111},
		&tg.UpdateMessageID{ID: 71, RandomID: 222},
		&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 70, PeerID: &tg.PeerChannel{ChannelID: 1}, Date: testDate, Message: "a"}},
		&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 71, PeerID: &tg.PeerChannel{ChannelID: 1}, Date: testDate, Message: "b"}},
	}}

	out, err := sentMessage(updates, 222, "")
	require.NoError(t, err)
	assert.Equal(t, 71, out.ID)
	assert.Equal(t, "b", out.Text)
}

func TestSummarizeMediaKinds(t *testing.T) {
	for _, tt := range []struct {
		media tg.MessageMediaClass
		want  domain.MediaType
	}{
		{&tg.MessageMediaPhoto{}, domain.MediaPhoto},
		{&tg.MessageMediaGeo{Geo: &tg.GeoPointEmpty{}}, domain.MediaLocation},
		{&tg.MessageMediaContact{}, domain.MediaContact},
		{&tg.MessageMediaDice{}, domain.MediaDice},
		{&tg.MessageMediaUnsupported{}, domain.MediaUnsupported},
		{documentMedia(&tg.Document{Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeSticker{}}}), domain.MediaSticker},
	} {
		got, err := summarizeMedia(tt.media)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Type, "%T", tt.media)
	}

	got, err := summarizeMedia(&tg.MessageMediaEmpty{})
	require.NoError(t, err)
	assert.Nil(t, got)
}
