package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeOf(t *testing.T) {
	for raw, want := range map[string]ParseMode{
		"":         ParseNone,
		"none":     ParseNone,
		"Markdown": ParseMarkdown,
		"md":       ParseMarkdown,
		"HTML":     ParseHTML,
	} {
		got, err := ParseModeOf(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseModeOf("bbcode")
	requireKind(t, err, KindInvalidParameters)
}

func TestFormatTextNoneIsVerbatim(t *testing.T) {
	const s = "**a** <i>b</i> `c`"
	text, entities, err := formatText(ParseNone, s)
	require.NoError(t, err)
	assert.Equal(t, s, text)
	assert.Nil(t, entities)
}

func TestFormatTextHTML(t *testing.T) {
	text, entities, err := formatText(ParseHTML, "<b>hi</b> there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
	assert.Equal(t, []tg.MessageEntityClass{&tg.MessageEntityBold{Offset: 0, Length: 2}}, entities)
}

func TestFormatTextMarkdownLinkAndCode(t *testing.T) {
	text, entities, err := formatText(ParseMarkdown, "see [docs](https://example.com) and `x`")
	require.NoError(t, err)
	assert.Equal(t, "see docs and x", text)
	assert.Equal(t, []tg.MessageEntityClass{
		&tg.MessageEntityTextURL{Offset: 4, Length: 4, URL: "https://example.com"},
		&tg.MessageEntityCode{Offset: 13, Length: 1},
	}, entities)
}

func TestFormatTextMarkdownPlainHasNoEntities(t *testing.T) {
	text, entities, err := formatText(ParseMarkdown, "just words")
	require.NoError(t, err)
	assert.Equal(t, "just words", text)
	assert.Nil(t, entities)
}
