package telegram

import (
	"strings"

	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

type ParseMode string

const (
	ParseNone     ParseMode = "none"
	ParseMarkdown ParseMode = "markdown"
	ParseHTML     ParseMode = "html"
)

func ParseModeOf(raw string) (ParseMode, error) {
	switch mode := ParseMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "", ParseNone:
		return ParseNone, nil
	case ParseMarkdown, "md", "markdownv2":
		return ParseMarkdown, nil
	case ParseHTML:
		return ParseHTML, nil
	default:
		return "", newError(KindInvalidParameters, nil, "unknown parse mode %q", raw)
	}
}

var markdownParser parser.Parser = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
).Parser()

// formatText converts s to a message body and its entities. ParseNone
// returns s untouched and no entities at all.
func formatText(mode ParseMode, s string) (string, []tg.MessageEntityClass, error) {
	switch mode {
	case "", ParseNone:
		return s, nil, nil
	case ParseHTML:
		var b entity.Builder
		if err := html.HTML(strings.NewReader(s), &b, html.Options{}); err != nil {
			return "", nil, newError(KindInvalidParameters, err, "invalid html text")
		}
		msg, entities := b.Raw()
		return msg, nonEmpty(entities), nil
	case ParseMarkdown:
		var b entity.Builder
		renderMarkdown([]byte(s), &b)
		msg, entities := b.Raw()
		return strings.TrimRight(msg, "\n"), nonEmpty(entities), nil
	default:
		return "", nil, newError(KindInvalidParameters, nil, "unknown parse mode %q", mode)
	}
}

func nonEmpty(entities []tg.MessageEntityClass) []tg.MessageEntityClass {
	if len(entities) == 0 {
		return nil
	}
	return entities
}

func renderMarkdown(source []byte, b *entity.Builder) {
	doc := markdownParser.Parse(text.NewReader(source))
	var open []entity.Token
	push := func() { open = append(open, b.Token()) }
	pop := func(style entity.Formatter) {
		tok := open[len(open)-1]
		open = open[:len(open)-1]
		tok.Apply(b, style)
	}
	write := func(p []byte) { _, _ = b.Write(p) }

	_ = gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		switch node := n.(type) {
		case *gast.Paragraph, *gast.Heading, *gast.List, *gast.Blockquote, *gast.ThematicBreak:
			if entering && n.PreviousSibling() != nil {
				write([]byte("\n\n"))
			}
			if _, heading := node.(*gast.Heading); heading {
				if entering {
					push()
				} else {
					pop(entity.Bold())
				}
			}
		case *gast.ListItem:
			if entering {
				if n.PreviousSibling() != nil {
					write([]byte("\n"))
				}
				write([]byte("• "))
			}
		case *gast.TextBlock:
			if entering && n.PreviousSibling() != nil {
				write([]byte("\n"))
			}
		case *gast.Text:
			if entering {
				write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					write([]byte("\n"))
				}
			}
		case *gast.String:
			if entering {
				write(node.Value)
			}
		case *gast.Emphasis:
			if entering {
				push()
			} else if node.Level >= 2 {
				pop(entity.Bold())
			} else {
				pop(entity.Italic())
			}
		case *east.Strikethrough:
			if entering {
				push()
			} else {
				pop(entity.Strike())
			}
		case *gast.CodeSpan:
			if entering {
				push()
			} else {
				pop(entity.Code())
			}
		case *gast.Link:
			if entering {
				push()
			} else {
				pop(entity.TextURL(string(node.Destination)))
			}
		case *gast.AutoLink:
			if entering {
				write(node.Label(source))
			}
			return gast.WalkSkipChildren, nil
		case *gast.FencedCodeBlock, *gast.CodeBlock:
			if !entering {
				return gast.WalkContinue, nil
			}
			if n.PreviousSibling() != nil {
				write([]byte("\n\n"))
			}
			push()
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				write(line.Value(source))
			}
			var style entity.Formatter = entity.Code()
			if fenced, ok := node.(*gast.FencedCodeBlock); ok {
				if lang := fenced.Language(source); len(lang) > 0 {
					style = entity.Pre(string(lang))
				}
			}
			pop(style)
			return gast.WalkSkipChildren, nil
		}
		return gast.WalkContinue, nil
	})
}
