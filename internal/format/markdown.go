// Package format turns lightly marked-up text into Telegram message entities,
// so messages never need MarkdownV2 escaping.
package format

import (
	"regexp"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// uses for entity offsets.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// **bold**, `code` or _italic_
var markupRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|`([^`]+?)`|(?:^|\\s)_([^_\\n]+?)_")

// ParseMarkdown strips **bold**, `code` and _italic_ markers from text and
// returns the matching entities in offset order. Anything else is kept as is.
func ParseMarkdown(text string) ParseResult {
	var (
		out      strings.Builder
		entities []tgbotapi.MessageEntity
		last     int
	)
	for _, m := range markupRe.FindAllStringSubmatchIndex(text, -1) {
		var typ string
		var start, end int
		switch {
		case m[2] != -1:
			typ, start, end = "bold", m[2], m[3]
		case m[4] != -1:
			typ, start, end = "code", m[4], m[5]
		default:
			typ, start, end = "italic", m[6], m[7]
		}

		// Keep the whitespace an italic match consumed before its marker.
		prefixEnd := m[0]
		if typ == "italic" {
			prefixEnd = start - 1
		}
		out.WriteString(text[last:prefixEnd])

		inner := text[start:end]
		entities = append(entities, tgbotapi.MessageEntity{
			Type:   typ,
			Offset: UTF16Len(out.String()),
			Length: UTF16Len(inner),
		})
		out.WriteString(inner)
		last = m[1]
	}
	out.WriteString(text[last:])

	return ParseResult{
		Text:     strings.TrimRight(out.String(), " \n"),
		Entities: entities,
	}
}
