package format

import (
	"html"
	"strconv"
	"strings"
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes every character reserved by Telegram MarkdownV2.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(mdV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeHTML escapes text for Telegram HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// MentionHTML renders a clickable user mention in HTML parse mode.
func MentionHTML(userID int64, name string) string {
	if strings.TrimSpace(name) == "" {
		name = strconv.FormatInt(userID, 10)
	}
	return `<a href="tg://user?id=` + strconv.FormatInt(userID, 10) + `">` + EscapeHTML(name) + `</a>`
}

// Code wraps text in an HTML <code> element.
func Code(text string) string {
	return "<code>" + EscapeHTML(text) + "</code>"
}

// Chunk splits text into pieces of at most limit runes, preferring line breaks.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
