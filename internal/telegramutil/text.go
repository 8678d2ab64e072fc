package telegramutil

import (
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EscapeMarkdown escapes user-provided text for the legacy Markdown parse mode.
func EscapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

// IsParseEntitiesError reports whether Telegram rejected a message because its
// Markdown could not be parsed.
func IsParseEntitiesError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't find end of")
}

// SliceUTF16 returns the substring covering [offset, offset+length) measured
// in UTF-16 code units, which is how Telegram reports entity positions.
// Out-of-range bounds are clamped.
func SliceUTF16(text string, offset, length int) string {
	units := utf16.Encode([]rune(text))
	if offset < 0 {
		offset = 0
	}
	if offset > len(units) {
		return ""
	}
	end := offset + length
	if length < 0 || end > len(units) {
		end = len(units)
	}
	return string(utf16.Decode(units[offset:end]))
}

// CutUTF16 removes the [offset, offset+length) range and returns the rest.
func CutUTF16(text string, offset, length int) string {
	units := utf16.Encode([]rune(text))
	if offset < 0 || length <= 0 || offset >= len(units) {
		return text
	}
	end := offset + length
	if end > len(units) {
		end = len(units)
	}
	rest := append(append([]uint16{}, units[:offset]...), units[end:]...)
	return string(utf16.Decode(rest))
}
