package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	absoluteURLInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	// Telegram bot tokens appear as "<bot id>:<secret>", usually inside the
	// API path as /bot<token>/method.
	botTokenInPathRE = regexp.MustCompile(`/bot\d+:[A-Za-z0-9_-]+`)
	botTokenRE       = regexp.MustCompile(`\b\d{5,}:[A-Za-z0-9_-]{30,}\b`)
)

const redacted = "[redacted]"

// FormatErrorForDisplay sanitizes error text before it is logged or posted
// to a chat.
func FormatErrorForDisplay(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeErrorText(err.Error())
}

// SanitizeErrorText drops URL hosts, redacts secret query values and masks
// Telegram bot tokens.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := absoluteURLInTextRE.ReplaceAllStringFunc(raw, sanitizeURLInText)
	out = botTokenInPathRE.ReplaceAllString(out, "/bot"+redacted)
	return botTokenRE.ReplaceAllString(out, redacted)
}

func sanitizeURLInText(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if q := redactSensitiveQuery(u.Query()); q != "" {
		path += "?" + q
	}
	if frag := u.EscapedFragment(); frag != "" {
		path += "#" + frag
	}
	return path
}

func redactSensitiveQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	for k := range q {
		if isSensitiveQueryKey(k) {
			q.Set(k, redacted)
		}
	}
	return q.Encode()
}

func isSensitiveQueryKey(key string) bool {
	n := strings.ToLower(strings.TrimSpace(key))
	n = strings.NewReplacer("-", "", "_", "").Replace(n)
	if n == "" {
		return false
	}
	if n == "key" {
		return true
	}
	for _, part := range []string{"apikey", "authorization", "token", "secret", "password"} {
		if strings.Contains(n, part) {
			return true
		}
	}
	return false
}
