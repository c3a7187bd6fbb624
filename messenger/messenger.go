// Package messenger delivers operator logs and listing alerts to chat
// channels.
package messenger

import (
	"context"
	"strings"
)

// Transport sends text to the two channels used by the pipeline. Text is
// Telegram Markdown (v1).
type Transport interface {
	// SendLog posts to the operational log channel.
	SendLog(ctx context.Context, text string) error
	// SendResult posts to the results channel.
	SendResult(ctx context.Context, text string) error
}

var markdownReplacer = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// EscapeMarkdown escapes the characters Telegram Markdown treats as
// formatting so that untrusted text renders literally.
func EscapeMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}

// MaxMessageLength is Telegram's limit for one text message, in runes.
const MaxMessageLength = 4096

// Split breaks text into chunks no longer than limit runes, preferring
// line boundaries.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    []rune
	)
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, string(cur))
			cur = cur[:0]
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		if len(cur)+len(r) > limit {
			flush()
		}
		for len(r) > limit {
			chunks = append(chunks, string(r[:limit]))
			r = r[limit:]
		}
		cur = append(cur, r...)
	}
	flush()
	return chunks
}
