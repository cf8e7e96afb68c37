// Package server applies markup escaping and vocabulary censorship to
// message text before it is stored or relayed.
package server

import (
	"html"
	"regexp"
	"strings"
)

// defaultBannedWords is the built-in multi-language disallowed vocabulary.
// Deployments extend it through the BANNED_WORDS configuration setting.
var defaultBannedWords = []string{
	// English
	"fuck", "shit", "bitch", "asshole", "bastard", "dick", "cunt", "whore",
	// Spanish
	"mierda", "puta", "cabron", "joder", "gilipollas",
	// French
	"merde", "putain", "connard", "salope",
	// German
	"scheisse", "arschloch", "fotze",
	// Italian / Portuguese
	"cazzo", "stronzo", "merda", "caralho",
	// Russian (cyrillic and transliterated)
	"сука", "блядь", "хуй", "пизда", "говно", "suka", "blyat",
}

// wordRuns isolates letter/digit runs so censorship works across scripts and
// ignores surrounding punctuation.
var wordRuns = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Moderator escapes markup-significant characters and censors disallowed
// vocabulary. Both passes are total; Clean never fails.
type Moderator struct {
	banned map[string]struct{}
}

// NewModerator builds a moderator over the default word list plus any
// deployment-specific additions. Matching is case-insensitive.
func NewModerator(extra []string) *Moderator {
	banned := make(map[string]struct{}, len(defaultBannedWords)+len(extra))
	for _, w := range defaultBannedWords {
		banned[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range extra {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			banned[w] = struct{}{}
		}
	}
	return &Moderator{banned: banned}
}

// Clean runs both moderation passes over raw text. It returns the sanitized
// and censored text, and ok=false when nothing but censored tokens and
// whitespace remains, in which case the message must be dropped without
// feedback to the sender.
func (m *Moderator) Clean(raw string) (string, bool) {
	escaped := html.EscapeString(raw)

	censored := wordRuns.ReplaceAllStringFunc(escaped, func(w string) string {
		if m.isBanned(w) {
			return maskWord(w)
		}
		return w
	})

	// The drop decision ignores censored tokens entirely: a message made of
	// nothing but disallowed vocabulary vanishes.
	stripped := wordRuns.ReplaceAllStringFunc(escaped, func(w string) string {
		if m.isBanned(w) {
			return ""
		}
		return w
	})

	return censored, strings.TrimSpace(stripped) != ""
}

func (m *Moderator) isBanned(word string) bool {
	_, ok := m.banned[strings.ToLower(word)]
	return ok
}

// maskWord keeps the first character and masks the remainder, so readers can
// tell something was censored without seeing what.
func maskWord(w string) string {
	runes := []rune(w)
	if len(runes) <= 1 {
		return "*"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}
