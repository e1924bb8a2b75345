// Package normalize implements the text-preprocessing step the Calendar
// Classifier applies before invoking the external model.
package normalize

import (
	"regexp"
	"strings"
)

var (
	urlRe     = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mentionRe = regexp.MustCompile(`@[A-Za-z0-9_]+`)
	channelRe = regexp.MustCompile(`#[A-Za-z0-9_]+`)
	// stripRe removes anything that is not a letter, digit, whitespace, or
	// common punctuation, after placeholders have been substituted.
	stripRe = regexp.MustCompile(`[^a-z0-9\s.,!?'"-]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

const (
	urlPlaceholder     = "urltoken"
	mentionPlaceholder = "usertoken"
	channelPlaceholder = "channeltoken"
)

// Clean lowercases s, collapses URLs/@mentions/#channel-mentions to
// placeholder tokens, strips remaining non-alphanumeric/non-punctuation
// runes, and squashes whitespace. It is idempotent: Clean(Clean(s)) ==
// Clean(s), since placeholders and the surviving character set are both
// fixed points of the transform.
func Clean(s string) string {
	out := strings.ToLower(s)
	out = urlRe.ReplaceAllString(out, urlPlaceholder)
	out = mentionRe.ReplaceAllString(out, mentionPlaceholder)
	out = channelRe.ReplaceAllString(out, channelPlaceholder)
	out = stripRe.ReplaceAllString(out, "")
	// Stripping can join a "www." URL (e.g. "www$.x"), so collapse again.
	out = urlRe.ReplaceAllString(out, urlPlaceholder)
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
