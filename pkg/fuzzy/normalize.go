// Package fuzzy picks the search result that best matches a track description.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// topicSuffix is appended by YouTube to auto-generated artist channels.
const topicSuffix = " - Topic"

// exactPattern compiles a case-insensitive, anchored pattern matching s literally.
func exactPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(normalize(s)) + `$`)
}

// normalize composes unicode so that "é" typed two ways compares equal.
// Invalid UTF-8 becomes U+FFFD so the result is always a valid pattern.
func normalize(s string) string {
	return norm.NFC.String(strings.ToValidUTF8(s, string(utf8.RuneError)))
}

// channelNames lists the channel names an artist's own upload can appear under.
func channelNames(author string) []string {
	return []string{author, author + topicSuffix}
}

// searchQuery builds "<author> - <title>", dropping empty parts.
func searchQuery(author, title string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{author, title} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}
