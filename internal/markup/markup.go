// Package markup holds the small amount of HTML handling needed to scrape
// the script directory: tag stripping, entity decoding and integer fields.
package markup

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	entityPattern = regexp.MustCompile(`&#?\w+;`)
)

// Only the entities seen in the script listing are decoded; anything else
// is left as written.
var namedEntities = map[string]string{
	"quot": `"`,
	"amp":  "&",
	"apos": "'",
	"lt":   "<",
	"gt":   ">",
	"nbsp": " ",
}

// StripTags removes every <...> element from s.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// UnescapeEntities decodes named entities and decimal or hex character
// references in a single pass, so "&amp;amp;" becomes "&amp;".
func UnescapeEntities(s string) string {
	return entityPattern.ReplaceAllStringFunc(s, decodeEntity)
}

func decodeEntity(ent string) string {
	body := ent[1 : len(ent)-1]
	if !strings.HasPrefix(body, "#") {
		if v, ok := namedEntities[body]; ok {
			return v
		}
		return ent
	}

	ref := body[1:]
	base := 10
	if strings.HasPrefix(ref, "x") || strings.HasPrefix(ref, "X") {
		ref = ref[1:]
		base = 16
	}
	n, err := strconv.ParseInt(ref, base, 32)
	if err != nil {
		return ent
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return ent
	}
	return string(r)
}

// Text strips tags and decodes entities, the treatment given to every
// free-text cell of the listing.
func Text(s string) string {
	return UnescapeEntities(StripTags(s))
}

// LeadingInt parses the integer prefix of s after leading whitespace and
// returns 0 when there is none. "1234 downloads" yields 1234.
func LeadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n\f\v")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
