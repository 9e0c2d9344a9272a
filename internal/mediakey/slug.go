package mediakey

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugLen caps slugs so keys stay readable and index-friendly.
const maxSlugLen = 50

// foldDiacritics decomposes characters and strips combining marks, so
// "Amélie" and "Amelie" slug identically.
var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Slug normalizes a title for use inside a key: lowercase, diacritics
// folded, every non-alphanumeric run collapsed to one hyphen, trimmed and
// length-capped. Returns "" for input with no usable characters.
func Slug(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		// Fold failure on odd input is not fatal; slug the raw string.
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	return out
}

// NormalizeTitle reduces a title to its comparison form: lowercase with
// punctuation stripped and whitespace collapsed. Used for match scoring
// and duplicate detection, not for keys.
func NormalizeTitle(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == ':' || r == '.' || r == '_':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// SortTitle derives the sort form of a title by moving nothing and simply
// dropping a leading article. "The Matrix" sorts as "Matrix".
func SortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) && len(title) > len(article) {
			return title[len(article):]
		}
	}
	return title
}
