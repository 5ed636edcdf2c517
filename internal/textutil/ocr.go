package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldWhitespace = runes.Map(func(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\v':
		return ' '
	}
	return r
})

var dropUnprintable = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII || unicode.IsControl(r)
}))

// CleanOCR returns the printable ASCII content of raw OCR output. Compatibility
// forms are decomposed first so accented letters keep their base character.
// Line breaks and tabs become single spaces; form feeds and other control
// characters are dropped.
func CleanOCR(raw string) string {
	if raw == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, foldWhitespace, dropUnprintable)
	out, _, err := transform.String(t, raw)
	if err != nil {
		out = asciiOnly(raw)
	}
	return strings.Join(strings.Fields(out), " ")
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && !unicode.IsControl(r) {
			b.WriteRune(r)
		} else if r == '\n' || r == '\t' {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
