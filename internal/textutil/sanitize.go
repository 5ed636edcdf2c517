package textutil

import "strings"

// SanitizeFileName makes an OCR label safe to use as a path component.
// Separators and wildcards (/ \ : *) become dashes, shell-hostile characters
// (? " < > |) are dropped, and surrounding whitespace is trimmed.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(strings.Map(safeRune, name))
}

func safeRune(r rune) rune {
	switch r {
	case '/', '\\', ':', '*':
		return '-'
	case '?', '"', '<', '>', '|':
		return -1
	}
	return r
}
