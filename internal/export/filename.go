package export

import (
	"strconv"
	"strings"

	"autosplit/internal/textutil"
)

const fallbackLabel = "segment"

// FileName builds "<ordinal> - <label>.<ext>". When sanitize is set, unsafe
// characters are replaced and changed reports whether the label was altered.
func FileName(ordinal int, label, ext string, sanitize bool) (name string, changed bool) {
	clean := label
	if sanitize {
		clean = textutil.SanitizeFileName(label)
		if clean == "" {
			clean = fallbackLabel
		}
		changed = clean != label
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "mp4"
	}
	return strconv.Itoa(ordinal) + " - " + clean + "." + ext, changed
}
