// Package textutil normalizes text that crosses a filesystem or OCR boundary.
//
// CleanOCR reduces raw tesseract output to printable ASCII on a single line so
// labels compare by exact string equality. SanitizeFileName strips characters
// that are unsafe in clip file names.
package textutil
