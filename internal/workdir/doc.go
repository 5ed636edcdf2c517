// Package workdir owns the on-disk footprint of a single run: the exclusive
// lock that keeps two runs from appending to the same download, and the
// per-run scratch directory for frames, crops and OCR output.
package workdir
