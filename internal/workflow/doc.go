// Package workflow runs one autosplit invocation end to end.
//
// A Runner takes the loaded configuration, acquires the download lock and a
// fresh scratch directory, builds the fetcher, frame sampler, OCR detector and
// clip exporter, and drives the segmentation loop until the stream ends or the
// context is cancelled. Every closed segment is handed to the exporter and
// recorded in the run journal. Exports still in flight are awaited on a
// context detached from the caller's, so an interrupted run leaves complete
// clips behind.
//
// Tests replace the external tools through Dependencies; production wiring
// leaves it empty and every tool runs as a subprocess.
package workflow
