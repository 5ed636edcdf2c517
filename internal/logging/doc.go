// Package logging assembles the slog loggers used by autosplit.
//
// It owns the console and JSON handlers, level parsing, the optional JSON log
// file that mirrors console output, and context helpers that tag records with
// the run ID, loop phase, and segment ordinal. NewNop returns a discarding
// logger for tests and wiring code that cannot fail.
package logging
