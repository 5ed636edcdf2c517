// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns the parsed streams and container format.
// Prober narrows that to the one question the fetcher asks after every
// download round: how many seconds of media does the file hold right now.
package ffprobe
