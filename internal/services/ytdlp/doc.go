// Package ytdlp drives the yt-dlp command line tool for resumable downloads of
// live streams and VODs that are still being produced.
//
// Each Download call is one continue-mode invocation. The client streams the
// verbose output, keeps a transcript, and reports the last fragment total it
// saw so callers can synthesise a resume marker.
package ytdlp
