// Package fetch keeps a local copy of a remote stream that is still growing.
//
// The Fetcher owns the download directory's media file and the resume marker
// that sits beside it. Each EnsureDurationAtLeast call runs the download tool
// once in continue mode, records the fragment total it reports, writes a
// resume marker when the tool has not left one, and re-probes the duration of
// whatever file is on disk. Callers learn whether the file grew and decide for
// themselves how long to wait before asking again.
package fetch
