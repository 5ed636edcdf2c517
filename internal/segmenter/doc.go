// Package segmenter runs the probe/fetch state machine that turns a growing
// recording into labelled, contiguous segments.
//
// The loop advances a probe timestamp by a fixed step, asks the fetcher for
// more media whenever the probe passes the known duration, samples and
// classifies a frame at each probe, and closes the current segment whenever a
// new non-empty label appears. After too many fetch rounds without growth it
// closes the final segment at the last known duration and stops.
//
// All mutable loop data lives in State. Step is a pure-ish transition that
// performs the side effects of exactly one phase, which keeps the machine
// testable with stub collaborators.
package segmenter
