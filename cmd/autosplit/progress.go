package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"autosplit/internal/segmenter"
)

// progressReporter shows the probe position against the downloaded duration.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer, enabled bool) *progressReporter {
	if !enabled {
		return &progressReporter{}
	}
	bar := progressbar.NewOptions64(1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("probing"),
		progressbar.OptionSetItsString("s"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(250*time.Millisecond),
	)
	return &progressReporter{bar: bar}
}

// Observe updates the bar from a loop state snapshot.
func (p *progressReporter) Observe(state segmenter.State) {
	if p == nil || p.bar == nil {
		return
	}
	p.bar.Describe(describeState(state))
	known := int64(state.Known)
	if known < 1 {
		known = 1
	}
	if p.bar.GetMax64() != known {
		p.bar.ChangeMax64(known)
	}
	position := min(int64(state.Probe), known)
	_ = p.bar.Set64(position)
}

// Finish completes the bar.
func (p *progressReporter) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

func describeState(state segmenter.State) string {
	switch state.Phase {
	case segmenter.PhaseAwaitingData:
		return fmt.Sprintf("%d %s (waiting, stalls %d)", state.Current.Ordinal, state.Current.Label, state.Stalls)
	case segmenter.PhaseFinalizing, segmenter.PhaseDone:
		return "finishing"
	default:
		return fmt.Sprintf("%d %s", state.Current.Ordinal, state.Current.Label)
	}
}
