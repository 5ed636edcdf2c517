package segmenter

import "fmt"

// Phase names a loop state.
type Phase string

// Loop phases, in the order a run passes through them.
const (
	PhaseProbing      Phase = "probing"
	PhaseAwaitingData Phase = "awaiting_data"
	PhaseFinalizing   Phase = "finalizing"
	PhaseDone         Phase = "done"
)

// Segment is a labelled span of the recording. End is zero while open.
type Segment struct {
	Ordinal int
	Label   string
	Start   float64
	End     float64
	// Open marks the segment still being recorded when the state was read.
	Open bool
}

// Duration is the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func (s Segment) String() string {
	if s.Open {
		return fmt.Sprintf("#%d %q [%gs, open)", s.Ordinal, s.Label, s.Start)
	}
	return fmt.Sprintf("#%d %q [%gs, %gs)", s.Ordinal, s.Label, s.Start, s.End)
}

// State is threaded through every transition.
type State struct {
	Phase       Phase
	Probe       float64
	Known       float64
	Holding     bool
	Stalls      int
	Current     Segment
	Closed      []Segment
	NextOrdinal int
	MediaPath   string
	Samples     int
	Transitions int
}

// NewState returns the initial state with an open intro segment at zero.
func NewState(introLabel string) State {
	return State{
		Phase:       PhaseProbing,
		Current:     Segment{Ordinal: 1, Label: introLabel, Start: 0},
		NextOrdinal: 2,
	}
}

// Segments returns the closed segments followed by the open one, if any.
func (s State) Segments() []Segment {
	out := append([]Segment(nil), s.Closed...)
	if s.Phase != PhaseDone {
		current := s.Current
		current.Open = true
		out = append(out, current)
	}
	return out
}
