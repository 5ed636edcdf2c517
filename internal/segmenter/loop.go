package segmenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autosplit/internal/fetch"
	"autosplit/internal/frames"
	"autosplit/internal/logging"
	"autosplit/internal/ocr"
	"autosplit/internal/services"
)

// Fetcher grows the local media file on demand.
type Fetcher interface {
	EnsureDurationAtLeast(ctx context.Context, target float64) (fetch.Outcome, error)
}

// Sampler extracts the frame at a timestamp.
type Sampler interface {
	Extract(ctx context.Context, media string, ts float64) (string, error)
}

// Classifier reads the overlay state from a frame.
type Classifier interface {
	Classify(ctx context.Context, frame string) (ocr.Result, error)
}

// Exporter receives every closed segment.
type Exporter interface {
	ExportSegment(ctx context.Context, media string, seg Segment) error
}

// Observer is called with a copy of the state after every transition.
type Observer func(State)

// Options configures the loop.
type Options struct {
	Step           time.Duration
	StallThreshold int
	Backoff        time.Duration
	IntroLabel     string
	Sleep          func(context.Context, time.Duration) error
	Observer       Observer
	Logger         *slog.Logger
}

// Defaults applied when the matching Options field is zero.
const (
	DefaultStep           = 5 * time.Second
	DefaultStallThreshold = 30
	DefaultBackoff        = 20 * time.Second
	DefaultIntroLabel     = "Intro"
)

// Loop drives the segmentation state machine.
type Loop struct {
	fetcher    Fetcher
	sampler    Sampler
	classifier Classifier
	exporter   Exporter

	step      float64
	threshold int
	backoff   time.Duration
	intro     string
	sleep     func(context.Context, time.Duration) error
	observer  Observer
	logger    *slog.Logger
}

// New constructs a Loop.
func New(f Fetcher, s Sampler, c Classifier, e Exporter, opts Options) (*Loop, error) {
	if f == nil || s == nil || c == nil || e == nil {
		return nil, errors.New("segmenter: fetcher, sampler, classifier and exporter are required")
	}
	step := opts.Step
	if step <= 0 {
		step = DefaultStep
	}
	threshold := opts.StallThreshold
	if threshold <= 0 {
		threshold = DefaultStallThreshold
	}
	backoff := opts.Backoff
	if backoff < 0 {
		backoff = 0
	}
	intro := opts.IntroLabel
	if intro == "" {
		intro = DefaultIntroLabel
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = services.Sleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		fetcher:    f,
		sampler:    s,
		classifier: c,
		exporter:   e,
		step:       step.Seconds(),
		threshold:  threshold,
		backoff:    backoff,
		intro:      intro,
		sleep:      sleep,
		observer:   opts.Observer,
		logger:     logging.NewComponentLogger(logger, "segmenter"),
	}, nil
}

// Run performs the initial fetch and steps until DONE or a fatal error. The
// returned state is valid in both cases.
func (l *Loop) Run(ctx context.Context) (State, error) {
	state := NewState(l.intro)

	outcome, err := l.fetcher.EnsureDurationAtLeast(ctx, 0)
	if err != nil {
		return state, fmt.Errorf("initial download: %w", err)
	}
	state.Known = outcome.Duration
	state.MediaPath = outcome.MediaPath
	l.logger.Info("initial download complete",
		logging.String(logging.FieldEventType, "initial_fetch"),
		logging.Float64("known_seconds", state.Known),
		logging.String("media", state.MediaPath),
	)
	l.notify(state)

	for state.Phase != PhaseDone {
		next, err := l.Step(ctx, state)
		if err != nil {
			return next, err
		}
		state = next
		l.notify(state)
	}
	return state, nil
}

func (l *Loop) notify(state State) {
	if l.observer != nil {
		l.observer(state)
	}
}

// Step performs one transition.
func (l *Loop) Step(ctx context.Context, state State) (State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}
	ctx = services.WithPhase(ctx, string(state.Phase))
	switch state.Phase {
	case PhaseProbing:
		return l.probe(ctx, state)
	case PhaseAwaitingData:
		return l.await(ctx, state)
	case PhaseFinalizing:
		return l.finalize(ctx, state)
	case PhaseDone:
		return state, nil
	default:
		return state, fmt.Errorf("segmenter: unknown phase %q", state.Phase)
	}
}

func (l *Loop) probe(ctx context.Context, state State) (State, error) {
	if !state.Holding {
		state.Probe += l.step
	}
	if state.Probe > state.Known {
		state.Phase = PhaseAwaitingData
		state.Holding = true
		return state, nil
	}
	state.Holding = false
	state.Samples++

	result, err := l.sample(ctx, state)
	if err != nil {
		return state, err
	}
	if !result.OverlayPresent {
		return state, nil
	}
	if result.Label == "" || result.Label == state.Current.Label {
		return state, nil
	}

	l.logger.Info("label change detected",
		logging.String(logging.FieldEventType, "transition"),
		logging.Float64(logging.FieldProbe, state.Probe),
		logging.String("previous", state.Current.Label),
		logging.String("label", result.Label),
	)
	closed := state.Current
	closed.End = state.Probe
	if err := l.emit(ctx, &state, closed); err != nil {
		return state, err
	}
	state.Current = Segment{Ordinal: state.NextOrdinal, Label: result.Label, Start: state.Probe}
	state.NextOrdinal++
	state.Transitions++
	return state, nil
}

// sample returns an empty result for any soft failure so the probe counts as
// "no signal". Missing binaries and cancellation are fatal.
func (l *Loop) sample(ctx context.Context, state State) (ocr.Result, error) {
	frame, err := l.sampler.Extract(ctx, state.MediaPath, state.Probe)
	if err == nil {
		var result ocr.Result
		result, err = l.classifier.Classify(ctx, frame)
		if err == nil {
			return result, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ocr.Result{}, ctxErr
	}
	if services.IsToolMissing(err) {
		return ocr.Result{}, err
	}
	level := slog.LevelWarn
	if errors.Is(err, frames.ErrFrameUnavailable) {
		level = slog.LevelDebug
	}
	l.logger.Log(ctx, level, "probe produced no signal",
		logging.Float64(logging.FieldProbe, state.Probe),
		logging.Error(err),
	)
	return ocr.Result{}, nil
}

func (l *Loop) await(ctx context.Context, state State) (State, error) {
	outcome, err := l.fetcher.EnsureDurationAtLeast(ctx, state.Probe)
	if err != nil {
		return state, err
	}
	if outcome.MediaPath != "" {
		state.MediaPath = outcome.MediaPath
	}
	if outcome.Duration > state.Known {
		state.Known = outcome.Duration
	}
	if outcome.Grew {
		state.Stalls = 0
		state.Phase = PhaseProbing
		return state, nil
	}

	state.Stalls++
	l.logger.Info("no new media",
		logging.String(logging.FieldEventType, "stall"),
		logging.Int("stalls", state.Stalls),
		logging.Int("threshold", l.threshold),
		logging.Float64(logging.FieldProbe, state.Probe),
		logging.Float64("known_seconds", state.Known),
	)
	if state.Stalls > l.threshold {
		state.Phase = PhaseFinalizing
		return state, nil
	}
	if err := l.sleep(ctx, l.backoff); err != nil {
		return state, err
	}
	return state, nil
}

func (l *Loop) finalize(ctx context.Context, state State) (State, error) {
	closed := state.Current
	closed.End = max(state.Known, state.Current.Start)
	l.logger.Info("stream appears to have ended; closing final segment",
		logging.String(logging.FieldEventType, "finalize"),
		logging.Int(logging.FieldSegment, closed.Ordinal),
		logging.String("label", closed.Label),
		logging.Float64("end_seconds", closed.End),
	)
	if err := l.emit(ctx, &state, closed); err != nil {
		return state, err
	}
	state.Phase = PhaseDone
	return state, nil
}

func (l *Loop) emit(ctx context.Context, state *State, seg Segment) error {
	state.Closed = append(state.Closed, seg)
	if err := l.exporter.ExportSegment(services.WithSegment(ctx, seg.Ordinal), state.MediaPath, seg); err != nil {
		return fmt.Errorf("export segment %d: %w", seg.Ordinal, err)
	}
	return nil
}
