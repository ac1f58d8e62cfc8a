// Package engine provides the gesture engine façade: lifecycle
// management, sample ingestion routing, and diagnostics.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/event"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/imu"
)

// Lifecycle sentinel errors.
var (
	// ErrDisposed is returned by every mutating call after Dispose.
	ErrDisposed = errors.New("engine disposed")
	// ErrPaused is returned when starting a paused engine; Resume first.
	ErrPaused = errors.New("engine paused")
)

// State is the engine lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateArmed     State = "armed"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateDisposed  State = "disposed"
)

// Config holds the engine tunables.
type Config struct {
	// BufferCapacity is the sample ring size.
	BufferCapacity int
	// ActivityWindow is the trailing window of the activity classifier.
	ActivityWindow int
	// ActivityThresholds are the activity band boundaries.
	ActivityThresholds imu.ActivityThresholds
	// Recognizer tunes the recognition policy.
	Recognizer gesture.RecognizerConfig
	// Recorder tunes the guided recording workflow.
	Recorder gesture.RecorderConfig
	// CalibrationMargin is the safety factor for derived thresholds.
	CalibrationMargin float64
	// Clock supplies the current time in milliseconds. Defaults to
	// the wall clock; inject a fake in tests.
	Clock func() int64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:     256,
		ActivityWindow:     32,
		ActivityThresholds: imu.DefaultActivityThresholds(),
		Recognizer:         gesture.DefaultRecognizerConfig(),
		Recorder:           gesture.DefaultRecorderConfig(),
		CalibrationMargin:  gesture.DefaultCalibrationMargin,
	}
}

// Diagnostics is a pure snapshot read of the engine internals.
type Diagnostics struct {
	State                 State             `json:"state"`
	BufferLength          int               `json:"buffer_length"`
	BufferCapacity        int               `json:"buffer_capacity"`
	Activity              imu.ActivityLevel `json:"activity"`
	ActivityVariance      float64           `json:"activity_variance"`
	TotalSamplesProcessed int64             `json:"total_samples_processed"`
	GestureCount          int               `json:"gesture_count"`
	Session               gesture.Session   `json:"session"`
	FPMetrics             gesture.FPMetrics `json:"fp_metrics"`
}

// RepetitionCompleted is the payload of recordingCompleted events.
type RepetitionCompleted struct {
	Index   int `json:"index"`
	Samples int `json:"samples"`
}

// Engine is the gesture engine façade. All operations run to
// completion synchronously on the caller's goroutine; the internal
// lock only serializes concurrent callers and diagnostic reads.
// Event handlers fire on the calling goroutine and must not call back
// into mutating engine methods.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	state     State
	prevState State // state to restore after pause
	disposed  bool

	buf        *imu.Buffer
	activity   *imu.ActivityClassifier
	lib        *gesture.Library
	recognizer *gesture.Recognizer
	recorder   *gesture.Recorder
	calibrator *gesture.Calibrator
	bus        *event.Bus
	clock      func() int64

	resumeAfterRecording State
	totalSamples         int64
}

// New creates an Engine with the given configuration.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = def.BufferCapacity
	}
	if cfg.ActivityWindow <= 0 {
		cfg.ActivityWindow = def.ActivityWindow
	}
	if cfg.ActivityThresholds == (imu.ActivityThresholds{}) {
		cfg.ActivityThresholds = def.ActivityThresholds
	}
	if cfg.Clock == nil {
		cfg.Clock = func() int64 { return time.Now().UnixMilli() }
	}

	e := &Engine{
		cfg:      cfg,
		state:    StateIdle,
		buf:      imu.NewBuffer(cfg.BufferCapacity),
		activity: imu.NewActivityClassifier(cfg.ActivityWindow, cfg.ActivityThresholds),
		lib:      gesture.NewLibrary(),
		bus:      event.NewBus(),
		clock:    cfg.Clock,
	}

	e.calibrator = gesture.NewCalibrator(e.lib, cfg.CalibrationMargin, cfg.Recognizer.DTW)
	e.recognizer = gesture.NewRecognizer(e.lib, cfg.Recognizer)
	e.recorder = gesture.NewRecorder(e.lib, e.calibrator, cfg.Recorder, cfg.Recognizer.DTW, e.clock)

	e.wireEvents()
	return e
}

// wireEvents forwards component callbacks onto the event bus.
func (e *Engine) wireEvents() {
	e.activity.OnChange = func(ctx imu.ActivityContext) {
		e.bus.Publish(event.TopicActivityChanged, ctx)
	}

	e.recognizer.OnResult = func(res gesture.Result) {
		e.bus.Publish(event.TopicResult, res)
	}
	e.recognizer.OnGesture = func(res gesture.Result) {
		e.bus.Publish(event.TopicGesture, res)
	}
	e.recognizer.OnArmedChange = func(armed bool) {
		// Armed and listening are the same lifecycle slot; reflect
		// the recognizer's arming in the engine state.
		if e.state == StateListening || e.state == StateArmed {
			if armed {
				e.setState(StateArmed)
			} else {
				e.setState(StateListening)
			}
		}
		e.bus.Publish(event.TopicArmedStateChanged, armed)
	}
	e.recognizer.OnRecalibrationNeeded = func(rate float64) {
		e.bus.Publish(event.TopicRecalibrationNeeded, rate)
	}

	e.recorder.OnPhaseChange = func(p gesture.Phase) {
		e.bus.Publish(event.TopicPhaseChanged, p)
	}
	e.recorder.OnCountdownTick = func(secondsLeft int) {
		e.bus.Publish(event.TopicCountdownTick, secondsLeft)
	}
	e.recorder.OnRepetitionCompleted = func(index int, t *gesture.Template) {
		e.bus.Publish(event.TopicRecordingCompleted, RepetitionCompleted{
			Index:   index,
			Samples: t.Len(),
		})
	}
	e.recorder.OnRepetitionDiscarded = func(index int) {
		e.bus.Publish(event.TopicRepetitionDiscarded, index)
	}
}

// Bus returns the engine event bus.
func (e *Engine) Bus() *event.Bus {
	return e.bus
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start enables listening. A no-op when already listening or recording.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	switch e.state {
	case StateListening, StateArmed, StateRecording:
		return nil
	case StatePaused:
		return fmt.Errorf("cannot start: %w", ErrPaused)
	}

	if e.recognizer.Armed() {
		e.setState(StateArmed)
	} else {
		e.setState(StateListening)
	}
	return nil
}

// Stop disables listening and returns to idle. Buffer contents are
// kept. A no-op when already idle.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if e.state == StateIdle {
		return nil
	}
	if e.recorder.Active() {
		e.recorder.StopSession()
	}
	e.setState(StateIdle)
	return nil
}

// Pause suspends processing without discarding buffer or session
// state. A no-op when already paused.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if e.state == StatePaused {
		return nil
	}
	e.prevState = e.state
	e.setState(StatePaused)
	return nil
}

// Resume restores the state active before Pause.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if e.state != StatePaused {
		return nil
	}
	e.setState(e.prevState)
	return nil
}

// Dispose releases resources and transitions to the terminal disposed
// state. Any further mutating call fails with ErrDisposed.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if e.recorder.Active() {
		e.recorder.StopSession()
	}
	e.buf.Clear()
	e.activity.Reset()
	e.disposed = true
	e.setState(StateDisposed)
	return nil
}

// FeedSamples is the sole ingestion entry point. Samples must arrive
// in strictly increasing timestamp order; the engine never reorders.
// While paused or disposed this is a no-op (disposed additionally
// fails). Samples are buffered and classified in every other state;
// recognition runs only while listening, recording only during a
// session.
func (e *Engine) FeedSamples(samples []imu.Sample) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if e.state == StatePaused || len(samples) == 0 {
		return nil
	}

	for _, s := range samples {
		e.buf.Push(s)
		e.activity.Feed(s)
		e.totalSamples++

		if e.state == StateRecording {
			e.recorder.Feed(s)
		}
	}

	if e.state == StateListening || e.state == StateArmed {
		nowMs := samples[len(samples)-1].TimestampMs
		e.recognizer.Scan(e.buf, nowMs)
	}
	return nil
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.bus.Publish(event.TopicStateChanged, s)
}

func (e *Engine) publishError(err error) {
	e.bus.Publish(event.TopicError, err.Error())
}
