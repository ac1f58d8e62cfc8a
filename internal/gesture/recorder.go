package gesture

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/imu"
)

// Phase is the recorder session phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdown"
	PhaseRecording Phase = "recording"
	PhaseReview    Phase = "review"
)

// Session is a point-in-time snapshot of the active recording session.
type Session struct {
	GestureID        string  `json:"gesture_id"`
	GestureName      string  `json:"gesture_name"`
	Phase            Phase   `json:"phase"`
	CurrentIndex     int     `json:"current_index"`
	TargetCount      int     `json:"target_count"`
	Repetitions      int     `json:"repetitions"`
	ConsistencyScore float64 `json:"consistency_score"`
}

// RecorderConfig tunes the guided recording workflow.
type RecorderConfig struct {
	// CountdownMs is the countdown duration before each repetition.
	CountdownMs int64
	// TargetCount is the number of repetitions captured per session.
	TargetCount int
	// MaxRepetitionMs caps the duration of a single repetition.
	MaxRepetitionMs int64
	// MinRepetitionMs is the minimum capture duration before the
	// motion-end heuristic may terminate a repetition.
	MinRepetitionMs int64
	// MotionEndWindow is the trailing sample count inspected by the
	// motion-end heuristic.
	MotionEndWindow int
	// MotionEndVariance is the magnitude variance below which the
	// motion is considered ended.
	MotionEndVariance float64
	// DefaultMaxDistance seeds the acceptance distance when a session
	// finalizes with a single repetition and cannot be calibrated.
	DefaultMaxDistance float64
	// DefaultCooldownMs seeds the cooldown of finalized gestures.
	DefaultCooldownMs int64
}

// DefaultRecorderConfig returns the recording workflow defaults.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		CountdownMs:        3000,
		TargetCount:        3,
		MaxRepetitionMs:    3000,
		MinRepetitionMs:    500,
		MotionEndWindow:    15,
		MotionEndVariance:  0.02,
		DefaultMaxDistance: 0.35,
		DefaultCooldownMs:  1000,
	}
}

// Recorder drives the countdown → capture → repeat → review session
// state machine that produces new gesture templates. The countdown
// clock is injected so timing can be controlled in tests; repetition
// boundaries are driven by sample timestamps.
type Recorder struct {
	lib   *Library
	cal   *Calibrator
	cfg   RecorderConfig
	clock func() int64

	phase        Phase
	gestureID    string
	gestureName  string
	currentIndex int
	targetCount  int
	repetitions  []*Template
	consistency  float64
	dtw          DTWOptions

	countdownEndsMs int64
	lastTickSec     int
	repStartMs      int64
	current         []imu.Sample
	sawMotion       bool

	OnPhaseChange         func(Phase)
	OnCountdownTick       func(secondsLeft int)
	OnRepetitionCompleted func(index int, t *Template)
	OnRepetitionDiscarded func(index int)
}

// NewRecorder creates a Recorder writing finalized gestures into lib.
// A nil clock is not allowed; inject time.Now-based milliseconds in
// production and a fake in tests.
func NewRecorder(lib *Library, cal *Calibrator, cfg RecorderConfig, dtw DTWOptions, clock func() int64) *Recorder {
	if cfg.TargetCount < 1 {
		cfg.TargetCount = DefaultRecorderConfig().TargetCount
	}
	if cfg.MotionEndWindow < 2 {
		cfg.MotionEndWindow = DefaultRecorderConfig().MotionEndWindow
	}
	return &Recorder{
		lib:   lib,
		cal:   cal,
		cfg:   cfg,
		dtw:   dtw,
		clock: clock,
		phase: PhaseIdle,
	}
}

// Phase returns the current session phase.
func (r *Recorder) Phase() Phase {
	return r.phase
}

// Active reports whether a session is in progress.
func (r *Recorder) Active() bool {
	return r.phase != PhaseIdle
}

// Session returns a snapshot of the active session. The zero Session
// is returned when idle.
func (r *Recorder) Session() Session {
	if r.phase == PhaseIdle {
		return Session{Phase: PhaseIdle}
	}
	return Session{
		GestureID:        r.gestureID,
		GestureName:      r.gestureName,
		Phase:            r.phase,
		CurrentIndex:     r.currentIndex,
		TargetCount:      r.targetCount,
		Repetitions:      len(r.repetitions),
		ConsistencyScore: r.consistency,
	}
}

// StartSession begins a guided recording session for the given gesture.
// Starting while a session is active is a no-op.
func (r *Recorder) StartSession(gestureID, gestureName string) {
	if r.phase != PhaseIdle {
		return
	}

	r.gestureID = gestureID
	r.gestureName = gestureName
	r.currentIndex = 0
	r.targetCount = r.cfg.TargetCount
	r.repetitions = nil
	r.consistency = 0
	r.enterCountdown()
}

// Feed consumes one live sample. It is a no-op outside countdown and
// recording phases.
func (r *Recorder) Feed(s imu.Sample) {
	switch r.phase {
	case PhaseCountdown:
		r.feedCountdown(s)
	case PhaseRecording:
		r.feedRecording(s)
	}
}

func (r *Recorder) feedCountdown(s imu.Sample) {
	now := r.clock()
	remaining := r.countdownEndsMs - now
	if remaining <= 0 {
		r.beginRepetition(s)
		return
	}

	secLeft := int((remaining + 999) / 1000)
	if secLeft != r.lastTickSec {
		r.lastTickSec = secLeft
		if r.OnCountdownTick != nil {
			r.OnCountdownTick(secLeft)
		}
	}
}

func (r *Recorder) feedRecording(s imu.Sample) {
	r.current = append(r.current, s)
	dur := s.TimestampMs - r.repStartMs

	if dur >= r.cfg.MaxRepetitionMs {
		r.finishRepetition()
		return
	}

	variance := trailingVariance(r.current, r.cfg.MotionEndWindow)
	if variance >= r.cfg.MotionEndVariance {
		r.sawMotion = true
		return
	}
	// Sustained low variance after observed motion ends the repetition.
	if r.sawMotion && dur >= r.cfg.MinRepetitionMs {
		r.finishRepetition()
	}
}

func (r *Recorder) beginRepetition(s imu.Sample) {
	r.setPhase(PhaseRecording)
	r.repStartMs = s.TimestampMs
	r.current = []imu.Sample{s}
	r.sawMotion = false
}

func (r *Recorder) finishRepetition() {
	samples := append([]imu.Sample(nil), r.current...)
	dur := samples[len(samples)-1].TimestampMs - samples[0].TimestampMs

	t := &Template{
		ID:           uuid.NewString(),
		Samples:      samples,
		RecordedAtMs: r.clock(),
	}
	if dur > 0 && len(samples) > 1 {
		t.SampleRateHz = float64(len(samples)-1) * 1000 / float64(dur)
	}

	index := r.currentIndex
	r.repetitions = append(r.repetitions, t)
	r.currentIndex++
	r.current = nil
	r.sawMotion = false

	if r.OnRepetitionCompleted != nil {
		r.OnRepetitionCompleted(index, t)
	}

	if r.currentIndex < r.targetCount {
		r.enterCountdown()
	} else {
		r.enterReview()
	}
}

// DiscardLastRepetition removes the most recently captured repetition.
// Valid in recording and review phases; a no-op with zero repetitions.
func (r *Recorder) DiscardLastRepetition() {
	if r.phase != PhaseRecording && r.phase != PhaseReview {
		return
	}
	if len(r.repetitions) == 0 {
		return
	}

	index := len(r.repetitions) - 1
	r.repetitions = r.repetitions[:index]
	r.currentIndex--

	if r.phase == PhaseReview {
		r.consistency = r.consistencyScore()
	}
	if r.OnRepetitionDiscarded != nil {
		r.OnRepetitionDiscarded(index)
	}
}

// RecordAnother extends the session by one repetition and re-enters
// the countdown. Valid only in the review phase.
func (r *Recorder) RecordAnother() {
	if r.phase != PhaseReview {
		return
	}
	r.targetCount++
	r.enterCountdown()
}

// StopSession unconditionally discards the session and returns to
// idle. Captured repetitions are never auto-committed.
func (r *Recorder) StopSession() {
	if r.phase == PhaseIdle {
		return
	}
	r.reset()
	r.setPhase(PhaseIdle)
}

// FinalizeSession registers the supplied definition verbatim, or
// builds one from the captured repetitions: DTW classifier, every
// repetition as a template, and an initial threshold from the
// calibrator. The session always returns to idle, even on failure.
func (r *Recorder) FinalizeSession(def *Definition) (*Definition, error) {
	if r.phase == PhaseIdle {
		return nil, fmt.Errorf("%w: no active session", ErrInvalidInput)
	}

	defer func() {
		r.reset()
		r.setPhase(PhaseIdle)
	}()

	if def != nil {
		if err := r.lib.Register(def); err != nil {
			return nil, err
		}
		return def, nil
	}

	if len(r.repetitions) == 0 {
		return nil, fmt.Errorf("%w: no repetitions captured", ErrInvalidInput)
	}

	id := r.gestureID
	if id == "" {
		id = uuid.NewString()
	}

	built := &Definition{
		ID:         id,
		Name:       r.gestureName,
		Classifier: ClassifierDTW,
		Templates:  r.repetitions,
		CooldownMs: r.cfg.DefaultCooldownMs,
		Enabled:    true,
	}
	if _, ok := r.cal.CalibrateDefinition(built); !ok {
		built.MaxDistance = r.cfg.DefaultMaxDistance
	}

	if err := r.lib.Register(built); err != nil {
		return nil, err
	}
	return built, nil
}

func (r *Recorder) enterCountdown() {
	r.countdownEndsMs = r.clock() + r.cfg.CountdownMs
	r.lastTickSec = -1
	r.setPhase(PhaseCountdown)
}

func (r *Recorder) enterReview() {
	r.consistency = r.consistencyScore()
	r.setPhase(PhaseReview)
}

func (r *Recorder) setPhase(p Phase) {
	if r.phase == p {
		return
	}
	r.phase = p
	if r.OnPhaseChange != nil {
		r.OnPhaseChange(p)
	}
}

func (r *Recorder) reset() {
	r.gestureID = ""
	r.gestureName = ""
	r.currentIndex = 0
	r.targetCount = 0
	r.repetitions = nil
	r.consistency = 0
	r.current = nil
	r.sawMotion = false
}

// consistencyScore is the mean pairwise DTW similarity across the
// captured repetitions, where similarity of a pair is 1/(1+distance).
// A single repetition scores 1.
func (r *Recorder) consistencyScore() float64 {
	n := len(r.repetitions)
	if n < 2 {
		if n == 0 {
			return 0
		}
		return 1
	}

	var sum float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist, err := DTWDistance(r.repetitions[i].Samples, r.repetitions[j].Samples, r.dtw)
			if err != nil {
				continue
			}
			sum += 1 / (1 + dist)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// trailingVariance computes the variance of the acceleration magnitude
// over the last w samples, or 0 when fewer than w are available.
func trailingVariance(samples []imu.Sample, w int) float64 {
	if len(samples) < w {
		return 0
	}
	tail := samples[len(samples)-w:]

	var sum float64
	for _, s := range tail {
		sum += s.Magnitude()
	}
	mean := sum / float64(w)

	var sq float64
	for _, s := range tail {
		d := s.Magnitude() - mean
		sq += d * d
	}
	return sq / float64(w)
}
