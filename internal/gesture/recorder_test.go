package gesture

import (
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/imu"
)

type fakeClock struct {
	ms int64
}

func (c *fakeClock) now() int64 {
	return c.ms
}

func recorderConfig() RecorderConfig {
	cfg := DefaultRecorderConfig()
	cfg.CountdownMs = 3000
	cfg.TargetCount = 2
	cfg.MaxRepetitionMs = 1000
	return cfg
}

func newTestRecorder(lib *Library, cfg RecorderConfig) (*Recorder, *fakeClock) {
	clk := &fakeClock{}
	cal := NewCalibrator(lib, 0, DTWOptions{Radius: 8})
	return NewRecorder(lib, cal, cfg, DTWOptions{Radius: 8}, clk.now), clk
}

// captureRepetition skips the countdown and feeds a burst lasting the
// full maximum repetition duration.
func captureRepetition(t *testing.T, r *Recorder, clk *fakeClock, startTs int64, ax float64) {
	t.Helper()

	clk.ms += 3000
	r.Feed(imu.Sample{TimestampMs: startTs, AX: ax, AZ: 9.81})
	if r.Phase() != PhaseRecording {
		t.Fatalf("expected recording after countdown, got %s", r.Phase())
	}
	r.Feed(imu.Sample{TimestampMs: startTs + 500, AX: ax, AZ: 9.81})
	r.Feed(imu.Sample{TimestampMs: startTs + 1000, AX: ax, AZ: 9.81})
}

func TestRecorder_StartSessionWhileActiveIsNoOp(t *testing.T) {
	rec, _ := newTestRecorder(NewLibrary(), recorderConfig())

	rec.StartSession("wave", "Wave")
	if rec.Phase() != PhaseCountdown {
		t.Fatalf("expected countdown, got %s", rec.Phase())
	}

	rec.StartSession("other", "Other")
	if got := rec.Session().GestureID; got != "wave" {
		t.Errorf("expected original session to survive, got %q", got)
	}
}

func TestRecorder_CountdownTicks(t *testing.T) {
	rec, clk := newTestRecorder(NewLibrary(), recorderConfig())

	var ticks []int
	rec.OnCountdownTick = func(sec int) { ticks = append(ticks, sec) }

	rec.StartSession("wave", "Wave")

	rec.Feed(imu.Sample{TimestampMs: 0})
	clk.ms = 1200
	rec.Feed(imu.Sample{TimestampMs: 10})
	rec.Feed(imu.Sample{TimestampMs: 20}) // same second, no extra tick
	clk.ms = 2100
	rec.Feed(imu.Sample{TimestampMs: 30})

	want := []int{3, 2, 1}
	if len(ticks) != len(want) {
		t.Fatalf("expected ticks %v, got %v", want, ticks)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("expected ticks %v, got %v", want, ticks)
		}
	}

	clk.ms = 3000
	rec.Feed(imu.Sample{TimestampMs: 40})
	if rec.Phase() != PhaseRecording {
		t.Errorf("expected recording once countdown expires, got %s", rec.Phase())
	}
}

func TestRecorder_CapturesRepetitionsAndEntersReview(t *testing.T) {
	rec, clk := newTestRecorder(NewLibrary(), recorderConfig())

	var phases []Phase
	var completed []int
	rec.OnPhaseChange = func(p Phase) { phases = append(phases, p) }
	rec.OnRepetitionCompleted = func(index int, tpl *Template) {
		completed = append(completed, index)
		if tpl.ID == "" {
			t.Error("expected generated template id")
		}
		if tpl.SampleRateHz != 2 {
			t.Errorf("expected 2 Hz sample rate, got %f", tpl.SampleRateHz)
		}
	}

	rec.StartSession("wave", "Wave")
	captureRepetition(t, rec, clk, 0, 2.0)
	captureRepetition(t, rec, clk, 5000, 3.0)

	if rec.Phase() != PhaseReview {
		t.Fatalf("expected review after target count, got %s", rec.Phase())
	}
	if len(completed) != 2 || completed[0] != 0 || completed[1] != 1 {
		t.Errorf("expected completion indices [0 1], got %v", completed)
	}

	wantPhases := []Phase{PhaseCountdown, PhaseRecording, PhaseCountdown, PhaseRecording, PhaseReview}
	if len(phases) != len(wantPhases) {
		t.Fatalf("expected phases %v, got %v", wantPhases, phases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Fatalf("expected phases %v, got %v", wantPhases, phases)
		}
	}

	sess := rec.Session()
	if sess.Repetitions != 2 {
		t.Errorf("expected 2 repetitions, got %d", sess.Repetitions)
	}
	if sess.ConsistencyScore <= 0 || sess.ConsistencyScore > 1 {
		t.Errorf("expected consistency in (0, 1], got %f", sess.ConsistencyScore)
	}
}

func TestRecorder_MotionEndHeuristic(t *testing.T) {
	cfg := recorderConfig()
	cfg.TargetCount = 1
	cfg.MaxRepetitionMs = 60000
	cfg.MinRepetitionMs = 100
	cfg.MotionEndWindow = 5
	cfg.MotionEndVariance = 0.01
	rec, clk := newTestRecorder(NewLibrary(), cfg)

	rec.StartSession("shake", "Shake")
	clk.ms = 3000

	// A burst of motion followed by stillness
	ts := int64(0)
	for i := 0; i < 20; i++ {
		var ax float64
		if i%2 == 0 {
			ax = 8
		}
		rec.Feed(imu.Sample{TimestampMs: ts, AX: ax})
		ts += 20
	}
	for i := 0; i < 10 && rec.Phase() == PhaseRecording; i++ {
		rec.Feed(imu.Sample{TimestampMs: ts})
		ts += 20
	}

	if rec.Phase() != PhaseReview {
		t.Fatalf("expected stillness to end the repetition, got %s", rec.Phase())
	}
}

func TestRecorder_DiscardLastRepetition(t *testing.T) {
	rec, clk := newTestRecorder(NewLibrary(), recorderConfig())

	var discarded []int
	rec.OnRepetitionDiscarded = func(index int) { discarded = append(discarded, index) }

	// Discard with no session is a no-op
	rec.DiscardLastRepetition()
	if len(discarded) != 0 {
		t.Fatalf("expected no discard callback while idle, got %v", discarded)
	}

	rec.StartSession("wave", "Wave")
	captureRepetition(t, rec, clk, 0, 2.0)
	captureRepetition(t, rec, clk, 5000, 3.0)

	rec.DiscardLastRepetition()
	sess := rec.Session()
	if sess.Repetitions != 1 {
		t.Fatalf("expected 1 repetition after discard, got %d", sess.Repetitions)
	}
	if sess.ConsistencyScore != 1 {
		t.Errorf("expected consistency 1 for a single repetition, got %f", sess.ConsistencyScore)
	}

	rec.DiscardLastRepetition()
	if rec.Session().Repetitions != 0 {
		t.Fatalf("expected 0 repetitions, got %d", rec.Session().Repetitions)
	}

	// Nothing left to discard
	rec.DiscardLastRepetition()
	if len(discarded) != 2 || discarded[0] != 1 || discarded[1] != 0 {
		t.Errorf("expected discard indices [1 0], got %v", discarded)
	}
}

func TestRecorder_RecordAnother(t *testing.T) {
	rec, clk := newTestRecorder(NewLibrary(), recorderConfig())

	rec.StartSession("wave", "Wave")

	// Only valid in review
	rec.RecordAnother()
	if rec.Phase() != PhaseCountdown || rec.Session().TargetCount != 2 {
		t.Fatalf("expected RecordAnother to be a no-op outside review")
	}

	captureRepetition(t, rec, clk, 0, 2.0)
	captureRepetition(t, rec, clk, 5000, 3.0)

	rec.RecordAnother()
	if rec.Phase() != PhaseCountdown {
		t.Fatalf("expected countdown after RecordAnother, got %s", rec.Phase())
	}
	if rec.Session().TargetCount != 3 {
		t.Errorf("expected target count 3, got %d", rec.Session().TargetCount)
	}

	captureRepetition(t, rec, clk, 10000, 2.5)
	if rec.Phase() != PhaseReview {
		t.Errorf("expected review after the extra repetition, got %s", rec.Phase())
	}
	if rec.Session().Repetitions != 3 {
		t.Errorf("expected 3 repetitions, got %d", rec.Session().Repetitions)
	}
}

func TestRecorder_StopSessionDiscards(t *testing.T) {
	lib := NewLibrary()
	rec, clk := newTestRecorder(lib, recorderConfig())

	rec.StartSession("wave", "Wave")
	clk.ms = 3000
	rec.Feed(imu.Sample{TimestampMs: 0, AX: 2})

	rec.StopSession()
	if rec.Active() {
		t.Fatal("expected idle session after stop")
	}
	if sess := rec.Session(); sess.GestureID != "" || sess.Repetitions != 0 {
		t.Errorf("expected zero session snapshot, got %+v", sess)
	}
	if lib.Len() != 0 {
		t.Errorf("expected no gestures committed, got %d", lib.Len())
	}

	if _, err := rec.FinalizeSession(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput finalizing without a session, got %v", err)
	}
}

func TestRecorder_FinalizeBuildsDefinition(t *testing.T) {
	lib := NewLibrary()
	rec, clk := newTestRecorder(lib, recorderConfig())

	rec.StartSession("circle", "Circle")
	captureRepetition(t, rec, clk, 0, 2.0)
	captureRepetition(t, rec, clk, 5000, 3.0)

	def, err := rec.FinalizeSession(nil)
	if err != nil {
		t.Fatal(err)
	}

	if def.ID != "circle" || def.Name != "Circle" {
		t.Errorf("unexpected identity: %q %q", def.ID, def.Name)
	}
	if def.Classifier != ClassifierDTW {
		t.Errorf("expected dtw classifier, got %q", def.Classifier)
	}
	if len(def.Templates) != 2 {
		t.Errorf("expected 2 templates, got %d", len(def.Templates))
	}
	if !def.Enabled {
		t.Error("expected finalized gesture enabled")
	}
	if def.CooldownMs != recorderConfig().DefaultCooldownMs {
		t.Errorf("expected default cooldown, got %d", def.CooldownMs)
	}
	if def.MaxDistance <= 0 {
		t.Errorf("expected calibrated threshold, got %f", def.MaxDistance)
	}

	if _, ok := lib.Get("circle"); !ok {
		t.Error("expected gesture registered")
	}
	if rec.Active() {
		t.Error("expected idle recorder after finalize")
	}
}

func TestRecorder_FinalizeSingleRepetitionUsesDefaultThreshold(t *testing.T) {
	cfg := recorderConfig()
	cfg.TargetCount = 1
	lib := NewLibrary()
	rec, clk := newTestRecorder(lib, cfg)

	rec.StartSession("tap", "Tap")
	captureRepetition(t, rec, clk, 0, 2.0)

	def, err := rec.FinalizeSession(nil)
	if err != nil {
		t.Fatal(err)
	}
	if def.MaxDistance != cfg.DefaultMaxDistance {
		t.Errorf("expected default threshold %f, got %f", cfg.DefaultMaxDistance, def.MaxDistance)
	}
}

func TestRecorder_FinalizeVerbatimDefinition(t *testing.T) {
	lib := NewLibrary()
	rec, clk := newTestRecorder(lib, recorderConfig())

	rec.StartSession("", "")
	captureRepetition(t, rec, clk, 0, 2.0)

	supplied := &Definition{
		ID:         "custom",
		Classifier: ClassifierThreshold,
		Rule:       &ThresholdRule{Axis: "mag", MinPeak: 15},
		Enabled:    true,
	}
	def, err := rec.FinalizeSession(supplied)
	if err != nil {
		t.Fatal(err)
	}
	if def != supplied {
		t.Error("expected the supplied definition to be registered verbatim")
	}
	if _, ok := lib.Get("custom"); !ok {
		t.Error("expected gesture registered")
	}
}

func TestRecorder_FinalizeDuplicateID(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Register(dtwDefinition("wave", 20)); err != nil {
		t.Fatal(err)
	}
	rec, clk := newTestRecorder(lib, recorderConfig())

	rec.StartSession("wave", "Wave")
	captureRepetition(t, rec, clk, 0, 2.0)
	captureRepetition(t, rec, clk, 5000, 3.0)

	if _, err := rec.FinalizeSession(nil); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if rec.Active() {
		t.Error("expected idle recorder even after a failed finalize")
	}
}

func TestRecorder_FinalizeWithoutRepetitions(t *testing.T) {
	rec, _ := newTestRecorder(NewLibrary(), recorderConfig())

	rec.StartSession("wave", "Wave")
	if _, err := rec.FinalizeSession(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if rec.Active() {
		t.Error("expected idle recorder after failed finalize")
	}
}
