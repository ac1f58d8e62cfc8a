package gesture

import (
	"testing"

	"github.com/ayusman/mudra/internal/imu"
)

func fillBuffer(samples []imu.Sample) *imu.Buffer {
	buf := imu.NewBuffer(len(samples) * 2)
	for _, s := range samples {
		buf.Push(s)
	}
	return buf
}

func recognizerConfig() RecognizerConfig {
	cfg := DefaultRecognizerConfig()
	cfg.ArmingDelayMs = 0
	return cfg
}

func TestRecognizer_SelfMatchAccepted(t *testing.T) {
	lib := NewLibrary()
	template := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "swipe-right",
		Name:        "Swipe Right",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: template}},
		MaxDistance: 0.2,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())

	var gestures []Result
	var results []Result
	rec.OnGesture = func(r Result) { gestures = append(gestures, r) }
	rec.OnResult = func(r Result) { results = append(results, r) }

	res := rec.Scan(fillBuffer(template), 400)
	if res == nil {
		t.Fatal("expected a result for matching window")
	}

	if !res.Accepted {
		t.Errorf("expected acceptance, got rejection: %s", res.RejectionReason)
	}
	if res.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 for self match, got %f", res.Confidence)
	}
	if res.GestureID != "swipe-right" {
		t.Errorf("expected swipe-right, got %q", res.GestureID)
	}
	if len(gestures) != 1 {
		t.Errorf("expected 1 gesture event, got %d", len(gestures))
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result event, got %d", len(results))
	}
}

func TestRecognizer_BelowThreshold(t *testing.T) {
	lib := NewLibrary()
	template := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "swipe-right",
		Name:        "Swipe Right",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: template}},
		MaxDistance: 0.2,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())

	var gestures []Result
	rec.OnGesture = func(r Result) { gestures = append(gestures, r) }

	// All-zero window is far from the wave template
	zeros := make([]imu.Sample, 40)
	for i := range zeros {
		zeros[i] = imu.Sample{TimestampMs: int64(i) * 10}
	}

	res := rec.Scan(fillBuffer(zeros), 400)
	if res == nil {
		t.Fatal("expected a result")
	}

	if res.Accepted {
		t.Error("expected rejection for distant window")
	}
	if res.RejectionReason != RejectBelowThreshold {
		t.Errorf("expected below_threshold, got %q", res.RejectionReason)
	}
	if len(gestures) != 0 {
		t.Errorf("expected no gesture event on rejection, got %d", len(gestures))
	}
}

func TestRecognizer_CooldownBlocksSecondAcceptance(t *testing.T) {
	lib := NewLibrary()
	template := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "swipe-right",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: template}},
		MaxDistance: 0.2,
		CooldownMs:  1000,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())
	buf := fillBuffer(template)

	first := rec.Scan(buf, 400)
	if first == nil || !first.Accepted {
		t.Fatalf("expected first scan accepted, got %+v", first)
	}

	// Continuous matching input within the cooldown window
	second := rec.Scan(buf, 900)
	if second == nil {
		t.Fatal("expected a result within cooldown")
	}
	if second.Accepted {
		t.Error("expected rejection within cooldown")
	}
	if second.RejectionReason != RejectInCooldown {
		t.Errorf("expected in_cooldown, got %q", second.RejectionReason)
	}

	// Past the cooldown the gesture is accepted again
	third := rec.Scan(buf, 1500)
	if third == nil || !third.Accepted {
		t.Fatalf("expected acceptance after cooldown, got %+v", third)
	}
}

func TestRecognizer_CooldownPerGesture(t *testing.T) {
	lib := NewLibrary()
	wave := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "wave",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: wave}},
		MaxDistance: 0.2,
		CooldownMs:  5000,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := lib.Register(&Definition{
		ID:         "shake",
		Classifier: ClassifierThreshold,
		Rule:       &ThresholdRule{Axis: "x", MinPeak: 20},
		CooldownMs: 5000,
		Enabled:    true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())

	// Accept the wave first
	if res := rec.Scan(fillBuffer(wave), 400); res == nil || !res.Accepted {
		t.Fatalf("expected wave accepted, got %+v", res)
	}

	// A hard shake fires the threshold gesture even though the wave
	// gesture is cooling down
	shake := make([]imu.Sample, 40)
	for i := range shake {
		shake[i] = imu.Sample{TimestampMs: int64(i) * 10, AX: 40}
	}
	res := rec.Scan(fillBuffer(shake), 800)
	if res == nil || !res.Accepted {
		t.Fatalf("expected shake accepted, got %+v", res)
	}
	if res.GestureID != "shake" {
		t.Errorf("expected shake, got %q", res.GestureID)
	}
}

func TestRecognizer_ArmingDelay(t *testing.T) {
	lib := NewLibrary()
	template := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "swipe-right",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: template}},
		MaxDistance: 0.2,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := recognizerConfig()
	cfg.ArmingDelayMs = 300
	rec := NewRecognizer(lib, cfg)

	var armedChanges []bool
	rec.OnArmedChange = func(armed bool) { armedChanges = append(armedChanges, armed) }

	buf := fillBuffer(template)

	if res := rec.Scan(buf, 400); res == nil || !res.Accepted {
		t.Fatalf("expected first scan accepted, got %+v", res)
	}
	if rec.Armed() {
		t.Error("expected recognizer disarmed after acceptance")
	}

	// Still inside the arming delay: no scan happens at all
	if res := rec.Scan(buf, 500); res != nil {
		t.Errorf("expected nil while disarmed, got %+v", res)
	}

	// Past the delay the recognizer re-arms, scans again, and the
	// second acceptance disarms it once more
	res := rec.Scan(buf, 800)
	if res == nil || !res.Accepted {
		t.Fatalf("expected acceptance after re-arming, got %+v", res)
	}
	if rec.Armed() {
		t.Error("expected recognizer disarmed again after the second acceptance")
	}

	want := []bool{false, true, false}
	if len(armedChanges) != len(want) {
		t.Fatalf("expected armed changes %v, got %v", want, armedChanges)
	}
	for i := range want {
		if armedChanges[i] != want[i] {
			t.Fatalf("expected armed changes %v, got %v", want, armedChanges)
		}
	}
}

func TestRecognizer_EmptyLibraryIsNoOp(t *testing.T) {
	lib := NewLibrary()
	rec := NewRecognizer(lib, recognizerConfig())

	var results []Result
	rec.OnResult = func(r Result) { results = append(results, r) }

	if res := rec.Scan(fillBuffer(waveSamples(40, 5.0)), 400); res != nil {
		t.Errorf("expected nil result for empty library, got %+v", res)
	}
	if len(results) != 0 {
		t.Errorf("expected no result events, got %d", len(results))
	}
}

func TestRecognizer_ShortWindowIsNoOp(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Register(dtwDefinition("swipe-right", 40)); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())

	buf := imu.NewBuffer(64)
	for _, s := range waveSamples(5, 5.0) {
		buf.Push(s)
	}

	if res := rec.Scan(buf, 100); res != nil {
		t.Errorf("expected nil result below minimum window, got %+v", res)
	}
}

func TestRecognizer_TemplateShorterThanMinWindow(t *testing.T) {
	lib := NewLibrary()
	short := waveSamples(8, 5.0)
	if err := lib.Register(&Definition{
		ID:          "tap",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: short}},
		MaxDistance: 0.2,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := recognizerConfig()
	cfg.MinWindow = 10 // longer than the only template
	rec := NewRecognizer(lib, cfg)

	res := rec.Scan(fillBuffer(short), 100)
	if res == nil || !res.Accepted {
		t.Fatalf("expected short-template gesture recognized, got %+v", res)
	}
	if res.GestureID != "tap" {
		t.Errorf("expected tap, got %q", res.GestureID)
	}
}

func TestRecognizer_BestCandidateWins(t *testing.T) {
	lib := NewLibrary()
	wave := waveSamples(40, 5.0)
	// Same classifier, different exemplars; the exact match must win
	if err := lib.Register(&Definition{
		ID:          "near",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: waveSamples(40, 4.0)}},
		MaxDistance: 5.0,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := lib.Register(&Definition{
		ID:          "exact",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: wave}},
		MaxDistance: 5.0,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())

	res := rec.Scan(fillBuffer(wave), 400)
	if res == nil || !res.Accepted {
		t.Fatalf("expected acceptance, got %+v", res)
	}
	if res.GestureID != "exact" {
		t.Errorf("expected best-scoring gesture to win, got %q", res.GestureID)
	}
}

func TestRecognizer_DisabledGesturesSkipped(t *testing.T) {
	lib := NewLibrary()
	wave := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "disabled",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: wave}},
		MaxDistance: 0.2,
		Enabled:     false,
	}); err != nil {
		t.Fatal(err)
	}

	rec := NewRecognizer(lib, recognizerConfig())

	if res := rec.Scan(fillBuffer(wave), 400); res != nil {
		t.Errorf("expected nil result when all gestures are disabled, got %+v", res)
	}
}

func TestRecognizer_FalsePositiveRateTriggersRecalibration(t *testing.T) {
	lib := NewLibrary()
	template := waveSamples(40, 5.0)
	if err := lib.Register(&Definition{
		ID:          "swipe-right",
		Classifier:  ClassifierDTW,
		Templates:   []*Template{{ID: "p", Samples: template}},
		MaxDistance: 0.2,
		Enabled:     true,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := recognizerConfig()
	cfg.FPRateCeiling = 0.5
	cfg.FPMinAccepted = 2
	rec := NewRecognizer(lib, cfg)

	var rates []float64
	rec.OnRecalibrationNeeded = func(rate float64) { rates = append(rates, rate) }

	buf := fillBuffer(template)
	rec.Scan(buf, 400)
	rec.Scan(buf, 800)

	// One FP against two acceptances: rate 0.5, not above the ceiling
	rec.ReportFalsePositive("swipe-right")
	if len(rates) != 0 {
		t.Fatalf("expected no recalibration at the ceiling, got %v", rates)
	}

	// Second FP pushes the rate to 1.0
	rec.ReportFalsePositive("swipe-right")
	if len(rates) != 1 {
		t.Fatalf("expected one recalibration request, got %v", rates)
	}
	if rates[0] <= 0.5 {
		t.Errorf("expected rate above ceiling, got %f", rates[0])
	}

	m := rec.Metrics()
	if m.TotalAccepted != 2 || m.TotalFPReported != 2 {
		t.Errorf("unexpected metrics: %+v", m)
	}

	rec.ResetMetrics()
	if m := rec.Metrics(); m != (FPMetrics{}) {
		t.Errorf("expected zeroed metrics after reset, got %+v", m)
	}
}
