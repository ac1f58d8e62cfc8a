package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/imu"
)

// RejectionReason explains why a scan did not produce an accepted gesture.
type RejectionReason string

const (
	RejectBelowThreshold RejectionReason = "below_threshold"
	RejectInCooldown     RejectionReason = "in_cooldown"
	RejectNoCandidate    RejectionReason = "no_candidate"
)

// Result is the outcome of one recognition scan. Results are emitted,
// not retained by the core.
type Result struct {
	GestureID       string          `json:"gesture_id,omitempty"`
	GestureName     string          `json:"gesture_name,omitempty"`
	Confidence      float64         `json:"confidence"`
	Distance        float64         `json:"distance"`
	Accepted        bool            `json:"accepted"`
	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	TimestampMs     int64           `json:"ts"`
}

// FPMetrics tracks acceptance outcomes and user-reported false
// positives across the process lifetime. Reset only explicitly.
type FPMetrics struct {
	TotalAccepted   int64 `json:"total_accepted"`
	TotalRejected   int64 `json:"total_rejected"`
	TotalFPReported int64 `json:"total_fp_reported"`
}

// RecognizerConfig tunes the online recognition policy.
type RecognizerConfig struct {
	// DTW options used for all template comparisons.
	DTW DTWOptions
	// MinWindow is the minimum number of buffered samples before the
	// recognizer starts scanning. It is clamped down to the scan window
	// when every enabled template is shorter.
	MinWindow int
	// ArmingDelayMs delays re-arming after an accepted recognition.
	ArmingDelayMs int64
	// FPRateCeiling is the reported-false-positive rate above which a
	// recalibration is requested.
	FPRateCeiling float64
	// FPMinAccepted is the minimum number of accepted recognitions
	// before the false-positive rate is considered meaningful.
	FPMinAccepted int64
}

// DefaultRecognizerConfig returns the recognition policy defaults.
func DefaultRecognizerConfig() RecognizerConfig {
	return RecognizerConfig{
		DTW:           DTWOptions{Radius: 8},
		MinWindow:     10,
		ArmingDelayMs: 250,
		FPRateCeiling: 0.5,
		FPMinAccepted: 5,
	}
}

// Recognizer scans the live sample buffer against the gesture library
// and applies the acceptance, cooldown, and arming policy. All methods
// run synchronously on the caller's turn.
type Recognizer struct {
	lib *Library
	cfg RecognizerConfig

	cooldownUntil map[string]int64
	armed         bool
	rearmAtMs     int64
	metrics       FPMetrics

	OnResult              func(Result)
	OnGesture             func(Result)
	OnArmedChange         func(bool)
	OnRecalibrationNeeded func(rate float64)
}

// NewRecognizer creates a Recognizer over the given library.
func NewRecognizer(lib *Library, cfg RecognizerConfig) *Recognizer {
	if cfg.MinWindow <= 0 {
		cfg.MinWindow = DefaultRecognizerConfig().MinWindow
	}
	return &Recognizer{
		lib:           lib,
		cfg:           cfg,
		cooldownUntil: make(map[string]int64),
		armed:         true,
	}
}

// Armed reports whether the recognizer currently accepts recognitions.
func (r *Recognizer) Armed() bool {
	return r.armed
}

// Metrics returns a copy of the acceptance metrics.
func (r *Recognizer) Metrics() FPMetrics {
	return r.metrics
}

// ResetMetrics clears the acceptance metrics.
func (r *Recognizer) ResetMetrics() {
	r.metrics = FPMetrics{}
}

type candidate struct {
	def        *Definition
	confidence float64
	distance   float64
	meets      bool
}

// Scan evaluates the trailing buffer window against every enabled
// gesture and emits at most one result. An empty window or an empty
// library is a no-op and returns nil.
func (r *Recognizer) Scan(buf *imu.Buffer, nowMs int64) *Result {
	windowSize := r.windowSize()
	if windowSize == 0 {
		return nil
	}

	// Gestures with templates shorter than MinWindow stay recognizable.
	minWindow := r.cfg.MinWindow
	if windowSize < minWindow {
		minWindow = windowSize
	}

	window := buf.Latest(windowSize)
	if len(window) < minWindow {
		return nil
	}

	// Honor the post-recognition arming delay.
	if !r.armed {
		if nowMs < r.rearmAtMs {
			return nil
		}
		r.armed = true
		if r.OnArmedChange != nil {
			r.OnArmedChange(true)
		}
	}

	best := r.bestCandidate(window)
	if best == nil {
		res := &Result{
			Accepted:        false,
			RejectionReason: RejectNoCandidate,
			TimestampMs:     nowMs,
		}
		r.reject(res)
		return res
	}

	res := &Result{
		GestureID:   best.def.ID,
		GestureName: best.def.Name,
		Confidence:  best.confidence,
		Distance:    best.distance,
		TimestampMs: nowMs,
	}

	switch {
	case !best.meets:
		res.RejectionReason = RejectBelowThreshold
		r.reject(res)
	case r.inCooldown(best.def, nowMs):
		res.RejectionReason = RejectInCooldown
		r.reject(res)
	default:
		res.Accepted = true
		r.accept(res, best.def, nowMs)
	}

	return res
}

// windowSize returns the scan window sized to the longest enabled
// template, or 0 when nothing is enabled.
func (r *Recognizer) windowSize() int {
	size := 0
	for _, def := range r.lib.List() {
		if !def.Enabled {
			continue
		}
		switch def.Classifier {
		case ClassifierDTW:
			if n := def.LongestTemplate(); n > size {
				size = n
			}
		case ClassifierThreshold:
			if r.cfg.MinWindow > size {
				size = r.cfg.MinWindow
			}
		}
	}
	return size
}

// bestCandidate scores every enabled gesture against the window and
// returns the highest-confidence one, or nil if nothing scored.
func (r *Recognizer) bestCandidate(window []imu.Sample) *candidate {
	var best *candidate

	for _, def := range r.lib.List() {
		if !def.Enabled {
			continue
		}

		var c *candidate
		switch def.Classifier {
		case ClassifierDTW:
			c = r.scoreDTW(def, window)
		case ClassifierThreshold:
			c = r.scoreThreshold(def, window)
		}
		if c == nil {
			continue
		}

		if best == nil || c.confidence > best.confidence {
			best = c
		}
	}

	return best
}

// scoreDTW takes the lowest normalized distance across the gesture's
// templates as the class score.
func (r *Recognizer) scoreDTW(def *Definition, window []imu.Sample) *candidate {
	bestDist := math.Inf(1)
	for _, t := range def.Templates {
		dist, err := DTWDistance(window, t.Samples, r.cfg.DTW)
		if err != nil {
			continue
		}
		if dist < bestDist {
			bestDist = dist
		}
	}
	if math.IsInf(bestDist, 1) {
		return nil
	}

	return &candidate{
		def:        def,
		confidence: Confidence(bestDist, def.MaxDistance),
		distance:   bestDist,
		meets:      bestDist <= def.MaxDistance,
	}
}

func (r *Recognizer) scoreThreshold(def *Definition, window []imu.Sample) *candidate {
	conf, ok := def.Rule.Evaluate(window)
	return &candidate{
		def:        def,
		confidence: conf,
		meets:      ok,
	}
}

func (r *Recognizer) inCooldown(def *Definition, nowMs int64) bool {
	return r.cooldownUntil[def.ID] > nowMs
}

func (r *Recognizer) accept(res *Result, def *Definition, nowMs int64) {
	r.metrics.TotalAccepted++
	if def.CooldownMs > 0 {
		r.cooldownUntil[def.ID] = nowMs + def.CooldownMs
	}

	if r.cfg.ArmingDelayMs > 0 {
		r.armed = false
		r.rearmAtMs = nowMs + r.cfg.ArmingDelayMs
		if r.OnArmedChange != nil {
			r.OnArmedChange(false)
		}
	}

	if r.OnGesture != nil {
		r.OnGesture(*res)
	}
	if r.OnResult != nil {
		r.OnResult(*res)
	}
}

func (r *Recognizer) reject(res *Result) {
	r.metrics.TotalRejected++
	if r.OnResult != nil {
		r.OnResult(*res)
	}
}

// ReportFalsePositive records a user-reported false positive and checks
// the observed rate against the configured ceiling.
func (r *Recognizer) ReportFalsePositive(id string) {
	r.metrics.TotalFPReported++
	r.checkFPRate()
}

// ReportTruePositive confirms a recognition. The counters are
// unchanged; the rate is re-checked so a prior ceiling breach can be
// observed promptly after metric resets.
func (r *Recognizer) ReportTruePositive(id string) {
	r.checkFPRate()
}

func (r *Recognizer) checkFPRate() {
	if r.metrics.TotalAccepted < r.cfg.FPMinAccepted || r.cfg.FPRateCeiling <= 0 {
		return
	}
	rate := float64(r.metrics.TotalFPReported) / float64(r.metrics.TotalAccepted)
	if rate > r.cfg.FPRateCeiling && r.OnRecalibrationNeeded != nil {
		r.OnRecalibrationNeeded(rate)
	}
}
