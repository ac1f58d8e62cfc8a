// Package gesture implements the recognition core: motion templates,
// the gesture library, DTW matching, online recognition, guided
// recording, and threshold calibration.
package gesture

import (
	"errors"
	"math"

	"github.com/ayusman/mudra/internal/imu"
)

// Sentinel errors surfaced by the recognition core.
var (
	// ErrInvalidInput is returned for malformed or empty sequences.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateID is returned when registering an id that already exists.
	ErrDuplicateID = errors.New("duplicate gesture id")
	// ErrNotFound is returned when a referenced gesture does not exist.
	ErrNotFound = errors.New("gesture not found")
	// ErrImportRejected is returned when a snapshot fails validation.
	// The library is left unchanged.
	ErrImportRejected = errors.New("import rejected")
)

// Classifier selects how a gesture is evaluated against the live window.
type Classifier string

const (
	// ClassifierDTW matches the window against recorded templates
	// using Dynamic Time Warping.
	ClassifierDTW Classifier = "dtw"
	// ClassifierThreshold evaluates a simple peak rule against the window.
	ClassifierThreshold Classifier = "threshold"
)

// Template is one recorded exemplar of a gesture. Immutable after
// creation; the library deep-copies templates on export.
type Template struct {
	ID           string       `json:"id"`
	Samples      []imu.Sample `json:"samples"`
	RecordedAtMs int64        `json:"recorded_at_ms,omitempty"`
	SampleRateHz float64      `json:"sample_rate_hz,omitempty"`
}

// Len returns the number of samples in the template.
func (t *Template) Len() int {
	return len(t.Samples)
}

// ThresholdRule is a simple peak-magnitude classifier. The rule fires
// when the peak value on the chosen axis falls inside [MinPeak, MaxPeak];
// a MaxPeak of 0 means unbounded.
type ThresholdRule struct {
	Axis    string  `json:"axis"` // "x", "y", "z" or "mag"
	MinPeak float64 `json:"min_peak"`
	MaxPeak float64 `json:"max_peak,omitempty"`
}

// Evaluate runs the rule against a window and returns a confidence in
// [0, 1] plus whether the rule fired. Confidence grows with the margin
// by which the peak clears MinPeak, saturating at twice the threshold,
// so threshold and DTW candidates compete on the same scale.
func (r *ThresholdRule) Evaluate(window []imu.Sample) (float64, bool) {
	if len(window) == 0 || r.MinPeak <= 0 {
		return 0, false
	}

	var peak float64
	for _, s := range window {
		var v float64
		switch r.Axis {
		case "x":
			v = math.Abs(s.AX)
		case "y":
			v = math.Abs(s.AY)
		case "z":
			v = math.Abs(s.AZ)
		default:
			v = s.Magnitude()
		}
		if v > peak {
			peak = v
		}
	}

	if peak < r.MinPeak {
		return 0, false
	}
	if r.MaxPeak > 0 && peak > r.MaxPeak {
		return 0, false
	}

	confidence := (peak - r.MinPeak) / r.MinPeak
	if confidence > 1 {
		confidence = 1
	}
	return confidence, true
}

// Definition describes one recognizable gesture: either a set of DTW
// templates with an acceptance distance, or a threshold rule.
type Definition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Classifier  Classifier     `json:"classifier"`
	Templates   []*Template    `json:"templates,omitempty"`
	Rule        *ThresholdRule `json:"rule,omitempty"`
	MaxDistance float64        `json:"max_distance"`
	CooldownMs  int64          `json:"cooldown_ms"`
	Enabled     bool           `json:"enabled"`
}

// LongestTemplate returns the sample count of the longest template,
// or 0 if the definition has none.
func (d *Definition) LongestTemplate() int {
	longest := 0
	for _, t := range d.Templates {
		if t.Len() > longest {
			longest = t.Len()
		}
	}
	return longest
}

func (d *Definition) clone() *Definition {
	out := *d
	if d.Rule != nil {
		rule := *d.Rule
		out.Rule = &rule
	}
	out.Templates = make([]*Template, len(d.Templates))
	for i, t := range d.Templates {
		tc := *t
		tc.Samples = append([]imu.Sample(nil), t.Samples...)
		out.Templates[i] = &tc
	}
	return &out
}
