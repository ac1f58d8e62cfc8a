package gesture

// Calibrator derives acceptance thresholds from intra-class template
// distances. Calibration runs synchronously and can be expensive for
// large libraries; offloading it to a deferred task is the caller's
// concern, and there is no cancellation.
type Calibrator struct {
	lib    *Library
	margin float64
	dtw    DTWOptions
}

// DefaultCalibrationMargin is the safety factor applied on top of the
// worst intra-class distance.
const DefaultCalibrationMargin = 1.25

// NewCalibrator creates a Calibrator over the given library. Margins
// at or below 1 fall back to the default.
func NewCalibrator(lib *Library, margin float64, dtw DTWOptions) *Calibrator {
	if margin <= 1 {
		margin = DefaultCalibrationMargin
	}
	return &Calibrator{
		lib:    lib,
		margin: margin,
		dtw:    dtw,
	}
}

// Calibrate recomputes MaxDistance for every DTW gesture holding at
// least two templates: the maximum pairwise intra-class distance times
// the safety margin. Gestures with fewer templates are untouched.
// Returns the last threshold computed, or 0 if nothing qualified.
func (c *Calibrator) Calibrate() float64 {
	last := 0.0
	for _, def := range c.lib.List() {
		if threshold, ok := c.CalibrateDefinition(def); ok {
			last = threshold
		}
	}
	return last
}

// CalibrateDefinition computes and applies the threshold for a single
// definition. The second return reports whether the definition
// qualified (DTW classifier with at least two templates).
func (c *Calibrator) CalibrateDefinition(def *Definition) (float64, bool) {
	if def == nil || def.Classifier != ClassifierDTW || len(def.Templates) < 2 {
		return 0, false
	}

	worst := 0.0
	for i := 0; i < len(def.Templates); i++ {
		for j := i + 1; j < len(def.Templates); j++ {
			dist, err := DTWDistance(def.Templates[i].Samples, def.Templates[j].Samples, c.dtw)
			if err != nil {
				continue
			}
			if dist > worst {
				worst = dist
			}
		}
	}

	threshold := worst * c.margin
	def.MaxDistance = threshold
	return threshold, true
}
