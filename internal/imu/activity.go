package imu

// ActivityLevel buckets the rolling motion energy into a discrete band.
type ActivityLevel string

const (
	ActivityStationary ActivityLevel = "stationary"
	ActivityLow        ActivityLevel = "low"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityHigh       ActivityLevel = "high"
)

// ActivityContext describes the current activity band. It is recomputed
// on every fed sample and not retained by the classifier.
type ActivityContext struct {
	Level       ActivityLevel `json:"level"`
	Variance    float64       `json:"variance"`
	TimestampMs int64         `json:"ts"`
}

// ActivityThresholds are the variance boundaries between the four
// activity bands. Variance below Low is stationary, below Moderate is
// low, below High is moderate, and anything above is high.
type ActivityThresholds struct {
	Low      float64
	Moderate float64
	High     float64
}

// DefaultActivityThresholds returns thresholds tuned for wrist-worn
// sensors reporting acceleration in m/s².
func DefaultActivityThresholds() ActivityThresholds {
	return ActivityThresholds{
		Low:      0.05,
		Moderate: 0.5,
		High:     3.0,
	}
}

// ActivityClassifier computes the variance of the acceleration
// magnitude over a trailing window and maps it onto an activity band.
// OnChange fires only when the band transitions, not on every sample.
type ActivityClassifier struct {
	thresholds ActivityThresholds
	window     []float64 // trailing magnitudes, ring
	head       int
	size       int
	current    ActivityLevel
	variance   float64

	OnChange func(ActivityContext)
}

// NewActivityClassifier creates a classifier with a trailing window of
// windowSize magnitudes. Window sizes below 2 are clamped to 2.
func NewActivityClassifier(windowSize int, thresholds ActivityThresholds) *ActivityClassifier {
	if windowSize < 2 {
		windowSize = 2
	}
	return &ActivityClassifier{
		thresholds: thresholds,
		window:     make([]float64, windowSize),
		current:    ActivityStationary,
	}
}

// Feed consumes one sample and returns the recomputed activity context.
func (c *ActivityClassifier) Feed(s Sample) ActivityContext {
	tail := (c.head + c.size) % len(c.window)
	c.window[tail] = s.Magnitude()
	if c.size < len(c.window) {
		c.size++
	} else {
		c.head = (c.head + 1) % len(c.window)
	}

	c.variance = c.computeVariance()
	level := c.classify(c.variance)

	ctx := ActivityContext{
		Level:       level,
		Variance:    c.variance,
		TimestampMs: s.TimestampMs,
	}

	if level != c.current {
		c.current = level
		if c.OnChange != nil {
			c.OnChange(ctx)
		}
	}

	return ctx
}

// Current returns the most recently classified activity band.
func (c *ActivityClassifier) Current() ActivityLevel {
	return c.current
}

// Variance returns the most recently computed window variance.
func (c *ActivityClassifier) Variance() float64 {
	return c.variance
}

// Reset clears the trailing window and returns to stationary.
func (c *ActivityClassifier) Reset() {
	c.head = 0
	c.size = 0
	c.variance = 0
	c.current = ActivityStationary
}

func (c *ActivityClassifier) computeVariance() float64 {
	if c.size < 2 {
		return 0
	}

	var sum float64
	for i := 0; i < c.size; i++ {
		sum += c.window[(c.head+i)%len(c.window)]
	}
	mean := sum / float64(c.size)

	var sq float64
	for i := 0; i < c.size; i++ {
		d := c.window[(c.head+i)%len(c.window)] - mean
		sq += d * d
	}
	return sq / float64(c.size)
}

func (c *ActivityClassifier) classify(variance float64) ActivityLevel {
	switch {
	case variance < c.thresholds.Low:
		return ActivityStationary
	case variance < c.thresholds.Moderate:
		return ActivityLow
	case variance < c.thresholds.High:
		return ActivityModerate
	default:
		return ActivityHigh
	}
}
