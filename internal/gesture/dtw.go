package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/imu"
)

// AxisWeights scales the per-axis contribution to the sample distance.
// A nil value means "unweighted" (all axes weigh 1).
type AxisWeights struct {
	AX, AY, AZ float64
	GX, GY, GZ float64
}

// DTWOptions configures the Dynamic Time Warping computation.
type DTWOptions struct {
	// Radius is the Sakoe-Chiba band half-width. The band is widened
	// automatically to cover the length difference between the two
	// sequences. Zero or negative disables the constraint.
	Radius int
	// Weights optionally scales per-axis distances.
	Weights *AxisWeights
}

// DTWDistance computes the Dynamic Time Warping distance between two
// sample sequences, constrained to a Sakoe-Chiba band of the configured
// radius. The cumulative cost is normalized by the longer sequence
// length so distances are comparable across window sizes.
// Empty sequences return ErrInvalidInput; two single-sample sequences
// degrade to the direct sample distance.
func DTWDistance(a, b []imu.Sample, opts DTWOptions) (float64, error) {
	n := len(a)
	m := len(b)

	if n == 0 || m == 0 {
		return 0, fmt.Errorf("%w: empty sequence", ErrInvalidInput)
	}

	if n == 1 && m == 1 {
		return sampleDistance(a[0], b[0], opts.Weights), nil
	}

	// Band narrower than the length difference admits no path.
	radius := opts.Radius
	if radius > 0 {
		diff := n - m
		if diff < 0 {
			diff = -diff
		}
		if radius < diff {
			radius = diff
		}
	}

	dtw := make([][]float64, n+1)
	for i := range dtw {
		dtw[i] = make([]float64, m+1)
		for j := range dtw[i] {
			dtw[i][j] = math.Inf(1)
		}
	}
	dtw[0][0] = 0

	for i := 1; i <= n; i++ {
		lo, hi := 1, m
		if radius > 0 {
			// Center the band on the diagonal scaled to the
			// sequence lengths.
			center := (i * m) / n
			if lo < center-radius {
				lo = center - radius
			}
			if hi > center+radius {
				hi = center + radius
			}
		}
		for j := lo; j <= hi; j++ {
			cost := sampleDistance(a[i-1], b[j-1], opts.Weights)
			dtw[i][j] = cost + min3(dtw[i-1][j], dtw[i][j-1], dtw[i-1][j-1])
		}
	}

	total := dtw[n][m]
	if math.IsInf(total, 1) {
		return 0, fmt.Errorf("%w: no alignment path within band", ErrInvalidInput)
	}

	return total / float64(maxInt(n, m)), nil
}

// Confidence maps a normalized DTW distance onto [0, 1] against the
// gesture's acceptance distance: 1 at distance 0, 0 at or beyond
// maxDistance.
func Confidence(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		if distance == 0 {
			return 1
		}
		return 0
	}
	c := 1 - distance/maxDistance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// sampleDistance is the axis-weighted Euclidean distance between two
// samples. Gyroscope axes contribute only when both samples carry them.
func sampleDistance(a, b imu.Sample, w *AxisWeights) float64 {
	wax, way, waz := 1.0, 1.0, 1.0
	wgx, wgy, wgz := 1.0, 1.0, 1.0
	if w != nil {
		wax, way, waz = w.AX, w.AY, w.AZ
		wgx, wgy, wgz = w.GX, w.GY, w.GZ
	}

	dx := a.AX - b.AX
	dy := a.AY - b.AY
	dz := a.AZ - b.AZ
	sum := wax*dx*dx + way*dy*dy + waz*dz*dz

	if a.HasGyro && b.HasGyro {
		gx := a.GX - b.GX
		gy := a.GY - b.GY
		gz := a.GZ - b.GZ
		sum += wgx*gx*gx + wgy*gy*gy + wgz*gz*gz
	}

	return math.Sqrt(sum)
}

// min3 returns the minimum of three float64 values.
func min3(a, b, c float64) float64 {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}

// maxInt returns the maximum of two int values.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
