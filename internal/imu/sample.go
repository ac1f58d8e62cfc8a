// Package imu provides IMU sample types, buffering, and activity
// classification for the Mudra gesture recognition engine.
package imu

import "math"

// Sample represents a single inertial measurement.
// Acceleration is in m/s², angular rate in °/s. Gyroscope axes are
// optional; HasGyro reports whether they carry data.
type Sample struct {
	TimestampMs int64   `json:"ts"`
	AX          float64 `json:"ax"`
	AY          float64 `json:"ay"`
	AZ          float64 `json:"az"`
	GX          float64 `json:"gx,omitempty"`
	GY          float64 `json:"gy,omitempty"`
	GZ          float64 `json:"gz,omitempty"`
	HasGyro     bool    `json:"has_gyro,omitempty"`
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.AX*s.AX + s.AY*s.AY + s.AZ*s.AZ)
}
