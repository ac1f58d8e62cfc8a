// Package config provides TOML configuration for the Mudra engine.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ayusman/mudra/internal/engine"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Engine     EngineConfig     `toml:"engine"`
	Activity   ActivityConfig   `toml:"activity"`
	Recognizer RecognizerConfig `toml:"recognizer"`
	Recorder   RecorderConfig   `toml:"recorder"`
	Server     ServerConfig     `toml:"server"`
}

// EngineConfig maps engine-level settings.
type EngineConfig struct {
	BufferCapacity    *int     `toml:"buffer-capacity"`
	CalibrationMargin *float64 `toml:"calibration-margin"`
}

// ActivityConfig maps activity classifier settings.
type ActivityConfig struct {
	Window      *int     `toml:"window"`
	LowVar      *float64 `toml:"low"`
	ModerateVar *float64 `toml:"moderate"`
	HighVar     *float64 `toml:"high"`
}

// RecognizerConfig maps recognition policy settings.
type RecognizerConfig struct {
	DTWRadius     *int     `toml:"dtw-radius"`
	MinWindow     *int     `toml:"min-window"`
	ArmingDelayMs *int64   `toml:"arming-delay-ms"`
	FPRateCeiling *float64 `toml:"fp-rate-ceiling"`
	FPMinAccepted *int64   `toml:"fp-min-accepted"`
}

// RecorderConfig maps recording workflow settings.
type RecorderConfig struct {
	CountdownMs       *int64   `toml:"countdown-ms"`
	TargetCount       *int     `toml:"target-count"`
	MaxRepetitionMs   *int64   `toml:"max-repetition-ms"`
	MinRepetitionMs   *int64   `toml:"min-repetition-ms"`
	MotionEndWindow   *int     `toml:"motion-end-window"`
	MotionEndVariance *float64 `toml:"motion-end-variance"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr   *string `toml:"addr"`
	DBPath *string `toml:"db-path"`
}

// Load reads a TOML config from the given path. A missing file is not
// an error.
func Load(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// EngineConfig builds the engine configuration from the file, with
// defaults applied to unset fields.
func (c FileConfig) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()

	applyInt(&cfg.BufferCapacity, c.Engine.BufferCapacity)
	applyFloat(&cfg.CalibrationMargin, c.Engine.CalibrationMargin)

	applyInt(&cfg.ActivityWindow, c.Activity.Window)
	applyFloat(&cfg.ActivityThresholds.Low, c.Activity.LowVar)
	applyFloat(&cfg.ActivityThresholds.Moderate, c.Activity.ModerateVar)
	applyFloat(&cfg.ActivityThresholds.High, c.Activity.HighVar)

	applyInt(&cfg.Recognizer.DTW.Radius, c.Recognizer.DTWRadius)
	applyInt(&cfg.Recognizer.MinWindow, c.Recognizer.MinWindow)
	applyInt64(&cfg.Recognizer.ArmingDelayMs, c.Recognizer.ArmingDelayMs)
	applyFloat(&cfg.Recognizer.FPRateCeiling, c.Recognizer.FPRateCeiling)
	applyInt64(&cfg.Recognizer.FPMinAccepted, c.Recognizer.FPMinAccepted)

	applyInt64(&cfg.Recorder.CountdownMs, c.Recorder.CountdownMs)
	applyInt(&cfg.Recorder.TargetCount, c.Recorder.TargetCount)
	applyInt64(&cfg.Recorder.MaxRepetitionMs, c.Recorder.MaxRepetitionMs)
	applyInt64(&cfg.Recorder.MinRepetitionMs, c.Recorder.MinRepetitionMs)
	applyInt(&cfg.Recorder.MotionEndWindow, c.Recorder.MotionEndWindow)
	applyFloat(&cfg.Recorder.MotionEndVariance, c.Recorder.MotionEndVariance)

	return cfg
}

// Defaults referenced by the CLI layer.
const (
	DefaultAddr = ":8080"
)

// Addr returns the configured server address or the default.
func (c FileConfig) Addr() string {
	if c.Server.Addr != nil && *c.Server.Addr != "" {
		return *c.Server.Addr
	}
	return DefaultAddr
}

// DBPath returns the configured database path, or empty when unset.
func (c FileConfig) DBPath() string {
	if c.Server.DBPath != nil {
		return *c.Server.DBPath
	}
	return ""
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
