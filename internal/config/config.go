// Package config reads render settings from YAML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/sfsynth-go/internal/engine"
	"github.com/cbegin/sfsynth-go/internal/sequencer"
)

type Limiter struct {
	Threshold float64 `yaml:"threshold"`
	Ratio     float64 `yaml:"ratio"`
}

type Reverb struct {
	Enabled  bool    `yaml:"enabled"`
	RoomSize float64 `yaml:"room_size"`
	Feedback float64 `yaml:"feedback"`
}

type Chorus struct {
	Enabled  bool    `yaml:"enabled"`
	DelayMs  float64 `yaml:"delay_ms"`
	Feedback float64 `yaml:"feedback"`
	DepthMs  float64 `yaml:"depth_ms"`
	RateHz   float64 `yaml:"rate_hz"`
}

type Compressor struct {
	Enabled     bool    `yaml:"enabled"`
	ThresholdDB float64 `yaml:"threshold_db"`
	Ratio       float64 `yaml:"ratio"`
	AttackMs    float64 `yaml:"attack_ms"`
	ReleaseMs   float64 `yaml:"release_ms"`
	MakeupDB    float64 `yaml:"makeup_db"`
}

// Config is the full set of render settings. Keys missing from a file keep
// their default values.
type Config struct {
	SampleRate      int           `yaml:"sample_rate"`
	MasterGain      float64       `yaml:"master_gain"`
	Limiter         Limiter       `yaml:"limiter"`
	Reverb          Reverb        `yaml:"reverb"`
	Chorus          Chorus        `yaml:"chorus"`
	Compressor      Compressor    `yaml:"compressor"`
	TailSeconds     int           `yaml:"tail_seconds"`
	TrailingSilence time.Duration `yaml:"trailing_silence"`
	MaxDuration     time.Duration `yaml:"max_duration"`
	Serial          bool          `yaml:"serial"`
	Backend         string        `yaml:"backend"`
}

func Default() Config {
	p := engine.DefaultParams()
	return Config{
		SampleRate: 44100,
		MasterGain: p.MasterGain,
		Limiter:    Limiter{Threshold: p.LimiterThreshold, Ratio: p.LimiterRatio},
		Reverb:     Reverb(p.Reverb),
		Chorus:     Chorus(p.Chorus),
		Compressor: Compressor(p.Compressor),

		TailSeconds:     10,
		TrailingSilence: 500 * time.Millisecond,
		MaxDuration:     10 * time.Minute,
		Backend:         "ebiten",
	}
}

// Parse reads YAML on top of the defaults. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return fmt.Errorf("sample_rate %d out of range 8000..192000", c.SampleRate)
	case c.MasterGain < 0:
		return fmt.Errorf("master_gain %v is negative", c.MasterGain)
	case c.Limiter.Threshold <= 0:
		return fmt.Errorf("limiter.threshold %v must be positive", c.Limiter.Threshold)
	case c.Limiter.Ratio < 0 || c.Limiter.Ratio > 1:
		return fmt.Errorf("limiter.ratio %v out of range 0..1", c.Limiter.Ratio)
	case c.TailSeconds < 0:
		return fmt.Errorf("tail_seconds %d is negative", c.TailSeconds)
	case c.TrailingSilence < 0:
		return fmt.Errorf("trailing_silence %v is negative", c.TrailingSilence)
	case c.MaxDuration <= 0:
		return fmt.Errorf("max_duration %v must be positive", c.MaxDuration)
	case c.Compressor.Enabled && c.Compressor.Ratio < 1:
		return fmt.Errorf("compressor.ratio %v must be at least 1", c.Compressor.Ratio)
	}
	return nil
}

// EngineParams converts the master stage settings.
func (c Config) EngineParams() engine.Params {
	return engine.Params{
		MasterGain:       c.MasterGain,
		LimiterThreshold: c.Limiter.Threshold,
		LimiterRatio:     c.Limiter.Ratio,
		Reverb:           engine.ReverbParams(c.Reverb),
		Chorus:           engine.ChorusParams(c.Chorus),
		Compressor:       engine.CompressorParams(c.Compressor),
		Serial:           c.Serial,
	}
}

// SequencerOptions converts the song length settings. A zero tail or
// silence disables it.
func (c Config) SequencerOptions() sequencer.Options {
	opts := sequencer.Options{
		MaxDuration:     c.MaxDuration,
		TailSeconds:     c.TailSeconds,
		TrailingSilence: c.TrailingSilence,
	}
	if opts.TailSeconds == 0 {
		opts.TailSeconds = -1
	}
	if opts.TrailingSilence == 0 {
		opts.TrailingSilence = -1
	}
	return opts
}
