package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds audio preprocessing configuration and input limits.
type Config struct {
	// FFmpegPath is the ffmpeg binary used for decoding and resampling.
	FFmpegPath string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	// WorkDir is where normalized temporary WAV files are written.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
	// SampleRate is the target sample rate required by the inference backends.
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate"`
	// MaxUploadMB is the maximum raw upload size in megabytes.
	MaxUploadMB int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	// MaxDurationSeconds is the maximum audio duration.
	MaxDurationSeconds int `yaml:"max_duration_seconds" mapstructure:"max_duration_seconds"`
	// MinDurationSeconds is the minimum audio duration.
	MinDurationSeconds float64 `yaml:"min_duration_seconds" mapstructure:"min_duration_seconds"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "meet-transcriber")
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 500
	}
	if c.MaxDurationSeconds == 0 {
		c.MaxDurationSeconds = 3600
	}
	if c.MinDurationSeconds == 0 {
		c.MinDurationSeconds = 0.5
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive (got: %d)", c.SampleRate)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("audio.max_upload_mb must be positive (got: %d)", c.MaxUploadMB)
	}
	if c.MaxDurationSeconds <= 0 {
		return fmt.Errorf("audio.max_duration_seconds must be positive (got: %d)", c.MaxDurationSeconds)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// MaxDuration returns the duration limit.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds) * time.Second
}
