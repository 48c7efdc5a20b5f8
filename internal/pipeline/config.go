package pipeline

import (
	"fmt"
	"time"
)

// Config holds pipeline orchestrator configuration.
type Config struct {
	// Workers is the number of concurrent pipeline workers.
	Workers int `mapstructure:"workers" json:"workers"`
	// QueueSize is the capacity of the job queue. Submissions beyond this
	// are rejected until workers drain the backlog.
	QueueSize int `mapstructure:"queue_size" json:"queue_size"`
	// StageTimeout bounds each external stage call (diarization,
	// transcription).
	StageTimeout time.Duration `mapstructure:"stage_timeout" json:"stage_timeout"`
	// DegradeOnDiarizationError continues a job with unattributed speakers
	// when diarization fails, instead of failing the whole job.
	DegradeOnDiarizationError bool `mapstructure:"degrade_on_diarization_error" json:"degrade_on_diarization_error"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 30 * time.Minute
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	return nil
}
