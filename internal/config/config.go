// Package config loads the service configuration from config.yml, .env
// files, and environment variables, in that order of precedence (later
// sources override earlier ones).
package config

import (
	"fmt"

	"github.com/skillsenselab/meet-transcriber/internal/audio"
	"github.com/skillsenselab/meet-transcriber/internal/diarization/pyannote"
	"github.com/skillsenselab/meet-transcriber/internal/jobstore"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
	"github.com/skillsenselab/meet-transcriber/internal/observability"
	"github.com/skillsenselab/meet-transcriber/internal/pipeline"
	"github.com/skillsenselab/meet-transcriber/internal/redis"
	"github.com/skillsenselab/meet-transcriber/internal/server"
	"github.com/skillsenselab/meet-transcriber/internal/transcription/whisper"
)

// Config is the root configuration of the transcriber service.
type Config struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	JobStore      jobstore.Config      `yaml:"jobstore" mapstructure:"jobstore"`
	Audio         audio.Config         `yaml:"audio" mapstructure:"audio"`
	Pipeline      pipeline.Config      `yaml:"pipeline" mapstructure:"pipeline"`
	Whisper       whisper.Config       `yaml:"whisper" mapstructure:"whisper"`
	Pyannote      pyannote.Config      `yaml:"pyannote" mapstructure:"pyannote"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults applies default values to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "meet-transcriber"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.JobStore.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Whisper.ApplyDefaults()
	c.Pyannote.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section for invalid values.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}

	sections := []struct {
		name     string
		validate func() error
	}{
		{"logging", c.Logging.Validate},
		{"server", c.Server.Validate},
		{"redis", c.Redis.Validate},
		{"jobstore", c.JobStore.Validate},
		{"audio", c.Audio.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"whisper", c.Whisper.Validate},
		{"pyannote", c.Pyannote.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
