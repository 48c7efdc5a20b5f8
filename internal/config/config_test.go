package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithConfigFile(writeConfig(t, "name: meet-transcriber\n")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("environment default: got %s", cfg.Environment)
	}
	if !cfg.Debug {
		t.Error("development must enable debug")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("pipeline workers default: got %d", cfg.Pipeline.Workers)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("audio sample rate default: got %d", cfg.Audio.SampleRate)
	}
	if cfg.JobStore.TTL != 24*time.Hour {
		t.Errorf("job ttl default: got %s", cfg.JobStore.TTL)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
name: meet-transcriber
environment: production
version: 1.2.3

server:
  port: 9090

pipeline:
  workers: 8
  degrade_on_diarization_error: true

whisper:
  url: http://whisper:9000
  model: large-v3
`)

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("environment: got %s", cfg.Environment)
	}
	if cfg.Debug {
		t.Error("production must not enable debug")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("pipeline workers: got %d", cfg.Pipeline.Workers)
	}
	if !cfg.Pipeline.DegradeOnDiarizationError {
		t.Error("degrade flag lost")
	}
	if cfg.Whisper.URL != "http://whisper:9000" || cfg.Whisper.Model != "large-v3" {
		t.Errorf("whisper section lost: %+v", cfg.Whisper)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "name: meet-transcriber\nserver:\n  port: 9090\n")

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("PIPELINE_QUEUE_SIZE", "128")

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("env var must override the file, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.QueueSize != 128 {
		t.Errorf("nested env override: got %d", cfg.Pipeline.QueueSize)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := writeConfig(t, "environment: galaxy\n")
	if _, err := Load(WithConfigFile(path)); err == nil {
		t.Fatal("expected validation to reject an unknown environment")
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("PIPELINE_QUEUE_SIZE")

	want := map[string]bool{
		"pipeline.queue.size": false,
		"pipeline.queue_size": false,
	}
	for _, v := range got {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing variant %q in %v", k, got)
		}
	}

	if v := envKeyVariants("PATH"); v != nil {
		t.Errorf("single-part keys produce no variants, got %v", v)
	}
}
