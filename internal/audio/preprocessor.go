// Package audio normalizes arbitrary input audio into the canonical mono PCM
// waveform consumed by the inference backends, and enforces size and duration
// limits before any model is invoked.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	wav "github.com/youpy/go-wav"

	"github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
)

// SupportedExtensions are the upload file extensions accepted for decoding.
var SupportedExtensions = []string{
	".wav", ".mp3", ".m4a", ".mp4", ".flac", ".ogg", ".webm", ".wma", ".aac",
}

// Preprocessor decodes uploads into 16-bit mono PCM WAV at the configured
// sample rate and measures their duration.
type Preprocessor struct {
	cfg Config
	log *logger.Logger
}

// Result describes a normalized waveform on disk. The caller owns the file
// and must call Cleanup when done with it.
type Result struct {
	// Path is the normalized WAV file.
	Path string
	// DurationSeconds is the measured audio duration.
	DurationSeconds float64
	// SampleRate is the waveform sample rate.
	SampleRate int
}

// Cleanup removes the temporary normalized file. Safe to call on all exit
// paths, including after failures.
func (r *Result) Cleanup() {
	if r == nil || r.Path == "" {
		return
	}
	_ = os.Remove(r.Path)
}

// NewPreprocessor creates a Preprocessor with the given configuration.
func NewPreprocessor(cfg Config, log *logger.Logger) *Preprocessor {
	cfg.ApplyDefaults()
	return &Preprocessor{
		cfg: cfg,
		log: log.WithComponent("audio"),
	}
}

// SupportedExtension reports whether the filename carries an accepted
// audio extension.
func SupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Process validates and normalizes the audio file at srcPath. All limit
// checks run here, before any model invocation, so jobs certain to be
// rejected never consume inference capacity.
func (p *Preprocessor) Process(ctx context.Context, srcPath string) (*Result, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("stat upload: %w", err))
	}
	if info.Size() > p.cfg.MaxUploadBytes() {
		return nil, errors.PayloadTooLarge(info.Size(), p.cfg.MaxUploadBytes())
	}
	if !SupportedExtension(srcPath) {
		return nil, errors.UnsupportedFormat(
			fmt.Sprintf("extension %q is not supported", filepath.Ext(srcPath)),
			SupportedExtensions,
		)
	}

	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		return nil, errors.Internal(fmt.Errorf("create work dir: %w", err))
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	outPath := filepath.Join(p.cfg.WorkDir, fmt.Sprintf("%s_%dk.wav", base, p.cfg.SampleRate/1000))

	start := time.Now()
	if err := p.decode(ctx, srcPath, outPath); err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}

	res := &Result{Path: outPath, SampleRate: p.cfg.SampleRate}
	duration, err := wavDuration(outPath)
	if err != nil {
		res.Cleanup()
		return nil, errors.UnsupportedFormat(fmt.Sprintf("decoded audio unreadable: %v", err), SupportedExtensions)
	}
	res.DurationSeconds = duration

	if d := time.Duration(duration * float64(time.Second)); d > p.cfg.MaxDuration() {
		res.Cleanup()
		return nil, errors.DurationExceeded(d, p.cfg.MaxDuration())
	}
	if duration < p.cfg.MinDurationSeconds {
		res.Cleanup()
		return nil, errors.MalformedInput(
			fmt.Sprintf("audio too short: %.2fs, minimum is %.2fs", duration, p.cfg.MinDurationSeconds))
	}

	p.log.Debug("Audio normalized", logger.Fields(
		"src", srcPath,
		"out", outPath,
		"duration_seconds", duration,
		"elapsed_ms", time.Since(start).Milliseconds(),
	))
	return res, nil
}

// decode shells out to ffmpeg to produce 16-bit mono PCM WAV at the target
// sample rate.
func (p *Preprocessor) decode(ctx context.Context, src, dst string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath,
		"-y", "-i", src,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", p.cfg.SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.Internal(ctx.Err())
		}
		reason := lastLine(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		return errors.UnsupportedFormat(reason, SupportedExtensions).WithCause(err)
	}
	return nil
}

// wavDuration measures a PCM WAV file's duration by counting samples.
func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return 0, fmt.Errorf("read wav format: %w", err)
	}
	if format.SampleRate == 0 {
		return 0, fmt.Errorf("wav reports zero sample rate")
	}

	var samples int
	for {
		chunk, err := reader.ReadSamples(4096)
		samples += len(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read wav samples: %w", err)
		}
	}
	return float64(samples) / float64(format.SampleRate), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
