// Package service exposes the job-level operations of the transcriber:
// submitting an upload, polling job status, and exporting a finished
// transcript. It owns upload persistence and delegates processing to the
// pipeline.
package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/meet-transcriber/internal/audio"
	apperrors "github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/export"
	"github.com/skillsenselab/meet-transcriber/internal/jobstore"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
	"github.com/skillsenselab/meet-transcriber/internal/pipeline"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

// MaxSpeakerBound caps the accepted min/max speaker hints.
const MaxSpeakerBound = 20

// Service implements the transcription job API operations.
type Service struct {
	store    jobstore.Store
	orch     *pipeline.Orchestrator
	audioCfg audio.Config
	log      *logger.Logger
}

// New creates a Service. The audio configuration supplies the upload
// directory and size limit.
func New(store jobstore.Store, orch *pipeline.Orchestrator, audioCfg audio.Config, log *logger.Logger) *Service {
	audioCfg.ApplyDefaults()
	return &Service{
		store:    store,
		orch:     orch,
		audioCfg: audioCfg,
		log:      log.WithComponent("service"),
	}
}

// Submit validates the upload and options, persists the audio, creates a
// pending job record, and enqueues it for processing. The returned job is a
// snapshot in the pending state.
func (s *Service) Submit(ctx context.Context, upload io.Reader, filename string, opts transcript.Options) (*transcript.Job, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if !audio.SupportedExtension(filename) {
		return nil, apperrors.UnsupportedFormat(
			fmt.Sprintf("unsupported file extension %q", filepath.Ext(filename)),
			audio.SupportedExtensions,
		)
	}

	id := uuid.NewString()
	path, err := s.saveUpload(upload, id, filename)
	if err != nil {
		return nil, err
	}

	job := &transcript.Job{
		ID:        id,
		Status:    transcript.StatusPending,
		Progress:  0,
		Message:   "queued",
		Options:   opts,
		Filename:  filepath.Base(filename),
		FilePath:  path,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		os.Remove(path)
		return nil, err
	}

	if err := s.orch.Enqueue(ctx, id); err != nil {
		s.abandon(ctx, id)
		os.Remove(path)
		return nil, err
	}

	s.log.WithJob(id).Info("Job submitted", map[string]interface{}{
		"filename":    job.Filename,
		"diarization": opts.EnableDiarization,
	})
	snap := job.Snapshot()
	return &snap, nil
}

// GetStatus returns a snapshot of the job record.
func (s *Service) GetStatus(ctx context.Context, id string) (*transcript.Job, error) {
	return s.store.Get(ctx, id)
}

// ExportFile is a rendered transcript ready to be served as a download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        string
}

// Export renders the finished transcript of a completed job in the given
// format. Fails with NOT_READY unless the job is completed.
func (s *Service) Export(ctx context.Context, id, format string) (*ExportFile, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != transcript.StatusCompleted {
		return nil, apperrors.NotReady(string(job.Status))
	}

	body, err := export.Render(job.Result, format)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    exportFilename(job.Filename, format),
		ContentType: export.ContentType(format),
		Body:        body,
	}, nil
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.store.Get(ctx, "health-probe"); err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeNotFound {
			return nil
		}
		return err
	}
	return nil
}

// saveUpload streams the upload to the work directory, enforcing the size
// limit during the copy so oversized bodies never land on disk in full.
func (s *Service) saveUpload(upload io.Reader, id, filename string) (string, error) {
	if err := os.MkdirAll(s.audioCfg.WorkDir, 0o755); err != nil {
		return "", apperrors.Internal(fmt.Errorf("creating work dir: %w", err))
	}

	limit := s.audioCfg.MaxUploadBytes()
	dst := filepath.Join(s.audioCfg.WorkDir, id+"-upload"+strings.ToLower(filepath.Ext(filename)))
	f, err := os.Create(dst)
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("creating upload file: %w", err))
	}

	// Copy one byte past the limit so the overflow is detectable.
	n, err := io.Copy(f, io.LimitReader(upload, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", apperrors.Internal(fmt.Errorf("writing upload: %w", err))
	}
	if n > limit {
		os.Remove(dst)
		return "", apperrors.PayloadTooLarge(n, limit)
	}
	return dst, nil
}

// abandon retracts a freshly created job that could not be enqueued. The
// record never reached the pipeline, so it is deleted rather than failed:
// the transition table only lets the orchestrator move a job out of pending.
func (s *Service) abandon(ctx context.Context, id string) {
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.WithJob(id).Error("Failed to retract unscheduled job", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func validateOptions(opts transcript.Options) error {
	if opts.MinSpeakers < 0 || opts.MaxSpeakers < 0 {
		return apperrors.MalformedInput("speaker counts must be positive")
	}
	if opts.MinSpeakers > MaxSpeakerBound || opts.MaxSpeakers > MaxSpeakerBound {
		return apperrors.MalformedInput(fmt.Sprintf("speaker counts must not exceed %d", MaxSpeakerBound))
	}
	if opts.MinSpeakers > 0 && opts.MaxSpeakers > 0 && opts.MinSpeakers > opts.MaxSpeakers {
		return apperrors.MalformedInput("min_speakers must not exceed max_speakers")
	}
	return nil
}

func exportFilename(original, format string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" || base == "." {
		base = "transcript"
	}
	return base + "." + strings.ToLower(format)
}
