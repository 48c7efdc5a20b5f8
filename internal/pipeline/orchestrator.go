// Package pipeline runs submitted jobs through the processing stages:
// audio preprocessing, speaker diarization, transcription, speaker
// alignment, and result persistence. A bounded worker pool consumes job
// identifiers from an in-memory queue; all job state lives in the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/skillsenselab/meet-transcriber/internal/align"
	"github.com/skillsenselab/meet-transcriber/internal/audio"
	"github.com/skillsenselab/meet-transcriber/internal/component"
	"github.com/skillsenselab/meet-transcriber/internal/diarization"
	apperrors "github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/jobstore"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
	"github.com/skillsenselab/meet-transcriber/internal/observability"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
	"github.com/skillsenselab/meet-transcriber/internal/transcription"
)

// Progress checkpoints reported after each completed stage.
const (
	ProgressPreprocessed = 10
	ProgressDiarized     = 30
	ProgressTranscribed  = 70
	ProgressAligned      = 90
	ProgressDone         = 100
)

// Stage names used in logs and metrics.
const (
	stagePreprocess    = "preprocess"
	stageDiarization   = "diarization"
	stageTranscription = "transcription"
	stageAlignment     = "alignment"
	stagePersist       = "persist"
)

// errNotClaimable aborts a claim when the job is no longer pending.
var errNotClaimable = errors.New("job is not pending")

// Preprocessor normalizes an uploaded audio file for the inference stages.
// Satisfied by *audio.Preprocessor.
type Preprocessor interface {
	Process(ctx context.Context, srcPath string) (*audio.Result, error)
}

// Orchestrator drives jobs through the processing stages.
type Orchestrator struct {
	cfg         Config
	store       jobstore.Store
	pre         Preprocessor
	transcriber transcription.Provider
	diarizer    diarization.Provider
	metrics     *observability.Metrics
	log         *logger.Logger

	queue  chan string
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New creates a pipeline orchestrator. The diarizer may be nil when
// diarization is not deployed; jobs requesting it then degrade or fail
// according to the configured policy.
func New(cfg Config, store jobstore.Store, pre Preprocessor, transcriber transcription.Provider, diarizer diarization.Provider, metrics *observability.Metrics, log *logger.Logger) *Orchestrator {
	cfg.ApplyDefaults()
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		pre:         pre,
		transcriber: transcriber,
		diarizer:    diarizer,
		metrics:     metrics,
		log:         log.WithComponent("pipeline"),
		queue:       make(chan string, cfg.QueueSize),
	}
}

// Name implements component.Component.
func (o *Orchestrator) Name() string { return "pipeline" }

// Start launches the worker pool. Workers run until Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return fmt.Errorf("pipeline already started")
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(workerCtx)
	}
	o.started = true

	o.log.Info("Pipeline started", map[string]interface{}{
		"workers":    o.cfg.Workers,
		"queue_size": o.cfg.QueueSize,
	})
	return nil
}

// Stop signals the workers and waits for in-flight jobs to finish or the
// context to expire.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		return nil
	}
	o.cancel()
	o.started = false

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown timed out: %w", ctx.Err())
	}
}

// Health implements component.Component.
func (o *Orchestrator) Health(ctx context.Context) component.Health {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	h := component.Health{Name: o.Name(), Status: component.StatusHealthy}
	if !started {
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
		return h
	}
	h.Message = fmt.Sprintf("queued=%d/%d", len(o.queue), cap(o.queue))
	return h
}

// Enqueue schedules a pending job for processing. Fails when the queue is
// full; the job record remains pending and can be retried by the caller.
func (o *Orchestrator) Enqueue(ctx context.Context, jobID string) error {
	select {
	case o.queue <- jobID:
		return nil
	default:
		return apperrors.New(apperrors.ErrCodeInternal, "job queue is full", http.StatusServiceUnavailable)
	}
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-o.queue:
			o.process(ctx, id)
		}
	}
}

// process runs one job through all stages. Every exit path leaves the job
// in a terminal state with either a result or an error summary, and removes
// the temporary files the job produced.
func (o *Orchestrator) process(ctx context.Context, jobID string) {
	log := o.log.WithJob(jobID)
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, "pipeline.process")
	defer span.End()

	job, err := o.claim(ctx, jobID)
	if err != nil {
		log.Warn("Skipping job", map[string]interface{}{"error": err.Error()})
		return
	}
	o.metrics.RecordJobStart(ctx)

	// The upload is consumed by this run regardless of outcome.
	if job.FilePath != "" {
		defer os.Remove(job.FilePath)
	}

	wave, err := o.preprocess(ctx, log, job)
	if err != nil {
		o.fail(ctx, log, jobID, stagePreprocess, err, start)
		return
	}
	defer wave.Cleanup()
	o.progress(ctx, jobID, ProgressPreprocessed, "audio preprocessed")

	turns, err := o.diarize(ctx, log, job, wave.Path)
	if err != nil {
		o.fail(ctx, log, jobID, stageDiarization, err, start)
		return
	}
	o.progress(ctx, jobID, ProgressDiarized, "diarization finished")

	resp, err := o.transcribe(ctx, log, job, wave.Path)
	if err != nil {
		o.fail(ctx, log, jobID, stageTranscription, err, start)
		return
	}
	o.progress(ctx, jobID, ProgressTranscribed, "transcription finished")

	result, err := o.align(ctx, log, job, wave, resp, turns)
	if err != nil {
		o.fail(ctx, log, jobID, stageAlignment, err, start)
		return
	}
	o.progress(ctx, jobID, ProgressAligned, "speakers aligned")

	if err := o.complete(ctx, jobID, result); err != nil {
		o.fail(ctx, log, jobID, stagePersist, err, start)
		return
	}
	o.metrics.RecordJobEnd(ctx, string(transcript.StatusCompleted), time.Since(start))
	log.Info("Job completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"segments":    len(result.Segments),
		"speakers":    len(result.Speakers),
	})
}

// claim transitions a pending job to processing. A job already claimed or
// in a terminal state is left alone.
func (o *Orchestrator) claim(ctx context.Context, jobID string) (*transcript.Job, error) {
	return o.store.Update(ctx, jobID, func(j *transcript.Job) error {
		if j.Status != transcript.StatusPending {
			return errNotClaimable
		}
		j.Status = transcript.StatusProcessing
		j.Message = "processing started"
		return nil
	})
}

func (o *Orchestrator) preprocess(ctx context.Context, log *logger.Logger, job *transcript.Job) (*audio.Result, error) {
	stageStart := time.Now()
	ctx, span := observability.StartSpan(ctx, "pipeline.preprocess")
	defer span.End()

	wave, err := o.pre.Process(ctx, job.FilePath)
	o.recordStage(ctx, stagePreprocess, stageStart, err)
	if err != nil {
		return nil, err
	}
	log.Debug("Audio preprocessed", map[string]interface{}{
		"duration_seconds": wave.DurationSeconds,
		"sample_rate":      wave.SampleRate,
	})
	return wave, nil
}

// diarize returns the speaker turns for the job, or nil when diarization is
// disabled, unavailable, or failed under the degrade policy. The returned
// error is only non-nil when the failure must fail the job.
func (o *Orchestrator) diarize(ctx context.Context, log *logger.Logger, job *transcript.Job, audioPath string) ([]transcript.SpeakerTurn, error) {
	if !job.Options.EnableDiarization {
		return nil, nil
	}

	stageStart := time.Now()
	ctx, span := observability.StartSpan(ctx, "pipeline.diarize")
	defer span.End()

	var derr error
	if o.diarizer == nil {
		derr = apperrors.DiarizationFailed(errors.New("no diarization provider configured"))
	} else {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
		resp, err := o.diarizer.Diarize(callCtx, diarization.Request{
			AudioPath:   audioPath,
			MinSpeakers: job.Options.MinSpeakers,
			MaxSpeakers: job.Options.MaxSpeakers,
		})
		if err == nil {
			o.recordStage(ctx, stageDiarization, stageStart, nil)
			log.Debug("Diarization finished", map[string]interface{}{
				"turns":        len(resp.Turns),
				"num_speakers": resp.NumSpeakers,
			})
			return resp.Turns, nil
		}
		derr = ensureCode(err, apperrors.DiarizationFailed)
	}

	o.recordStage(ctx, stageDiarization, stageStart, derr)
	if !o.cfg.DegradeOnDiarizationError {
		return nil, derr
	}
	observability.SetSpanError(ctx, derr)
	log.Warn("Diarization failed, continuing without speakers", map[string]interface{}{
		"error": derr.Error(),
	})
	return nil, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, log *logger.Logger, job *transcript.Job, audioPath string) (*transcription.Response, error) {
	stageStart := time.Now()
	ctx, span := observability.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()
	resp, err := o.transcriber.Transcribe(callCtx, transcription.Request{
		AudioPath:      audioPath,
		Language:       job.Options.Language,
		WordTimestamps: job.Options.WordTimestamps,
	})
	if err != nil {
		err = ensureCode(err, apperrors.TranscriptionFailed)
	}
	o.recordStage(ctx, stageTranscription, stageStart, err)
	if err != nil {
		return nil, err
	}
	log.Debug("Transcription finished", map[string]interface{}{
		"segments": len(resp.Segments),
		"language": resp.Language,
	})
	return resp, nil
}

func (o *Orchestrator) align(ctx context.Context, log *logger.Logger, job *transcript.Job, wave *audio.Result, resp *transcription.Response, turns []transcript.SpeakerTurn) (*transcript.Result, error) {
	stageStart := time.Now()
	ctx, span := observability.StartSpan(ctx, "pipeline.align")
	defer span.End()

	aligned, err := align.Segments(resp.Segments, turns)
	o.recordStage(ctx, stageAlignment, stageStart, err)
	if err != nil {
		return nil, err
	}

	language := resp.Language
	if language == "" {
		language = job.Options.Language
	}
	result := &transcript.Result{
		DurationSeconds: wave.DurationSeconds,
		Language:        language,
		Speakers:        transcript.SpeakerLabels(aligned),
		Segments:        aligned,
	}
	log.Debug("Alignment finished", map[string]interface{}{
		"segments": len(aligned),
		"speakers": len(result.Speakers),
	})
	return result, nil
}

// complete publishes the result and moves the job to completed.
func (o *Orchestrator) complete(ctx context.Context, jobID string, result *transcript.Result) error {
	_, err := o.store.Update(ctx, jobID, func(j *transcript.Job) error {
		now := time.Now().UTC()
		j.Status = transcript.StatusCompleted
		j.Progress = ProgressDone
		j.Message = "completed"
		j.Result = result
		j.Error = ""
		j.CompletedAt = &now
		return nil
	})
	return err
}

// fail moves the job to failed with an error summary derived from the
// stage error. The result stays unset.
func (o *Orchestrator) fail(ctx context.Context, log *logger.Logger, jobID, stage string, err error, start time.Time) {
	observability.SetSpanError(ctx, err)
	o.metrics.RecordError(ctx, string(apperrors.CodeOf(err)), stage)
	o.metrics.RecordJobEnd(ctx, string(transcript.StatusFailed), time.Since(start))
	log.Error("Job failed", map[string]interface{}{
		"stage": stage,
		"error": err.Error(),
	})

	_, uerr := o.store.Update(ctx, jobID, func(j *transcript.Job) error {
		now := time.Now().UTC()
		j.Status = transcript.StatusFailed
		j.Message = "failed during " + stage
		j.Error = apperrors.Summary(err)
		j.Result = nil
		j.CompletedAt = &now
		return nil
	})
	if uerr != nil {
		log.Error("Failed to persist job failure", map[string]interface{}{
			"error": uerr.Error(),
		})
	}
}

// progress records a stage checkpoint. Progress never moves backwards.
func (o *Orchestrator) progress(ctx context.Context, jobID string, value int, message string) {
	_, err := o.store.Update(ctx, jobID, func(j *transcript.Job) error {
		if value > j.Progress {
			j.Progress = value
		}
		j.Message = message
		return nil
	})
	if err != nil {
		o.log.WithJob(jobID).Warn("Progress update failed", map[string]interface{}{
			"progress": value,
			"error":    err.Error(),
		})
	}
}

func (o *Orchestrator) recordStage(ctx context.Context, stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordStage(ctx, stage, status, time.Since(start))
}

// ensureCode wraps err with the stage's error constructor unless it already
// carries an application error code.
func ensureCode(err error, wrap func(error) *apperrors.AppError) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return wrap(err)
}
