package transcript

import (
	"errors"
	"time"
)

// Options holds the submitted processing options for a job.
type Options struct {
	// Language is the language hint (e.g. "en"). Empty means auto-detect.
	Language string `json:"language,omitempty"`
	// MinSpeakers is the minimum expected number of speakers (0 = unset).
	MinSpeakers int `json:"min_speakers,omitempty"`
	// MaxSpeakers is the maximum expected number of speakers (0 = unset).
	MaxSpeakers int `json:"max_speakers,omitempty"`
	// EnableDiarization controls whether speaker diarization runs.
	EnableDiarization bool `json:"enable_diarization"`
	// WordTimestamps controls whether word-level timestamps are produced.
	WordTimestamps bool `json:"word_timestamps"`
}

// Job is the durable record of one transcription job. It is owned by the job
// store; the pipeline reads and mutates it only through the store API.
type Job struct {
	// ID is the unique job identifier generated at submission.
	ID string `json:"job_id"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Progress is the 0-100 progress value, monotonically non-decreasing
	// while the job is active.
	Progress int `json:"progress"`
	// Message is a short human-readable description of the current stage.
	Message string `json:"message,omitempty"`
	// Options are the submitted processing options.
	Options Options `json:"options"`
	// Filename is the original upload filename, if declared.
	Filename string `json:"filename,omitempty"`
	// FilePath is the server-side path of the uploaded audio. Internal.
	FilePath string `json:"file_path,omitempty"`
	// CreatedAt is the submission timestamp.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is set once, on the terminal transition.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error is the error summary. Set only in the failed state.
	Error string `json:"error,omitempty"`
	// Result is the finalized transcript. Set only in the completed state.
	Result *Result `json:"result,omitempty"`
}

// Snapshot returns a copy of the job safe to hand to readers. Result and
// CompletedAt are shared but immutable once set.
func (j *Job) Snapshot() Job {
	return *j
}

// Validate checks the record's core invariant: exactly one of result/error is
// populated, and only in a terminal state.
func (j *Job) Validate() error {
	switch j.Status {
	case StatusCompleted:
		if j.Result == nil || j.Error != "" {
			return errors.New("completed job must carry a result and no error")
		}
	case StatusFailed:
		if j.Error == "" || j.Result != nil {
			return errors.New("failed job must carry an error and no result")
		}
	default:
		if j.Result != nil || j.Error != "" {
			return errors.New("non-terminal job must carry neither result nor error")
		}
	}
	return nil
}
