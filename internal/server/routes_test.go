package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/meet-transcriber/internal/audio"
	"github.com/skillsenselab/meet-transcriber/internal/component"
	"github.com/skillsenselab/meet-transcriber/internal/diarization"
	apperrors "github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/jobstore"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
	"github.com/skillsenselab/meet-transcriber/internal/pipeline"
	"github.com/skillsenselab/meet-transcriber/internal/provider"
	"github.com/skillsenselab/meet-transcriber/internal/service"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
	"github.com/skillsenselab/meet-transcriber/internal/transcription"
)

type stubPreprocessor struct{}

func (stubPreprocessor) Process(context.Context, string) (*audio.Result, error) {
	return &audio.Result{DurationSeconds: 5, SampleRate: 16000}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Name() string                     { return "stub-whisper" }
func (stubTranscriber) IsAvailable(context.Context) bool { return true }
func (stubTranscriber) Transcribe(context.Context, transcription.Request) (*transcription.Response, error) {
	return &transcription.Response{}, nil
}

type stubDiarizer struct{}

func (stubDiarizer) Name() string                     { return "stub-pyannote" }
func (stubDiarizer) IsAvailable(context.Context) bool { return true }
func (stubDiarizer) Diarize(context.Context, diarization.Request) (*diarization.Response, error) {
	return &diarization.Response{}, nil
}

// newTestAPI builds the API against an in-memory store. The pipeline is not
// started, so submitted jobs stay pending.
func newTestAPI(t *testing.T) (*gin.Engine, jobstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewDefault("test")
	store := jobstore.NewMemoryStore(time.Hour)
	audioCfg := audio.Config{WorkDir: t.TempDir(), MaxUploadMB: 1}
	orch := pipeline.New(pipeline.Config{QueueSize: 8}, store, stubPreprocessor{}, stubTranscriber{}, stubDiarizer{}, nil, log)
	svc := service.New(store, orch, audioCfg, log)

	providers := provider.NewRegistry[provider.Provider]()
	providers.Register(stubTranscriber{})
	providers.Register(stubDiarizer{})

	engine := gin.New()
	NewHandler(svc, component.NewRegistry(), providers, "test").Register(engine)
	return engine, store
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func doRequest(engine *gin.Engine, method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func TestSubmitAccepted(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, ct := multipartUpload(t, "meeting.wav", []byte("fake audio"), map[string]string{
		"language":     "en",
		"min_speakers": "2",
		"max_speakers": "4",
	})
	rec := doRequest(engine, http.MethodPost, "/v1/transcribe", ct, body)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var job transcript.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID == "" {
		t.Error("job_id must be set")
	}
	if job.Status != transcript.StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
	if !job.Options.EnableDiarization {
		t.Error("diarization must default to enabled")
	}
	if job.Options.MinSpeakers != 2 || job.Options.MaxSpeakers != 4 {
		t.Errorf("speaker options lost: %+v", job.Options)
	}
}

func TestSubmitDiarizationOptOut(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, ct := multipartUpload(t, "meeting.wav", []byte("fake audio"), map[string]string{
		"diarize": "false",
	})
	rec := doRequest(engine, http.MethodPost, "/v1/transcribe", ct, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var job transcript.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Options.EnableDiarization {
		t.Error("diarize=false must disable diarization")
	}
}

func TestSubmitValidation(t *testing.T) {
	engine, _ := newTestAPI(t)

	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		wantCode apperrors.ErrorCode
		wantHTTP int
	}{
		{
			"unsupported extension",
			"notes.txt", nil,
			apperrors.ErrCodeUnsupportedFormat, http.StatusBadRequest,
		},
		{
			"min above max",
			"meeting.wav", map[string]string{"min_speakers": "5", "max_speakers": "2"},
			apperrors.ErrCodeMalformedInput, http.StatusBadRequest,
		},
		{
			"speaker count out of range",
			"meeting.wav", map[string]string{"max_speakers": "50"},
			apperrors.ErrCodeMalformedInput, http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartUpload(t, tc.filename, []byte("x"), tc.fields)
			rec := doRequest(engine, http.MethodPost, "/v1/transcribe", ct, body)
			if rec.Code != tc.wantHTTP {
				t.Fatalf("expected %d, got %d: %s", tc.wantHTTP, rec.Code, rec.Body.String())
			}
			if code := decodeErrorCode(t, rec); code != tc.wantCode {
				t.Errorf("expected %s, got %s", tc.wantCode, code)
			}
		})
	}
}

func TestSubmitMissingFilePart(t *testing.T) {
	engine, _ := newTestAPI(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("language", "en")
	w.Close()

	rec := doRequest(engine, http.MethodPost, "/v1/transcribe", w.FormDataContentType(), &buf)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != apperrors.ErrCodeMalformedInput {
		t.Errorf("expected MALFORMED_INPUT, got %s", code)
	}
}

func TestSubmitOversizedUpload(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, ct := multipartUpload(t, "big.wav", make([]byte, 2*1024*1024), nil)
	rec := doRequest(engine, http.MethodPost, "/v1/transcribe", ct, body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != apperrors.ErrCodePayloadTooLarge {
		t.Errorf("expected PAYLOAD_TOO_LARGE, got %s", code)
	}
}

func TestStatusNotFound(t *testing.T) {
	engine, _ := newTestAPI(t)

	rec := doRequest(engine, http.MethodGet, "/v1/transcribe/does-not-exist", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func seedCompletedJob(t *testing.T, store jobstore.Store, id string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	speaker := "SPEAKER_00"

	job := &transcript.Job{
		ID:        id,
		Status:    transcript.StatusPending,
		Filename:  "standup.wav",
		CreatedAt: now,
	}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Update(ctx, id, func(j *transcript.Job) error {
		j.Status = transcript.StatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := store.Update(ctx, id, func(j *transcript.Job) error {
		j.Status = transcript.StatusCompleted
		j.Progress = 100
		j.CompletedAt = &now
		j.Result = &transcript.Result{
			DurationSeconds: 4,
			Speakers:        []string{"SPEAKER_00"},
			Segments: []transcript.Segment{
				{Speaker: &speaker, Start: 0, End: 4, Text: "Hello."},
			},
		}
		return nil
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestDownloadNotReady(t *testing.T) {
	engine, store := newTestAPI(t)
	if err := store.Create(context.Background(), &transcript.Job{
		ID: "pending-job", Status: transcript.StatusPending, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(engine, http.MethodGet, "/v1/transcribe/pending-job/download", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != apperrors.ErrCodeNotReady {
		t.Errorf("expected NOT_READY, got %s", code)
	}
}

func TestDownloadCompleted(t *testing.T) {
	engine, store := newTestAPI(t)
	seedCompletedJob(t, store, "done-job")

	t.Run("default format is srt", func(t *testing.T) {
		rec := doRequest(engine, http.MethodGet, "/v1/transcribe/done-job/download", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "00:00:00,000 --> 00:00:04,000") {
			t.Errorf("missing SRT cue timing: %q", rec.Body.String())
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "standup.srt") {
			t.Errorf("content disposition: %q", cd)
		}
	})

	t.Run("vtt", func(t *testing.T) {
		rec := doRequest(engine, http.MethodGet, "/v1/transcribe/done-job/download?format=vtt", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Body.String(), "WEBVTT") {
			t.Error("VTT body must start with WEBVTT")
		}
		if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/vtt") {
			t.Errorf("content type: %q", ct)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := doRequest(engine, http.MethodGet, "/v1/transcribe/done-job/download?format=pdf", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != apperrors.ErrCodeUnknownFormat {
			t.Errorf("expected UNKNOWN_FORMAT, got %s", code)
		}
	})
}

func TestHealth(t *testing.T) {
	engine, _ := newTestAPI(t)

	rec := doRequest(engine, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["service"] != "test" {
		t.Errorf("expected service name, got %v", body["service"])
	}
	providers, ok := body["providers"].(map[string]any)
	if !ok {
		t.Fatalf("expected providers map, got %T", body["providers"])
	}
	if providers["stub-whisper"] != true || providers["stub-pyannote"] != true {
		t.Errorf("expected both providers available, got %v", providers)
	}
}
