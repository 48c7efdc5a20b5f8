package transcription

import "github.com/skillsenselab/meet-transcriber/internal/transcript"

// Request holds parameters for a transcription call.
type Request struct {
	// AudioPath is the path to the normalized audio file to transcribe.
	AudioPath string `json:"audio_path"`
	// Language is the expected language of the audio (e.g. "en").
	// Empty means auto-detect.
	Language string `json:"language,omitempty"`
	// WordTimestamps requests word-level timing in the response.
	WordTimestamps bool `json:"word_timestamps,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Segments contains time-aligned transcript segments, ordered by start.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds, if the backend reports one.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Words holds word-level timestamps when they were requested.
	Words []transcript.Word `json:"words,omitempty"`
}
