package diarization

import "github.com/skillsenselab/meet-transcriber/internal/transcript"

// Request holds parameters for a diarization call.
type Request struct {
	// AudioPath is the path to the normalized audio file to diarize.
	AudioPath string `json:"audio_path"`
	// MinSpeakers is the minimum expected number of speakers (0 = auto).
	MinSpeakers int `json:"min_speakers,omitempty"`
	// MaxSpeakers is the maximum expected number of speakers (0 = auto).
	MaxSpeakers int `json:"max_speakers,omitempty"`
}

// Response holds the result of a diarization call.
type Response struct {
	// Turns contains speaker-attributed time ranges ordered by start time.
	// Gaps are allowed; silence is not a turn.
	Turns []transcript.SpeakerTurn `json:"turns"`
	// NumSpeakers is the number of distinct speakers detected.
	NumSpeakers int `json:"num_speakers"`
}
