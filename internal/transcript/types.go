// Package transcript defines the data model shared by the transcription
// pipeline: speaker turns, timed words, speaker-labeled segments, and the job
// record tracked by the job store. JSON field names form an external contract
// with polling clients.
package transcript

// Word is a single transcribed word with timing information.
type Word struct {
	// Text is the transcribed word.
	Text string `json:"text"`
	// Start is the word start time in seconds.
	Start float64 `json:"start"`
	// End is the word end time in seconds.
	End float64 `json:"end"`
	// Confidence is the model confidence in [0,1]. Nil when the model did not
	// return one.
	Confidence *float64 `json:"confidence,omitempty"`
}

// SpeakerTurn is a speaker-attributed time range produced by diarization.
// Turns are ordered by start time; overlap between turns is possible and must
// be tolerated by consumers.
type SpeakerTurn struct {
	// Speaker is the diarization speaker label (e.g. "SPEAKER_00").
	Speaker string `json:"speaker"`
	// Start is the turn start time in seconds.
	Start float64 `json:"start"`
	// End is the turn end time in seconds.
	End float64 `json:"end"`
}

// Segment is a final speaker-labeled transcript segment. Segments are ordered
// by start time and never overlap.
type Segment struct {
	// Speaker is the assigned speaker label. Nil when diarization was skipped
	// or produced no turns.
	Speaker *string `json:"speaker"`
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Words holds word-level timestamps when they were requested.
	Words []Word `json:"words,omitempty"`
}

// Result is the complete output of a finished transcription job.
type Result struct {
	// DurationSeconds is the measured audio duration.
	DurationSeconds float64 `json:"duration_seconds"`
	// Language is the detected or requested language.
	Language string `json:"language,omitempty"`
	// Speakers lists the distinct speaker labels encountered, sorted.
	Speakers []string `json:"speakers"`
	// Segments is the ordered, non-overlapping transcript.
	Segments []Segment `json:"segments"`
}
