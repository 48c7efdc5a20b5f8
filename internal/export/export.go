// Package export renders a finalized transcript into subtitle and plain-text
// formats.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

// Supported export formats.
const (
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatText = "txt"
)

// Formats returns the supported format strings.
func Formats() []string {
	return []string{FormatSRT, FormatVTT, FormatText}
}

// ContentType returns the MIME type for a supported format.
func ContentType(format string) string {
	if format == FormatVTT {
		return "text/vtt"
	}
	return "text/plain"
}

// Render serializes the result's segments into the requested format. It fails
// with UNKNOWN_FORMAT for unsupported format strings.
func Render(res *transcript.Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatSRT:
		return SRT(res.Segments), nil
	case FormatVTT:
		return VTT(res.Segments), nil
	case FormatText:
		return Text(res.Segments), nil
	default:
		return "", errors.UnknownFormat(format, Formats())
	}
}

// SRT formats segments as SubRip subtitles. Each segment becomes one numbered
// cue; cue text is prefixed with the display speaker name when one is set.
func SRT(segments []transcript.Segment) string {
	var lines []string
	for i, seg := range segments {
		lines = append(lines,
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s --> %s", srtTimestamp(seg.Start), srtTimestamp(seg.End)),
			cueText(seg),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// VTT formats segments as WebVTT subtitles.
func VTT(segments []transcript.Segment) string {
	lines := []string{"WEBVTT", ""}
	for _, seg := range segments {
		lines = append(lines,
			fmt.Sprintf("%s --> %s", vttTimestamp(seg.Start), vttTimestamp(seg.End)),
			cueText(seg),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// Text formats segments as a plain-text transcript, one line per segment.
func Text(segments []transcript.Segment) string {
	var lines []string
	for _, seg := range segments {
		if seg.Speaker != nil {
			lines = append(lines, fmt.Sprintf("%s: %s", DisplayName(*seg.Speaker), seg.Text))
		} else {
			lines = append(lines, seg.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func cueText(seg transcript.Segment) string {
	if seg.Speaker != nil {
		return fmt.Sprintf("[%s] %s", DisplayName(*seg.Speaker), seg.Text)
	}
	return seg.Text
}

// srtTimestamp formats seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	h, m, s, ms := splitTimestamp(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// vttTimestamp formats seconds as HH:MM:SS.mmm.
func vttTimestamp(seconds float64) string {
	h, m, s, ms := splitTimestamp(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTimestamp(seconds float64) (h, m, s, ms int64) {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	h = total / 3600000
	m = (total % 3600000) / 60000
	s = (total % 60000) / 1000
	ms = total % 1000
	return
}
