// Package align merges diarization turns and transcription output into the
// final ordered, non-overlapping, speaker-labeled transcript. It is a pure
// computation: no I/O, no external capabilities, deterministic for any input.
package align

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
	"github.com/skillsenselab/meet-transcriber/internal/transcription"
)

// Segments produces speaker-labeled transcript segments from raw
// transcription segments and diarization turns.
//
// When turns is empty (diarization skipped, failed with the degrade policy,
// or produced nothing) the transcription segments are emitted unchanged with
// a nil speaker label. Otherwise each unit (word when word timestamps are
// present, whole segment otherwise) is assigned the turn containing its
// temporal midpoint; overlapping turns are broken by greatest overlap with
// the unit, then earliest turn start. Units outside every turn take the
// nearest turn by boundary distance.
//
// The output is sorted by start, mutually non-overlapping, and tiles exactly
// the same span as the input segments. Malformed timestamps (start > end)
// fail with MALFORMED_INPUT and are never silently corrected.
func Segments(segs []transcription.Segment, turns []transcript.SpeakerTurn) ([]transcript.Segment, error) {
	if err := validate(segs, turns); err != nil {
		return nil, err
	}

	ordered := make([]transcription.Segment, len(segs))
	copy(ordered, segs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	clampOverlaps(ordered)

	if len(turns) == 0 {
		out := make([]transcript.Segment, len(ordered))
		for i, s := range ordered {
			out[i] = transcript.Segment{
				Speaker: nil,
				Start:   s.Start,
				End:     s.End,
				Text:    strings.TrimSpace(s.Text),
				Words:   s.Words,
			}
		}
		return out, nil
	}

	sortedTurns := make([]transcript.SpeakerTurn, len(turns))
	copy(sortedTurns, turns)
	sort.SliceStable(sortedTurns, func(i, j int) bool { return sortedTurns[i].Start < sortedTurns[j].Start })

	var out []transcript.Segment
	for _, s := range ordered {
		if len(s.Words) > 0 {
			out = append(out, splitByWordSpeaker(s, sortedTurns)...)
		} else {
			label := assignSpeaker(s.Start, s.End, sortedTurns)
			out = append(out, transcript.Segment{
				Speaker: &label,
				Start:   s.Start,
				End:     s.End,
				Text:    strings.TrimSpace(s.Text),
			})
		}
	}

	return mergeSameSpeakerRuns(out), nil
}

func validate(segs []transcription.Segment, turns []transcript.SpeakerTurn) error {
	for _, s := range segs {
		if s.Start > s.End {
			return errors.MalformedInput(fmt.Sprintf("segment start %.3f > end %.3f", s.Start, s.End))
		}
		for _, w := range s.Words {
			if w.Start > w.End {
				return errors.MalformedInput(fmt.Sprintf("word %q start %.3f > end %.3f", w.Text, w.Start, w.End))
			}
		}
	}
	for _, t := range turns {
		if t.Start > t.End {
			return errors.MalformedInput(fmt.Sprintf("speaker turn %s start %.3f > end %.3f", t.Speaker, t.Start, t.End))
		}
	}
	return nil
}

// clampOverlaps pushes each segment's start up to the previous segment's end
// so the ordered sequence never overlaps. The covered span is unchanged.
func clampOverlaps(segs []transcription.Segment) {
	for i := 1; i < len(segs); i++ {
		if segs[i].Start < segs[i-1].End {
			segs[i].Start = segs[i-1].End
			if segs[i].Start > segs[i].End {
				segs[i].End = segs[i].Start
			}
		}
	}
}

// assignSpeaker picks the turn for a unit spanning [start, end).
func assignSpeaker(start, end float64, turns []transcript.SpeakerTurn) string {
	mid := (start + end) / 2

	// Containment pass: turns whose [start, end) holds the midpoint. Ties go
	// to greatest overlap with the unit, then to the earliest-starting turn
	// (turns are sorted, so strict improvement keeps the earlier one).
	best := -1
	bestOverlap := math.Inf(-1)
	for i, t := range turns {
		if t.Start <= mid && mid < t.End {
			overlap := math.Min(end, t.End) - math.Max(start, t.Start)
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = i
			}
		}
	}
	if best >= 0 {
		return turns[best].Speaker
	}

	// Undercoverage: take the nearest turn by boundary distance.
	bestDist := math.Inf(1)
	for i, t := range turns {
		var d float64
		switch {
		case mid < t.Start:
			d = t.Start - mid
		case mid >= t.End:
			d = mid - t.End
		}
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return turns[best].Speaker
}

// splitByWordSpeaker re-segments one transcription segment at every
// word-level speaker change. The sub-segments tile the parent segment
// exactly: the first starts at the parent's start, each internal boundary is
// the first word of the new speaker run, and the last ends at the parent's
// end.
func splitByWordSpeaker(seg transcription.Segment, turns []transcript.SpeakerTurn) []transcript.Segment {
	type run struct {
		label string
		words []transcript.Word
	}

	var runs []run
	for _, w := range seg.Words {
		label := assignSpeaker(w.Start, w.End, turns)
		if len(runs) > 0 && runs[len(runs)-1].label == label {
			runs[len(runs)-1].words = append(runs[len(runs)-1].words, w)
			continue
		}
		runs = append(runs, run{label: label, words: []transcript.Word{w}})
	}

	out := make([]transcript.Segment, len(runs))
	for i := range runs {
		start := seg.Start
		if i > 0 {
			start = boundary(runs[i].words[0].Start, seg.Start, seg.End)
		}
		end := seg.End
		if i < len(runs)-1 {
			end = boundary(runs[i+1].words[0].Start, start, seg.End)
		}
		label := runs[i].label
		out[i] = transcript.Segment{
			Speaker: &label,
			Start:   start,
			End:     end,
			Text:    joinWords(runs[i].words),
			Words:   runs[i].words,
		}
	}
	return out
}

// boundary clamps a word-derived boundary into the parent segment span.
func boundary(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func joinWords(words []transcript.Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// mergeSameSpeakerRuns merges consecutive output segments with the same
// speaker when they touch exactly. Segments separated by a gap stay separate
// so the covered span never grows.
func mergeSameSpeakerRuns(segs []transcript.Segment) []transcript.Segment {
	if len(segs) == 0 {
		return segs
	}
	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if sameSpeaker(last.Speaker, s.Speaker) && last.End == s.Start {
			last.End = s.End
			if s.Text != "" {
				if last.Text != "" {
					last.Text += " "
				}
				last.Text += s.Text
			}
			last.Words = append(last.Words, s.Words...)
			continue
		}
		out = append(out, s)
	}
	return out
}

func sameSpeaker(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
