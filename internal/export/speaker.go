package export

import (
	"fmt"
	"strconv"
	"strings"
)

// speakerPrefix is the label prefix emitted by the diarization backend.
const speakerPrefix = "SPEAKER_"

// DisplayName maps a diarization label to its display name: the zero-based
// internal index becomes a one-based human name, so "SPEAKER_00" is
// "Speaker 1" regardless of how many speakers were found. Labels that do not
// follow the SPEAKER_NN convention are returned unchanged.
func DisplayName(label string) string {
	idx, ok := ParseLabelIndex(label)
	if !ok {
		return label
	}
	return fmt.Sprintf("Speaker %d", idx+1)
}

// ParseLabelIndex extracts the zero-based index from a SPEAKER_NN label.
func ParseLabelIndex(label string) (int, bool) {
	if !strings.HasPrefix(label, speakerPrefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(label[len(speakerPrefix):])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
