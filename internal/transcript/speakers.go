package transcript

import "sort"

// SpeakerLabels returns the sorted set of distinct non-nil speaker labels in
// the given segments.
func SpeakerLabels(segs []Segment) []string {
	seen := make(map[string]struct{})
	for _, s := range segs {
		if s.Speaker != nil {
			seen[*s.Speaker] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
