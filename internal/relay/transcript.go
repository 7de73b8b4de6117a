package relay

import (
	"math"
	"strings"
)

// startTolerance is how close two segment start times must be, in seconds,
// for segments sharing an id to be treated as revisions of the same segment.
// The provider reuses ids across partial/final revisions, so id alone is not
// a reliable key.
const startTolerance = 0.5

// Transcript accumulates finalized segments in arrival order plus at most one
// current interim segment. Not safe for concurrent use; the owning session
// serializes access.
type Transcript struct {
	finals  []Segment
	interim string
}

// NewTranscript returns an empty accumulator.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// ApplyFinal upserts a finalized segment, keyed by (id, approximate start).
// A matching segment is replaced in place; otherwise the segment is appended.
// Any pending interim text is cleared.
func (t *Transcript) ApplyFinal(seg Segment) {
	t.interim = ""
	for i := range t.finals {
		if t.finals[i].ID == seg.ID && math.Abs(t.finals[i].Start-seg.Start) <= startTolerance {
			t.finals[i] = seg
			return
		}
	}
	t.finals = append(t.finals, seg)
}

// ApplyInterim replaces the current interim text wholesale.
func (t *Transcript) ApplyInterim(text string) {
	t.interim = text
}

// Interim returns the current interim text, empty if none.
func (t *Transcript) Interim() string {
	return t.interim
}

// Finals returns a copy of the finalized segment sequence.
func (t *Transcript) Finals() []Segment {
	out := make([]Segment, len(t.finals))
	copy(out, t.finals)
	return out
}

// Text joins the finalized segments into one string, for archiving.
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.finals))
	for _, s := range t.finals {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
