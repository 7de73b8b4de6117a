package relay

import "github.com/majedsharif/corti-scribe/internal/corti"

// MergeFacts applies one batch of fact updates to the current client-visible
// set and returns the new set. The rules, applied in batch list order:
//
//   - an update with IsDiscarded removes that id from the visible set
//   - an update for a known id replaces its attributes in place, keeping the
//     id's original position
//   - an update for an unknown id appends it
//
// The operation is idempotent per batch and associative across sequential
// batches, so replays and re-batched deliveries converge to the same set.
func MergeFacts(visible []corti.Fact, batch []corti.Fact) []corti.Fact {
	out := make([]corti.Fact, len(visible))
	copy(out, visible)

	for _, f := range batch {
		idx := -1
		for i := range out {
			if out[i].ID == f.ID {
				idx = i
				break
			}
		}

		if f.IsDiscarded {
			if idx >= 0 {
				out = append(out[:idx], out[idx+1:]...)
			}
			continue
		}

		if idx >= 0 {
			out[idx] = f
		} else {
			out = append(out, f)
		}
	}
	return out
}

// FactSet holds the reconciled fact set for one session.
type FactSet struct {
	visible []corti.Fact
}

// NewFactSet returns an empty fact set.
func NewFactSet() *FactSet {
	return &FactSet{visible: []corti.Fact{}}
}

// Apply merges one update batch into the set.
func (s *FactSet) Apply(batch []corti.Fact) {
	s.visible = MergeFacts(s.visible, batch)
}

// Visible returns a copy of the current set. Never nil.
func (s *FactSet) Visible() []corti.Fact {
	out := make([]corti.Fact, len(s.visible))
	copy(out, s.visible)
	return out
}

// Len returns the number of visible facts.
func (s *FactSet) Len() int {
	return len(s.visible)
}
