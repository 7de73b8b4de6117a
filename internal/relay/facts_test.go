package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majedsharif/corti-scribe/internal/corti"
)

func fact(id, text string) corti.Fact {
	return corti.Fact{ID: id, Text: text, Group: "other"}
}

func ids(facts []corti.Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.ID
	}
	return out
}

func TestMergeFactsAppendsNewIDs(t *testing.T) {
	visible := MergeFacts(nil, []corti.Fact{fact("1", "cough"), fact("2", "fever")})
	assert.Equal(t, []string{"1", "2"}, ids(visible))
}

func TestMergeFactsUpsertsInPlace(t *testing.T) {
	visible := MergeFacts(nil, []corti.Fact{fact("1", "cough"), fact("2", "fever"), fact("3", "fatigue")})
	visible = MergeFacts(visible, []corti.Fact{fact("2", "high fever")})

	require.Equal(t, []string{"1", "2", "3"}, ids(visible))
	assert.Equal(t, "high fever", visible[1].Text)
}

func TestMergeFactsDiscardRemoves(t *testing.T) {
	visible := MergeFacts(nil, []corti.Fact{fact("5", "a"), fact("7", "b"), fact("9", "c")})

	discard := fact("7", "b")
	discard.IsDiscarded = true
	visible = MergeFacts(visible, []corti.Fact{discard})

	assert.Equal(t, []string{"5", "9"}, ids(visible))
}

func TestMergeFactsDiscardThenReAdd(t *testing.T) {
	visible := MergeFacts(nil, []corti.Fact{fact("7", "old text")})

	discard := fact("7", "old text")
	discard.IsDiscarded = true
	visible = MergeFacts(visible, []corti.Fact{discard})
	require.Empty(t, visible)

	visible = MergeFacts(visible, []corti.Fact{fact("7", "new text")})
	require.Equal(t, []string{"7"}, ids(visible))
	assert.Equal(t, "new text", visible[0].Text)
}

func TestMergeFactsDiscardOfUnknownIDIsNoop(t *testing.T) {
	discard := fact("99", "")
	discard.IsDiscarded = true
	visible := MergeFacts([]corti.Fact{fact("1", "a")}, []corti.Fact{discard})
	assert.Equal(t, []string{"1"}, ids(visible))
}

func TestMergeFactsIdempotent(t *testing.T) {
	batch := []corti.Fact{fact("1", "a"), fact("2", "b")}

	once := MergeFacts(nil, batch)
	twice := MergeFacts(once, batch)

	assert.Equal(t, once, twice)
}

func TestMergeFactsAssociative(t *testing.T) {
	b1 := []corti.Fact{fact("1", "a"), fact("2", "b")}
	discard := fact("1", "a")
	discard.IsDiscarded = true
	b2 := []corti.Fact{discard, fact("3", "c"), fact("2", "b2")}

	sequential := MergeFacts(MergeFacts(nil, b1), b2)
	concatenated := MergeFacts(nil, append(append([]corti.Fact{}, b1...), b2...))

	assert.Equal(t, concatenated, sequential)
}

func TestFactSetVisibleIsACopy(t *testing.T) {
	set := NewFactSet()
	set.Apply([]corti.Fact{fact("1", "a")})

	got := set.Visible()
	got[0].Text = "mutated"

	assert.Equal(t, "a", set.Visible()[0].Text)
	assert.Equal(t, 1, set.Len())
}

func TestFactSetVisibleNeverNil(t *testing.T) {
	assert.NotNil(t, NewFactSet().Visible())
}
