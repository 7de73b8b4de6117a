// Package relay bridges one browser WebSocket connection to one Corti
// audio-bridge stream for the lifetime of a recording session.
package relay

import (
	"encoding/json"
	"fmt"

	"github.com/majedsharif/corti-scribe/internal/corti"
)

// Message types sent to the browser. CONFIG_ACCEPTED keeps the provider's
// spelling because the browser treats it as the audio-forwarding gate.
const (
	TypeSessionStarted = "session_started"
	TypeConfigAccepted = "CONFIG_ACCEPTED"
	TypeError          = "error"
	TypeTranscript     = "transcript"
	TypeFacts          = "facts"
	TypeUsage          = "usage"
	TypeEnded          = "ended"
)

// SessionStarted announces the provider interaction backing this session.
type SessionStarted struct {
	Type          string `json:"type"`
	InteractionID string `json:"interactionId"`
}

// ConfigAccepted signals that audio forwarding has begun.
type ConfigAccepted struct {
	Type string `json:"type"`
}

// ErrorMessage carries a human-readable failure description.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TranscriptMessage relays one transcript segment, final or interim.
type TranscriptMessage struct {
	Type string  `json:"type"`
	Data Segment `json:"data"`
}

// FactsMessage carries the full client-visible fact set after one
// reconciliation batch. The slice is never nil so an emptied set serializes
// as [] and clears the client view.
type FactsMessage struct {
	Type  string       `json:"type"`
	Facts []corti.Fact `json:"facts"`
}

// UsageMessage reports an incremental credit delta; the client sums deltas.
type UsageMessage struct {
	Type    string  `json:"type"`
	Credits float64 `json:"credits"`
}

// Ended signals full session termination.
type Ended struct {
	Type string `json:"type"`
}

// Segment is the browser-facing shape of one transcript segment.
type Segment struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	IsFinal   bool    `json:"isFinal"`
	SpeakerID *int    `json:"speakerId,omitempty"`
	Channel   int     `json:"channel"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// SegmentFromItem converts a provider transcript item to the client shape.
func SegmentFromItem(item corti.TranscriptItem) Segment {
	return Segment{
		ID:        item.ID,
		Text:      item.Transcript,
		IsFinal:   item.Final,
		SpeakerID: item.SpeakerID,
		Channel:   item.Participant.Channel,
		Start:     item.Time.Start,
		End:       item.Time.End,
	}
}

// Client control message vocabulary.
const (
	ControlFlush = "flush"
	ControlEnd   = "end"
)

// ParseControl decodes an inbound text message from the browser and returns
// the control kind.
func ParseControl(data []byte) (string, error) {
	var ctl struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &ctl); err != nil {
		return "", fmt.Errorf("malformed control message: %w", err)
	}
	switch ctl.Type {
	case ControlFlush, ControlEnd:
		return ctl.Type, nil
	}
	return "", fmt.Errorf("unknown control type %q", ctl.Type)
}
