// Package client implements a headless consumer of the relay's browser
// protocol: a WebSocket client plus the presentation state machine that
// mirrors relay events into renderable state.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/majedsharif/corti-scribe/internal/corti"
	"github.com/majedsharif/corti-scribe/internal/relay"
)

// Status is the client-visible session status.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusStarting   Status = "starting"
	StatusRecording  Status = "recording"
	StatusEnded      Status = "ended"
	StatusError      Status = "error"
)

// State mirrors relay-emitted events into renderable session state. Not safe
// for concurrent use on its own; Client serializes access.
type State struct {
	Status        Status
	InteractionID string
	// CanSendAudio opens when the relay signals CONFIG_ACCEPTED. A client
	// may send audio earlier; the relay queues it server-side.
	CanSendAudio bool
	Facts        []corti.Fact
	// Credits is the running total; the relay sends deltas.
	Credits   float64
	LastError string
	StartedAt time.Time
	EndedAt   time.Time

	transcript *relay.Transcript
}

// NewState returns a State in the connecting status.
func NewState() *State {
	return &State{
		Status:     StatusConnecting,
		Facts:      []corti.Fact{},
		transcript: relay.NewTranscript(),
	}
}

// serverMessage is the decoded shape of every relay-to-client message.
type serverMessage struct {
	Type          string         `json:"type"`
	InteractionID string         `json:"interactionId,omitempty"`
	Message       string         `json:"message,omitempty"`
	Data          *relay.Segment `json:"data,omitempty"`
	Facts         []corti.Fact   `json:"facts,omitempty"`
	Credits       float64        `json:"credits,omitempty"`
}

// Apply folds one raw relay message into the state and returns the message
// type. Unknown types are ignored so protocol additions stay non-breaking.
func (s *State) Apply(raw []byte) (string, error) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("decoding relay message: %w", err)
	}

	switch msg.Type {
	case relay.TypeSessionStarted:
		s.Status = StatusStarting
		s.InteractionID = msg.InteractionID
		s.StartedAt = time.Now()

	case relay.TypeConfigAccepted:
		s.Status = StatusRecording
		s.CanSendAudio = true

	case relay.TypeTranscript:
		if msg.Data != nil {
			if msg.Data.IsFinal {
				s.transcript.ApplyFinal(*msg.Data)
			} else {
				s.transcript.ApplyInterim(msg.Data.Text)
			}
		}

	case relay.TypeFacts:
		// The relay sends the full reconciled set per batch; replace wholesale.
		s.Facts = msg.Facts
		if s.Facts == nil {
			s.Facts = []corti.Fact{}
		}

	case relay.TypeUsage:
		s.Credits += msg.Credits

	case relay.TypeEnded:
		s.Status = StatusEnded
		s.CanSendAudio = false
		s.EndedAt = time.Now()

	case relay.TypeError:
		s.Status = StatusError
		s.CanSendAudio = false
		s.LastError = msg.Message
	}

	return msg.Type, nil
}

// Transcript returns the finalized transcript text so far.
func (s *State) Transcript() string {
	return s.transcript.Text()
}

// Interim returns the current interim segment text.
func (s *State) Interim() string {
	return s.transcript.Interim()
}

// Segments returns the finalized segments in order.
func (s *State) Segments() []relay.Segment {
	return s.transcript.Finals()
}

// Elapsed returns the session duration observed so far.
func (s *State) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}
