// Package corti is a minimal client for the Corti clinical transcription API:
// REST calls for interactions, templates and documents, plus the audio-bridge
// WebSocket stream.
package corti

import "encoding/json"

// Stream message types emitted by the audio bridge.
const (
	MsgConfigAccepted        = "CONFIG_ACCEPTED"
	MsgConfigDenied          = "CONFIG_DENIED"
	MsgConfigMissing         = "CONFIG_MISSING"
	MsgConfigNotProvided     = "CONFIG_NOT_PROVIDED"
	MsgConfigAlreadyReceived = "CONFIG_ALREADY_RECEIVED"
	MsgConfigTimeout         = "CONFIG_TIMEOUT"
	MsgTranscript            = "transcript"
	MsgFacts                 = "facts"
	MsgFact                  = "fact"
	MsgData                  = "data"
	MsgUsage                 = "usage"
	MsgEnded                 = "ENDED"
	MsgError                 = "error"
)

// IsConfigRejection reports whether a stream message type is one of the
// configuration denial variants that are fatal to the session.
func IsConfigRejection(msgType string) bool {
	switch msgType {
	case MsgConfigDenied, MsgConfigMissing, MsgConfigNotProvided,
		MsgConfigAlreadyReceived, MsgConfigTimeout:
		return true
	}
	return false
}

// StreamMessage is the envelope for every message read from the audio bridge.
// Fact batches arrive under three historical field names ("facts", "fact",
// "data"); transcript batches under "transcripts" or "data". The Data field
// stays raw and is decoded per message type.
type StreamMessage struct {
	Type        string           `json:"type"`
	Message     string           `json:"message,omitempty"`
	Transcripts []TranscriptItem `json:"transcripts,omitempty"`
	Facts       []Fact           `json:"facts,omitempty"`
	Fact        []Fact           `json:"fact,omitempty"`
	Data        json.RawMessage  `json:"data,omitempty"`
	Usage       *Usage           `json:"usage,omitempty"`
	Credits     float64          `json:"credits,omitempty"`
}

// FactBatch returns the fact records carried by this message regardless of
// which field name the bridge used.
func (m StreamMessage) FactBatch() []Fact {
	switch {
	case len(m.Facts) > 0:
		return m.Facts
	case len(m.Fact) > 0:
		return m.Fact
	case len(m.Data) > 0:
		var facts []Fact
		if err := json.Unmarshal(m.Data, &facts); err == nil {
			return facts
		}
	}
	return nil
}

// TranscriptBatch returns the transcript segments carried by this message.
func (m StreamMessage) TranscriptBatch() []TranscriptItem {
	if len(m.Transcripts) > 0 {
		return m.Transcripts
	}
	if len(m.Data) > 0 {
		var items []TranscriptItem
		if err := json.Unmarshal(m.Data, &items); err == nil {
			return items
		}
	}
	return nil
}

// CreditsDelta returns the incremental credit cost carried by a usage message.
func (m StreamMessage) CreditsDelta() float64 {
	if m.Usage != nil {
		return m.Usage.Credits
	}
	return m.Credits
}

// TranscriptItem is one transcript segment, partial or final. Segment ids are
// not globally unique across revisions; callers key on (id, start).
type TranscriptItem struct {
	ID          string      `json:"id"`
	Transcript  string      `json:"transcript"`
	Final       bool        `json:"final"`
	SpeakerID   *int        `json:"speakerId,omitempty"`
	Participant Participant `json:"participant"`
	Time        TimeRange   `json:"time"`
}

// Participant carries the audio channel a segment was recognized on.
type Participant struct {
	Channel int `json:"channel"`
}

// TimeRange is a segment's position in the audio, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Fact is a structured clinical datum extracted from speech. IDs are
// provider-assigned and stable across revisions of the same fact.
type Fact struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Group       string `json:"group"`
	GroupID     string `json:"groupId,omitempty"`
	Source      string `json:"source,omitempty"`
	IsDiscarded bool   `json:"isDiscarded,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Usage reports incremental credit consumption.
type Usage struct {
	Credits float64 `json:"credits"`
}

// StreamConfig is the configuration message sent once after connecting.
type StreamConfig struct {
	Type          string        `json:"type"`
	Configuration Configuration `json:"configuration"`
}

// Configuration selects transcription settings and the processing mode.
type Configuration struct {
	Transcription Transcription `json:"transcription"`
	Mode          Mode          `json:"mode"`
}

// Transcription holds locale and channel settings.
type Transcription struct {
	PrimaryLanguage string              `json:"primaryLanguage"`
	IsDiarization   bool                `json:"isDiarization"`
	IsMultichannel  bool                `json:"isMultichannel"`
	Participants    []ParticipantConfig `json:"participants"`
}

// ParticipantConfig assigns a role to an audio channel.
type ParticipantConfig struct {
	Channel int    `json:"channel"`
	Role    string `json:"role"`
}

// Mode selects the processing pipeline ("facts" for fact extraction).
type Mode struct {
	Type         string `json:"type"`
	OutputLocale string `json:"outputLocale"`
}

// Interaction is the provider-side record for one clinical encounter.
type Interaction struct {
	InteractionID string `json:"interactionId"`
	WebsocketURL  string `json:"websocketUrl,omitempty"`
}

// DocumentRequest is the payload for document generation. Context entries are
// forwarded verbatim; for fact-based generation each entry is
// {"type": "facts", "data": [...]}.
type DocumentRequest struct {
	Context        []DocumentContext `json:"context"`
	TemplateKey    string            `json:"templateKey"`
	OutputLanguage string            `json:"outputLanguage"`
	Name           string            `json:"name,omitempty"`
}

// DocumentContext is one context entry for document generation.
type DocumentContext struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
