package relay

import (
	"context"
	"sync"
	"time"

	"github.com/majedsharif/corti-scribe/internal/corti"
	"github.com/majedsharif/corti-scribe/internal/logging"
	"github.com/majedsharif/corti-scribe/internal/metrics"
)

// State is a session lifecycle state.
type State string

const (
	StateInitializing   State = "initializing"
	StateAwaitingConfig State = "awaiting_config"
	StateStreaming      State = "streaming"
	StateEnding         State = "ending"
	StateClosed         State = "closed"
	StateFailed         State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// ClientSender delivers protocol messages to the browser side of a session.
type ClientSender interface {
	Send(msg any) error
	Close() error
}

// ProviderStream is the provider side of a session.
type ProviderStream interface {
	SendAudio(frame []byte) error
	SendFlush() error
	SendEnd() error
	Events() <-chan corti.StreamMessage
	Close() error
}

// Provider creates interactions and opens audio-bridge streams.
type Provider interface {
	CreateInteraction(ctx context.Context, descriptor any) (corti.Interaction, error)
	OpenStream(ctx context.Context, interactionID string, cfg corti.Configuration) (ProviderStream, error)
}

// Options tunes a session.
type Options struct {
	// MaxQueuedFrames bounds the audio queue held during AwaitingConfig.
	// When full, the oldest frame is dropped. Zero disables the bound; the
	// gateway always passes a positive bound from config, where zero or
	// unset selects the default instead.
	MaxQueuedFrames int
	// ConfigTimeout fails the session if configuration acceptance never
	// arrives. Zero disables the deadline.
	ConfigTimeout time.Duration
	// EndTimeout force-closes a session stuck in Ending. Zero disables it.
	EndTimeout time.Duration
	// Language is the transcription locale requested from the provider.
	Language string
	// OnClosed, if set, receives a summary once the session reaches a
	// terminal state. Called at most once, on its own goroutine.
	OnClosed func(Summary)
}

// Summary captures the outcome of a finished session for archiving.
type Summary struct {
	InteractionID string
	State         State
	StartedAt     time.Time
	EndedAt       time.Time
	Transcript    string
	Facts         []corti.Fact
	Credits       float64
	SentFrames    int64
	DroppedFrames int64
}

// Session owns the bridging of one browser connection to one provider stream.
// All handlers serialize on an internal mutex, so within a session events are
// processed one at a time in arrival order; sessions share no state with each
// other.
type Session struct {
	client   ClientSender
	provider Provider
	opts     Options
	log      *logging.Logger
	mtr      *metrics.Metrics

	mu             sync.Mutex
	state          State
	stream         ProviderStream
	interactionID  string
	configAccepted bool
	queue          [][]byte
	sentFrames     int64
	droppedFrames  int64
	credits        float64
	facts          *FactSet
	transcript     *Transcript
	startedAt      time.Time

	configTimer *time.Timer
	endTimer    *time.Timer
}

// NewSession creates a session for an accepted browser connection. Call
// Start to establish the provider side.
func NewSession(client ClientSender, provider Provider, opts Options, log *logging.Logger, mtr *metrics.Metrics) *Session {
	if opts.Language == "" {
		opts.Language = "en"
	}
	s := &Session{
		client:     client,
		provider:   provider,
		opts:       opts,
		log:        log.Sub("session"),
		mtr:        mtr,
		state:      StateInitializing,
		facts:      NewFactSet(),
		transcript: NewTranscript(),
		startedAt:  time.Now(),
	}
	if mtr != nil {
		mtr.SessionsStarted.Inc()
		mtr.SessionsActive.Inc()
	}
	return s
}

// Start establishes the provider session in two phases: create the
// interaction record, then open the audio-bridge stream against it. Failure
// of either phase is fatal: the browser is notified and the session ends in
// Failed. No retry is attempted.
func (s *Session) Start(ctx context.Context) error {
	interaction, err := s.provider.CreateInteraction(ctx, nil)
	if err != nil {
		s.failStartup("could not create interaction: "+err.Error(), "interaction")
		return err
	}

	s.mu.Lock()
	if s.state.Terminal() {
		// Browser went away while the interaction was being created.
		s.mu.Unlock()
		return nil
	}
	s.interactionID = interaction.InteractionID
	s.log = s.log.With("interactionId", interaction.InteractionID)
	s.mu.Unlock()

	stream, err := s.provider.OpenStream(ctx, interaction.InteractionID, corti.DefaultConfiguration(s.opts.Language))
	if err != nil {
		s.failStartup("could not open provider stream: "+err.Error(), "stream")
		return err
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		stream.Close()
		return nil
	}
	s.stream = stream
	s.state = StateAwaitingConfig
	s.sendLocked(SessionStarted{Type: TypeSessionStarted, InteractionID: interaction.InteractionID})
	if s.opts.ConfigTimeout > 0 {
		s.configTimer = time.AfterFunc(s.opts.ConfigTimeout, s.onConfigTimeout)
	}
	s.log.Info().Msg("provider stream open, awaiting configuration acceptance")
	s.mu.Unlock()

	go s.pump(stream)
	return nil
}

// pump feeds provider events into the session until the stream closes.
func (s *Session) pump(stream ProviderStream) {
	for msg := range stream.Events() {
		s.HandleProviderEvent(msg)
	}
	s.HandleProviderDisconnect()
}

// HandleClientAudio processes one inbound audio frame from the browser.
// Before configuration acceptance frames are queued; after it they are
// forwarded immediately. Forwarding errors are logged, never fatal.
func (s *Session) HandleClientAudio(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateInitializing, StateAwaitingConfig:
		if s.opts.MaxQueuedFrames > 0 && len(s.queue) >= s.opts.MaxQueuedFrames {
			s.queue = s.queue[1:]
			s.droppedFrames++
			if s.droppedFrames == 1 {
				s.log.Warn().Int("bound", s.opts.MaxQueuedFrames).Msg("audio queue full, dropping oldest frames")
			}
			if s.mtr != nil {
				s.mtr.FramesDropped.Inc()
			}
		}
		s.queue = append(s.queue, append([]byte(nil), frame...))
		if s.mtr != nil {
			s.mtr.FramesQueued.Inc()
		}
	case StateStreaming:
		s.forwardLocked(frame)
	default:
		// Ending, Closed, Failed: late frames are ignored, not errors.
	}
}

// forwardLocked sends one frame to the provider, best-effort.
func (s *Session) forwardLocked(frame []byte) {
	if err := s.stream.SendAudio(frame); err != nil {
		s.log.Warn().Err(err).Msg("audio frame not forwarded")
		return
	}
	s.sentFrames++
	if s.mtr != nil {
		s.mtr.FramesForwarded.Inc()
	}
}

// HandleClientControl processes a browser control message ("flush" or "end").
func (s *Session) HandleClientControl(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}

	switch kind {
	case ControlFlush:
		if s.state == StateStreaming {
			if err := s.stream.SendFlush(); err != nil {
				s.log.Warn().Err(err).Msg("flush request not forwarded")
			}
		}
	case ControlEnd:
		s.beginEndingLocked()
	}
}

// HandleClientDisconnect is invoked when the browser connection drops. The
// provider side is wound down gracefully so in-flight results still arrive.
func (s *Session) HandleClientDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.state == StateEnding {
		return
	}
	s.beginEndingLocked()
}

// beginEndingLocked requests graceful termination from the provider.
func (s *Session) beginEndingLocked() {
	if s.stream == nil {
		// Provider side never came up; nothing to wind down.
		s.closeLocked(StateClosed, true)
		return
	}
	if s.state == StateEnding {
		return
	}
	s.state = StateEnding
	s.log.Info().Msg("requesting graceful termination")
	if err := s.stream.SendEnd(); err != nil {
		s.log.Warn().Err(err).Msg("end request not sent, closing stream")
		s.closeLocked(StateClosed, true)
		return
	}
	if s.opts.EndTimeout > 0 {
		s.endTimer = time.AfterFunc(s.opts.EndTimeout, s.onEndTimeout)
	}
}

// HandleProviderEvent dispatches one message from the audio bridge.
func (s *Session) HandleProviderEvent(msg corti.StreamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}

	switch {
	case msg.Type == corti.MsgConfigAccepted:
		s.handleConfigAcceptedLocked()

	case corti.IsConfigRejection(msg.Type):
		reason := msg.Message
		if reason == "" {
			reason = "provider rejected the stream configuration (" + msg.Type + ")"
		}
		s.sendLocked(ErrorMessage{Type: TypeError, Message: reason})
		if s.mtr != nil {
			s.mtr.ProviderErrors.WithLabelValues("config").Inc()
		}
		// The browser connection stays open so the error is visible; it
		// closes when the browser disconnects.
		s.closeLocked(StateFailed, false)

	case msg.Type == corti.MsgTranscript:
		for _, item := range msg.TranscriptBatch() {
			seg := SegmentFromItem(item)
			if seg.IsFinal {
				s.transcript.ApplyFinal(seg)
				if s.mtr != nil {
					s.mtr.TranscriptsFinal.Inc()
				}
			} else {
				s.transcript.ApplyInterim(seg.Text)
				if s.mtr != nil {
					s.mtr.TranscriptsInterim.Inc()
				}
			}
			s.sendLocked(TranscriptMessage{Type: TypeTranscript, Data: seg})
		}

	case msg.Type == corti.MsgFacts, msg.Type == corti.MsgFact, msg.Type == corti.MsgData:
		batch := msg.FactBatch()
		if len(batch) == 0 {
			return
		}
		s.facts.Apply(batch)
		if s.mtr != nil {
			s.mtr.FactBatches.Inc()
		}
		s.sendLocked(FactsMessage{Type: TypeFacts, Facts: s.facts.Visible()})

	case msg.Type == corti.MsgUsage:
		delta := msg.CreditsDelta()
		s.credits += delta
		// Negative deltas (billing corrections) still reach the client and
		// the running total, but a Counter only accepts increases.
		if s.mtr != nil && delta > 0 {
			s.mtr.CreditsConsumed.Add(delta)
		}
		s.sendLocked(UsageMessage{Type: TypeUsage, Credits: delta})

	case msg.Type == corti.MsgEnded:
		s.sendLocked(Ended{Type: TypeEnded})
		s.closeLocked(StateClosed, true)

	case msg.Type == corti.MsgError:
		detail := msg.Message
		if detail == "" {
			detail = "provider reported an error"
		}
		s.log.Warn().Str("detail", detail).Msg("provider error event")
		if s.mtr != nil {
			s.mtr.ProviderErrors.WithLabelValues("stream").Inc()
		}
		s.sendLocked(ErrorMessage{Type: TypeError, Message: detail})

	default:
		s.log.Debug().Str("type", msg.Type).Msg("ignoring unknown bridge message")
	}
}

// handleConfigAcceptedLocked opens the audio gate: the queue is flushed to
// the provider in original arrival order, then drained for good.
func (s *Session) handleConfigAcceptedLocked() {
	if s.state != StateAwaitingConfig {
		return
	}
	s.stopTimersLocked()
	s.configAccepted = true

	flushed := len(s.queue)
	for _, frame := range s.queue {
		s.forwardLocked(frame)
	}
	s.queue = nil
	s.state = StateStreaming
	s.sendLocked(ConfigAccepted{Type: TypeConfigAccepted})
	s.log.Info().Int("flushedFrames", flushed).Int64("droppedFrames", s.droppedFrames).Msg("configuration accepted, streaming")
}

// HandleProviderDisconnect is invoked when the provider event channel closes.
func (s *Session) HandleProviderDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}

	if s.state == StateEnding {
		// Connection close counts as termination confirmation.
		s.sendLocked(Ended{Type: TypeEnded})
		s.closeLocked(StateClosed, true)
		return
	}

	s.log.Warn().Str("state", string(s.state)).Msg("provider connection closed unexpectedly")
	if s.mtr != nil {
		s.mtr.ProviderErrors.WithLabelValues("disconnect").Inc()
	}
	s.sendLocked(ErrorMessage{Type: TypeError, Message: "provider connection closed unexpectedly"})
	s.closeLocked(StateClosed, true)
}

// failStartup reports a fatal provider setup error and finishes the session.
func (s *Session) failStartup(message, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.log.Error().Str("phase", phase).Msg(message)
	if s.mtr != nil {
		s.mtr.ProviderErrors.WithLabelValues(phase).Inc()
	}
	s.sendLocked(ErrorMessage{Type: TypeError, Message: message})
	s.closeLocked(StateFailed, true)
}

// onConfigTimeout fires when the provider never acknowledged the stream
// configuration within the deadline.
func (s *Session) onConfigTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingConfig {
		return
	}
	s.log.Warn().Dur("timeout", s.opts.ConfigTimeout).Msg("configuration acceptance deadline passed")
	s.sendLocked(ErrorMessage{Type: TypeError, Message: "timed out waiting for the provider to accept the stream configuration"})
	s.closeLocked(StateFailed, true)
}

// onEndTimeout fires when the provider never confirmed graceful termination.
func (s *Session) onEndTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEnding {
		return
	}
	s.log.Warn().Dur("timeout", s.opts.EndTimeout).Msg("termination confirmation deadline passed")
	s.sendLocked(ErrorMessage{Type: TypeError, Message: "provider did not confirm termination in time"})
	s.sendLocked(Ended{Type: TypeEnded})
	s.closeLocked(StateClosed, true)
}

// closeLocked moves the session to a terminal state exactly once.
func (s *Session) closeLocked(st State, closeClient bool) {
	if s.state.Terminal() {
		return
	}
	s.stopTimersLocked()
	s.state = st
	if s.stream != nil {
		s.stream.Close()
	}
	if closeClient {
		s.client.Close()
	}

	if s.mtr != nil {
		s.mtr.SessionsActive.Dec()
		s.mtr.SessionDuration.Observe(time.Since(s.startedAt).Seconds())
		if st == StateFailed {
			s.mtr.SessionsFailed.Inc()
		}
	}
	s.log.Info().
		Str("state", string(st)).
		Int64("sentFrames", s.sentFrames).
		Int64("droppedFrames", s.droppedFrames).
		Float64("credits", s.credits).
		Msg("session finished")

	if s.opts.OnClosed != nil {
		summary := s.summaryLocked()
		go s.opts.OnClosed(summary)
	}
}

func (s *Session) summaryLocked() Summary {
	return Summary{
		InteractionID: s.interactionID,
		State:         s.state,
		StartedAt:     s.startedAt,
		EndedAt:       time.Now(),
		Transcript:    s.transcript.Text(),
		Facts:         s.facts.Visible(),
		Credits:       s.credits,
		SentFrames:    s.sentFrames,
		DroppedFrames: s.droppedFrames,
	}
}

func (s *Session) stopTimersLocked() {
	if s.configTimer != nil {
		s.configTimer.Stop()
		s.configTimer = nil
	}
	if s.endTimer != nil {
		s.endTimer.Stop()
		s.endTimer = nil
	}
}

// sendLocked delivers a message to the browser, best-effort.
func (s *Session) sendLocked(msg any) {
	if err := s.client.Send(msg); err != nil {
		s.log.Debug().Err(err).Msg("client send failed")
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InteractionID returns the provider interaction id, empty until assigned.
func (s *Session) InteractionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interactionID
}

// SentFrames returns the number of audio frames forwarded so far.
func (s *Session) SentFrames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentFrames
}
