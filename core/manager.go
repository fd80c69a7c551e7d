// Package live runs a real-time voice session: microphone frames go up to a
// remote model and the spoken response is played back gaplessly, with
// barge-in cancelling whatever is still queued.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Manager owns at most one live session at a time. Every transition runs
// under mu, so scheduling, the tracked buffer set and the lifecycle never
// race with each other, whichever goroutine the input came from.
type Manager struct {
	mu    sync.Mutex
	state sessionState

	input     audio.Input
	output    audio.Output
	connector Connector
	options   ManagerOptions

	scheduler *scheduler
	callbacks callbackQueue

	session *session
}

// session holds the resources of one generation.
type session struct {
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc

	// outbox hands encoded frames to the sender goroutine. It holds a single
	// frame; anything arriving while it is full is dropped.
	outbox chan []byte

	// connecting is held by Start until it stops touching the fields below.
	connecting    sync.WaitGroup
	conn          transport.Conn
	outputStarted bool

	// early holds inputs received before the session was listening.
	early []input

	tornDown bool
	released chan struct{}
}

type Status struct {
	State     State
	Speaking  bool
	SessionID string

	UserTranscript  string
	ModelTranscript string
}

func (s Status) Text() string { return s.State.StatusText() }

func NewManager(input audio.Input, output audio.Output, connector Connector, opts ...ManagerOption) *Manager {
	options := defaultManagerOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Manager{
		input:     input,
		output:    output,
		connector: connector,
		options:   options,
		scheduler: newScheduler(output),
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		State:           m.state.phase,
		Speaking:        m.state.speaking,
		SessionID:       m.state.sessionID,
		UserTranscript:  m.state.userTranscript,
		ModelTranscript: m.state.modelTranscript,
	}
}

// Released is closed once the latest session gave back its devices and
// connection. Without any session it is already closed.
func (m *Manager) Released() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		released := make(chan struct{})
		close(released)
		return released
	}
	return m.session.released
}

// Start opens a new session and returns once it is listening. It fails with
// ErrSessionActive while another session is connecting or open. If Stop is
// called before the handshake completes, Start abandons the session and
// returns nil.
func (m *Manager) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start live session")
	defer span.End()

	s, err := m.begin(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer s.connecting.Done()
	span.SetAttributes(attribute.Int64("session.generation", int64(s.generation)))

	if err := m.open(ctx, s); err != nil {
		if !m.fail(s, err) {
			span.AddEvent("session abandoned")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return m.sessionError(s)
}

// Retry starts a fresh session after the previous one failed.
func (m *Manager) Retry(ctx context.Context) error {
	m.mu.Lock()
	phase := m.state.phase
	m.mu.Unlock()

	if phase != StateErrored {
		return ErrNotErrored
	}
	return m.Start(ctx)
}

// Stop ends the current session, or the handshake of one, and releases its
// resources in the background. It can be called any number of times.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.transition(inputStop{})
	m.mu.Unlock()
	m.callbacks.drain()
}

// SendFrame transmits one captured frame if a session is listening and
// silently drops it otherwise.
func (m *Manager) SendFrame(frame audio.Frame) {
	m.mu.Lock()
	m.transition(inputFrame{frame: frame})
	m.mu.Unlock()
	m.callbacks.drain()
}

// begin moves the manager into Connecting for a new generation once any
// previous session has been released.
func (m *Manager) begin(ctx context.Context) (*session, error) {
	m.mu.Lock()
	if m.state.phase.active() {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	previous := m.session
	m.mu.Unlock()

	if previous != nil {
		select {
		case <-previous.released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	if m.state.phase.active() || m.session != previous {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.transition(inputStart{})

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		generation: m.state.generation,
		ctx:        sessionCtx,
		cancel:     cancel,
		outbox:     make(chan []byte, 1),
		released:   make(chan struct{}),
	}
	s.connecting.Add(1)
	m.session = s
	m.mu.Unlock()
	m.callbacks.drain()

	return s, nil
}

// open acquires the devices and the remote connection for s.
func (m *Manager) open(ctx context.Context, s *session) error {
	frames, err := m.input.Frames(s.ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	go m.capture(s, frames)

	if err := m.output.Start(); err != nil {
		if !errors.Is(err, audio.ErrOutputUnavailable) {
			err = fmt.Errorf("%w: %w", audio.ErrOutputUnavailable, err)
		}
		return err
	}
	s.outputStarted = true

	connectCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	onEvent := func(event events.Event) { m.handleEvent(s.generation, event) }
	conn, err := m.connector.Connect(connectCtx, m.options.connectOptions(m.input, m.output, onEvent)...)
	if err != nil {
		if !errors.Is(err, ErrHandshakeFailed) {
			err = fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		return err
	}

	m.mu.Lock()
	if !m.current(s.generation) || m.state.phase != StateConnecting {
		m.mu.Unlock()
		logger.Info("closing connection of abandoned session", "session_id", conn.ID())
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	go m.send(s, conn)
	m.transition(inputOpened{sessionID: conn.ID()})
	for _, in := range s.early {
		m.transition(in)
	}
	s.early = nil
	m.mu.Unlock()
	m.callbacks.drain()

	trace.SpanFromContext(ctx).AddEvent("session opened", trace.WithAttributes(attribute.String("session.id", conn.ID())))
	logger.Info("live session listening", "session_id", conn.ID())
	return nil
}

// fail moves s into Errored. It reports false when s is no longer the
// session being started, in which case the error is of no interest.
func (m *Manager) fail(s *session, err error) bool {
	m.mu.Lock()
	if !m.current(s.generation) || m.state.phase != StateConnecting {
		m.mu.Unlock()
		return false
	}
	logger.Warn("live session failed to start", "error", err)
	m.transition(inputStartFailed{err: err})
	m.mu.Unlock()
	m.callbacks.drain()
	return true
}

// sessionError returns the error s ended with if it failed while Start was
// finishing the handshake.
func (m *Manager) sessionError(s *session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current(s.generation) && m.state.phase == StateErrored {
		return m.state.err
	}
	return nil
}

func (m *Manager) current(generation uint64) bool {
	return m.session != nil && m.session.generation == generation && m.state.generation == generation
}

// transition feeds one input through the state machine and applies the
// resulting effects. Callers hold m.mu and drain callbacks after unlocking.
func (m *Manager) transition(in input) {
	next, effects := transition(m.state, in)
	m.state = next
	m.apply(effects)
}

func (m *Manager) transitionFor(generation uint64, in input) {
	m.mu.Lock()
	if !m.current(generation) {
		m.mu.Unlock()
		return
	}
	m.transition(in)
	m.mu.Unlock()
	m.callbacks.drain()
}

// handleEvent turns a transport event into a state machine input. Events
// other than close and error that arrive while the session is still
// connecting are held and replayed once it is listening.
func (m *Manager) handleEvent(generation uint64, event events.Event) {
	m.options.onEvent(event)

	in, ok := m.inputFor(event)
	if !ok {
		return
	}

	m.mu.Lock()
	if !m.current(generation) {
		m.mu.Unlock()
		return
	}
	if m.state.phase == StateConnecting && !terminal(in) {
		m.session.early = append(m.session.early, in)
		m.mu.Unlock()
		return
	}
	m.transition(in)
	m.mu.Unlock()
	m.callbacks.drain()
}

func (m *Manager) inputFor(event events.Event) (input, bool) {
	switch event := event.(type) {
	case events.AudioDelta:
		sampleRate := event.EncodingInfo.SampleRate
		if sampleRate == 0 {
			sampleRate = m.output.EncodingInfo().SampleRate
		}
		buffer, err := audio.DecodePCM16(event.Audio, sampleRate)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrDecode, err)
			logger.Warn("dropping response audio", "error", err)
			decodeErrors.Add(context.Background(), 1)
			return nil, false
		}
		return inputAudio{buffer: buffer}, true

	case events.TranscriptDelta:
		return inputTranscript{speaker: event.Speaker, text: event.Text}, true
	case events.Interrupted:
		return inputInterrupted{}, true
	case events.TurnComplete:
		return inputTurnComplete{}, true
	case events.Closed:
		logger.Info("live session closed by remote", "reason", event.Reason)
		return inputRemoteClosed{reason: event.Reason}, true
	case events.Error:
		err := event.Err
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		logger.Warn("live session failed", "error", err)
		return inputRemoteError{err: err}, true
	}
	return nil, false
}

func terminal(in input) bool {
	switch in.(type) {
	case inputRemoteClosed, inputRemoteError:
		return true
	}
	return false
}

// schedule hands buffer to the scheduler and watches it finish. Called with
// m.mu held.
func (m *Manager) schedule(buffer audio.Buffer) {
	s := m.session
	scheduled, err := m.scheduler.schedule(buffer)
	if err != nil {
		logger.Warn("dropping response audio", "error", err)
		if m.scheduler.tracked() == 0 {
			m.transition(inputPlaybackIdle{})
		}
		return
	}

	go func() {
		select {
		case <-scheduled.handle.Done():
			m.bufferFinished(s.generation, scheduled.id)
		case <-s.ctx.Done():
		}
	}()
}

func (m *Manager) bufferFinished(generation uint64, id string) {
	m.mu.Lock()
	if !m.current(generation) || !m.scheduler.finished(id) {
		m.mu.Unlock()
		return
	}
	m.transition(inputPlaybackIdle{})
	m.mu.Unlock()
	m.callbacks.drain()
}

// enqueueFrame encodes frame and offers it to the sender without waiting.
// Called with m.mu held.
func (m *Manager) enqueueFrame(frame audio.Frame) {
	if m.session == nil {
		return
	}
	select {
	case m.session.outbox <- audio.EncodePCM16(frame):
	default:
		logger.Debug("dropping frame, sender busy")
		framesDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", "busy")))
	}
}

// send transmits frames in capture order until the session ends.
func (m *Manager) send(s *session, conn transport.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case pcm := <-s.outbox:
			if err := conn.SendAudio(pcm); err != nil {
				logger.Debug("failed to send frame", "error", err)
				framesDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", "send_failed")))
				continue
			}
			framesSent.Add(context.Background(), 1)
		}
	}
}

// capture forwards frames of s until the input closes the channel, which it
// does once the session context is cancelled.
func (m *Manager) capture(s *session, frames <-chan audio.Frame) {
	for frame := range frames {
		m.transitionFor(s.generation, inputFrame{frame: frame})
	}
}

// teardown stops playback at once and releases the rest of the session in
// the background. Called with m.mu held.
func (m *Manager) teardown() {
	s := m.session
	if s == nil || s.tornDown {
		return
	}
	s.tornDown = true
	s.cancel()
	m.scheduler.interrupt()

	go func() {
		// Start may still be dialing or starting the output.
		s.connecting.Wait()

		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				logger.Debug("failed to close live connection", "error", err)
			}
		}
		if s.outputStarted {
			if err := m.output.Stop(); err != nil {
				logger.Debug("failed to stop audio output", "error", err)
			}
		}
		close(s.released)
	}()
}
