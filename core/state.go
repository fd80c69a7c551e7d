package live

import (
	"strings"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// StatusText is the line shown to the user for a state.
func (s State) StatusText() string {
	switch s {
	case StateConnecting:
		return "Connecting..."
	case StateListening:
		return "Listening..."
	case StateErrored:
		return "Error"
	}
	return "Disconnected"
}

func (s State) active() bool {
	return s == StateConnecting || s == StateListening
}

// sessionState is everything a transition may read or change. It is a value;
// transition never mutates its argument.
type sessionState struct {
	phase State
	// generation identifies the session the state belongs to. Inputs that
	// were produced for an older generation are discarded by the adapter.
	generation uint64
	speaking   bool
	sessionID  string
	err        error

	userTranscript  string
	modelTranscript string
}

func (s sessionState) transcript(speaker events.Speaker) string {
	if speaker == events.SpeakerUser {
		return s.userTranscript
	}
	return s.modelTranscript
}

type input interface{ isInput() }

type (
	inputStart        struct{}
	inputOpened       struct{ sessionID string }
	inputStartFailed  struct{ err error }
	inputFrame        struct{ frame audio.Frame }
	inputAudio        struct{ buffer audio.Buffer }
	inputTranscript   struct{ speaker events.Speaker; text string }
	inputInterrupted  struct{}
	inputTurnComplete struct{}
	inputPlaybackIdle struct{}
	inputRemoteClosed struct{ reason string }
	inputRemoteError  struct{ err error }
	inputStop         struct{}
)

func (inputStart) isInput()        {}
func (inputOpened) isInput()       {}
func (inputStartFailed) isInput()  {}
func (inputFrame) isInput()        {}
func (inputAudio) isInput()        {}
func (inputTranscript) isInput()   {}
func (inputInterrupted) isInput()  {}
func (inputTurnComplete) isInput() {}
func (inputPlaybackIdle) isInput() {}
func (inputRemoteClosed) isInput() {}
func (inputRemoteError) isInput()  {}
func (inputStop) isInput()         {}

// transition is the whole session lifecycle. It returns the next state and
// the effects the adapter has to carry out, in order.
func transition(s sessionState, in input) (sessionState, []effect) {
	switch in := in.(type) {
	case inputStart:
		if s.phase.active() {
			return s, nil
		}
		return sessionState{phase: StateConnecting, generation: s.generation + 1},
			[]effect{effectStatus{state: StateConnecting}}

	case inputOpened:
		if s.phase != StateConnecting {
			return s, nil
		}
		s.phase = StateListening
		s.sessionID = in.sessionID
		return s, []effect{effectOpened{sessionID: in.sessionID}, effectStatus{state: StateListening}}

	case inputStartFailed:
		if s.phase != StateConnecting {
			return s, nil
		}
		s.phase = StateErrored
		s.err = in.err
		return s, []effect{effectTeardown{}, effectError{err: in.err}, effectStatus{state: StateErrored}}

	case inputFrame:
		if s.phase != StateListening {
			return s, nil
		}
		return s, []effect{effectSendFrame{frame: in.frame}}

	case inputAudio:
		if s.phase != StateListening {
			return s, nil
		}
		var effects []effect
		if !s.speaking {
			s.speaking = true
			effects = append(effects, effectSpeaking{speaking: true})
		}
		return s, append(effects, effectSchedule{buffer: in.buffer})

	case inputTranscript:
		if s.phase != StateListening {
			return s, nil
		}
		text := strings.TrimSpace(s.transcript(in.speaker) + " " + in.text)
		if in.speaker == events.SpeakerUser {
			s.userTranscript = text
		} else {
			s.modelTranscript = text
		}
		return s, []effect{effectTranscript{speaker: in.speaker, text: text}}

	case inputInterrupted:
		if s.phase != StateListening {
			return s, nil
		}
		effects := []effect{effectStopPlayback{}}
		if s.speaking {
			s.speaking = false
			effects = append(effects, effectSpeaking{speaking: false})
		}
		return s, effects

	case inputTurnComplete:
		if s.phase != StateListening {
			return s, nil
		}
		return s, []effect{effectTurnComplete{}}

	case inputPlaybackIdle:
		if s.phase != StateListening || !s.speaking {
			return s, nil
		}
		s.speaking = false
		return s, []effect{effectSpeaking{speaking: false}}

	case inputRemoteClosed:
		if !s.phase.active() {
			return s, nil
		}
		return s.end(StateClosed, nil)

	case inputRemoteError:
		if !s.phase.active() {
			return s, nil
		}
		return s.end(StateErrored, in.err)

	case inputStop:
		switch {
		case s.phase == StateClosed:
			return s, nil
		case s.phase.active():
			return s.end(StateClosed, nil)
		}
		// Idle and Errored hold no resources.
		s.phase = StateClosed
		return s, []effect{effectStatus{state: StateClosed}}
	}
	return s, nil
}

func (s sessionState) end(phase State, err error) (sessionState, []effect) {
	effects := []effect{effectTeardown{}}
	if s.speaking {
		s.speaking = false
		effects = append(effects, effectSpeaking{speaking: false})
	}
	if err != nil {
		effects = append(effects, effectError{err: err})
	}
	s.phase = phase
	s.err = err
	return s, append(effects, effectStatus{state: phase})
}
