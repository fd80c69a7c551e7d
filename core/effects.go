package live

import (
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
)

type effect interface{ isEffect() }

type (
	effectStatus       struct{ state State }
	effectOpened       struct{ sessionID string }
	effectSendFrame    struct{ frame audio.Frame }
	effectSchedule     struct{ buffer audio.Buffer }
	effectStopPlayback struct{}
	effectSpeaking     struct{ speaking bool }
	effectTranscript   struct{ speaker events.Speaker; text string }
	effectError        struct{ err error }
	effectTurnComplete struct{}
	// effectTeardown releases capture, playback and the transport of the
	// current session.
	effectTeardown     struct{}
)

func (effectStatus) isEffect()       {}
func (effectOpened) isEffect()       {}
func (effectSendFrame) isEffect()    {}
func (effectSchedule) isEffect()     {}
func (effectStopPlayback) isEffect() {}
func (effectSpeaking) isEffect()     {}
func (effectTranscript) isEffect()   {}
func (effectError) isEffect()        {}
func (effectTurnComplete) isEffect() {}
func (effectTeardown) isEffect()     {}

// apply carries out the effects of one transition. It runs with m.mu held;
// UI callbacks are only queued here and run once the lock is released.
func (m *Manager) apply(effects []effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case effectStatus:
			text := e.state.StatusText()
			m.callbacks.enqueue(func() { m.options.onStatus(text) })
		case effectOpened:
			id := e.sessionID
			m.callbacks.enqueue(func() { m.options.onOpen(id) })
		case effectSendFrame:
			m.enqueueFrame(e.frame)
		case effectSchedule:
			m.schedule(e.buffer)
		case effectStopPlayback:
			m.scheduler.interrupt()
		case effectSpeaking:
			speaking := e.speaking
			m.callbacks.enqueue(func() { m.options.onSpeaking(speaking) })
		case effectTranscript:
			speaker, text := e.speaker, e.text
			m.callbacks.enqueue(func() { m.options.onTranscript(speaker, text) })
		case effectError:
			message := UserMessage(e.err)
			m.callbacks.enqueue(func() { m.options.onError(message) })
		case effectTurnComplete:
			m.callbacks.enqueue(func() { m.options.onTurnComplete() })
		case effectTeardown:
			m.teardown()
		}
	}
}
