package events

import (
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

type Kind string

// Event is anything a live transport reports about the remote session.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by every event and stamps it with the local receive time.
type Base struct {
	kind       Kind
	receivedAt time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, receivedAt: time.Now()}
}

func (b Base) Kind() Kind { return b.kind }

// Timestamp is when the event was received, not when the remote produced it.
func (b Base) Timestamp() time.Time { return b.receivedAt }

const (
	// KindAudioDelta identifies a chunk of response audio.
	KindAudioDelta Kind = "live.audio_delta"
	// KindTranscriptDelta identifies a speaker-attributed transcript fragment.
	KindTranscriptDelta Kind = "live.transcript_delta"
	// KindInterrupted identifies a barge-in; all pending response audio is void.
	KindInterrupted Kind = "live.interrupted"
	// KindTurnComplete identifies the end of one model utterance.
	KindTurnComplete Kind = "live.turn_complete"
	// KindClosed identifies a normal end of the remote session.
	KindClosed Kind = "live.closed"
	// KindError identifies a remote or transport failure.
	KindError Kind = "live.error"
)

// Speaker attributes transcript text to one side of the conversation.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// AudioDelta carries raw PCM16 response audio as received from the remote.
type AudioDelta struct {
	Base
	Audio        []byte
	EncodingInfo audio.EncodingInfo
}

// NewAudioDelta creates an audio delta event.
func NewAudioDelta(pcm []byte, encodingInfo audio.EncodingInfo) AudioDelta {
	return AudioDelta{Base: NewBase(KindAudioDelta), Audio: pcm, EncodingInfo: encodingInfo}
}

// TranscriptDelta carries partial text of either party's speech.
type TranscriptDelta struct {
	Base
	Speaker Speaker
	Text    string
}

// NewTranscriptDelta creates a transcript delta event.
func NewTranscriptDelta(speaker Speaker, text string) TranscriptDelta {
	return TranscriptDelta{Base: NewBase(KindTranscriptDelta), Speaker: speaker, Text: text}
}

// Interrupted signals that all pending and playing response audio is void.
type Interrupted struct{ Base }

// NewInterrupted creates an interrupted event.
func NewInterrupted() Interrupted {
	return Interrupted{Base: NewBase(KindInterrupted)}
}

// TurnComplete marks the end of one model turn.
type TurnComplete struct{ Base }

// NewTurnComplete creates a turn complete event.
func NewTurnComplete() TurnComplete {
	return TurnComplete{Base: NewBase(KindTurnComplete)}
}

// Closed marks a normal close of the remote session. Reason is the close
// text sent by the remote, if any.
type Closed struct {
	Base
	Reason string
}

// NewClosed creates a closed event.
func NewClosed(reason string) Closed {
	return Closed{Base: NewBase(KindClosed), Reason: reason}
}

// Error carries a remote or transport failure that ends the session.
type Error struct {
	Base
	Err error
}

// NewError creates an error event.
func NewError(err error) Error {
	return Error{Base: NewBase(KindError), Err: err}
}
