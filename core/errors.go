package live

import (
	"errors"
	"strings"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
)

var (
	// ErrPermissionDenied means the microphone could not be acquired.
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrHandshakeFailed  = transport.ErrHandshakeFailed
	ErrTransport        = transport.ErrTransport
	// ErrDecode marks a response audio payload that could not be decoded.
	// Only that payload is dropped.
	ErrDecode        = errors.New("malformed response audio")
	ErrSessionActive = errors.New("live session already active")
	ErrNotErrored    = errors.New("live session has not failed")
)

const (
	permissionMessage  = "Microphone access was denied. Allow microphone access and try again."
	connectionMessage  = "Connection failed. Please ensure your API key is correct and valid."
	unreachableMessage = "Unable to reach the Gemini Voice server. Check your network or API settings."
	outputMessage      = "Audio output is unavailable. Check your speakers and try again."
)

// UserMessage turns a session error into text that can be shown as is.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return permissionMessage
	case errors.Is(err, transport.ErrUnreachable):
		return unreachableMessage
	case errors.Is(err, ErrHandshakeFailed):
		return withReason(connectionMessage, err, ErrHandshakeFailed)
	case errors.Is(err, ErrTransport):
		return withReason(connectionMessage, err, ErrTransport)
	case errors.Is(err, audio.ErrOutputUnavailable):
		return outputMessage
	}
	return "Something went wrong: " + err.Error()
}

// withReason appends whatever the remote said after the sentinel text.
func withReason(message string, err, sentinel error) string {
	text := err.Error()
	i := strings.Index(text, sentinel.Error())
	if i < 0 {
		return message
	}
	reason := strings.TrimPrefix(text[i+len(sentinel.Error()):], ": ")
	if reason == "" {
		return message
	}
	return message + " (" + reason + ")"
}
