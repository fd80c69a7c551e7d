// Package events defines the typed contract between a live transport and the
// session consuming it.
//
// Event kinds share the live.* namespace:
//
//   - AudioDelta (live.audio_delta): chunk of response audio, raw PCM16 as
//     received together with its encoding.
//   - TranscriptDelta (live.transcript_delta): append-only transcript piece
//     attributed to the user or the model.
//   - Interrupted (live.interrupted): barge-in; all queued and playing
//     response audio is void.
//   - TurnComplete (live.turn_complete): one model utterance ended. The
//     session stays open.
//   - Closed (live.closed): the remote ended the session normally.
//   - Error (live.error): the session failed underneath.
//
// Semantics used across the package:
//
//   - Delta: append-only piece emitted in stream order. Order within a turn
//     is significant.
//   - Timestamp: time the event was received locally.
package events
