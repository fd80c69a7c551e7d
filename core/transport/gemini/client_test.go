package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
)

type fakeLiveServer struct {
	server *httptest.Server

	// handle runs for every accepted websocket after the setup frame was read.
	handle func(ws *websocket.Conn, setup map[string]any)

	modelStatus int
	modelBody   string

	apiKeys chan string
}

func newFakeLiveServer(t *testing.T, handle func(ws *websocket.Conn, setup map[string]any)) *fakeLiveServer {
	t.Helper()

	fake := &fakeLiveServer{handle: handle, modelStatus: http.StatusOK, modelBody: `{"name":"models/test"}`, apiKeys: make(chan string, 4)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(fake.modelStatus)
		_, _ = w.Write([]byte(fake.modelBody))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		fake.apiKeys <- r.Header.Get(apiKeyHeader)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var setup map[string]any
		if err := ws.ReadJSON(&setup); err != nil {
			return
		}
		fake.handle(ws, setup)
	})

	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeLiveServer) client(opts ...ClientOption) *Client {
	liveURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	opts = append([]ClientOption{
		WithModel("test-model"),
		WithEndpoints(liveURL, f.server.URL),
		WithHandshakeTimeout(2 * time.Second),
	}, opts...)
	return NewClient("test-key", opts...)
}

func writeServerMessage(t *testing.T, ws *websocket.Conn, message string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		t.Errorf("failed to write server message: %v", err)
	}
}

func collectEvents() (chan events.Event, transport.ConnectOption) {
	received := make(chan events.Event, 32)
	return received, transport.WithEventCallback(func(event events.Event) { received <- event })
}

func nextEvent(t *testing.T, received <-chan events.Event) events.Event {
	t.Helper()
	select {
	case event := <-received:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestConnectSendsSetupAndTranslatesServerContent(t *testing.T) {
	setups := make(chan map[string]any, 1)
	audioFrames := make(chan map[string]any, 1)
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}

	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {
		setups <- setup
		writeServerMessage(t, ws, `{"setupComplete":{"sessionId":"session-1"}}`)

		var frame map[string]any
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		audioFrames <- frame

		writeServerMessage(t, ws, `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"`+base64.StdEncoding.EncodeToString(pcm)+`"}}]},"outputTranscription":{"text":"Hi"}}}`)
		writeServerMessage(t, ws, `{"serverContent":{"inputTranscription":{"text":"Hello"}}}`)
		writeServerMessage(t, ws, `{"serverContent":{"interrupted":true}}`)
		writeServerMessage(t, ws, `{"serverContent":{"turnComplete":true}}`)
		_, _, _ = ws.ReadMessage()
	})

	received, onEvent := collectEvents()
	conn, err := fake.client().Connect(context.Background(),
		transport.WithSystemInstruction("be brief"),
		transport.WithVoice("Zephyr"),
		onEvent,
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer conn.Close()

	if conn.ID() != "session-1" {
		t.Fatalf("expected session id session-1, got %q", conn.ID())
	}
	if key := <-fake.apiKeys; key != "test-key" {
		t.Fatalf("expected api key header test-key, got %q", key)
	}

	setup := (<-setups)["setup"].(map[string]any)
	if setup["model"] != "models/test-model" {
		t.Fatalf("expected model models/test-model, got %v", setup["model"])
	}
	generationConfig := setup["generationConfig"].(map[string]any)
	if modalities := generationConfig["responseModalities"].([]any); len(modalities) != 1 || modalities[0] != "AUDIO" {
		t.Fatalf("expected AUDIO response modality, got %v", modalities)
	}
	voice := generationConfig["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
	if voice != "Zephyr" {
		t.Fatalf("expected voice Zephyr, got %v", voice)
	}
	if budget := generationConfig["thinkingConfig"].(map[string]any)["thinkingBudget"]; budget != float64(0) {
		t.Fatalf("expected thinking budget 0, got %v", budget)
	}
	text := setup["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"]
	if text != "be brief" {
		t.Fatalf("expected system instruction, got %v", text)
	}
	if _, ok := setup["inputAudioTranscription"]; !ok {
		t.Fatalf("expected input transcription to be enabled")
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Fatalf("expected output transcription to be enabled")
	}

	if err := conn.SendAudio(pcm); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	frame := <-audioFrames
	chunks := frame["realtimeInput"].(map[string]any)["mediaChunks"].([]any)
	chunk := chunks[0].(map[string]any)
	if chunk["mimeType"] != "audio/pcm;rate=16000" {
		t.Fatalf("expected input mime type, got %v", chunk["mimeType"])
	}
	if chunk["data"] != base64.StdEncoding.EncodeToString(pcm) {
		t.Fatalf("expected base64 pcm payload, got %v", chunk["data"])
	}

	audioDelta, ok := nextEvent(t, received).(events.AudioDelta)
	if !ok || string(audioDelta.Audio) != string(pcm) || audioDelta.EncodingInfo.SampleRate != 24000 {
		t.Fatalf("expected audio delta at 24000Hz, got %#v", audioDelta)
	}
	if transcript, ok := nextEvent(t, received).(events.TranscriptDelta); !ok || transcript.Speaker != events.SpeakerModel || transcript.Text != "Hi" {
		t.Fatalf("expected model transcript Hi, got %#v", transcript)
	}
	if transcript, ok := nextEvent(t, received).(events.TranscriptDelta); !ok || transcript.Speaker != events.SpeakerUser || transcript.Text != "Hello" {
		t.Fatalf("expected user transcript Hello, got %#v", transcript)
	}
	if event := nextEvent(t, received); event.Kind() != events.KindInterrupted {
		t.Fatalf("expected interrupted, got %s", event.Kind())
	}
	if event := nextEvent(t, received); event.Kind() != events.KindTurnComplete {
		t.Fatalf("expected turn complete, got %s", event.Kind())
	}
}

func TestConnectFailsWhenCredentialsAreRejected(t *testing.T) {
	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {})
	fake.modelStatus = http.StatusBadRequest
	fake.modelBody = `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`

	_, err := fake.client().Connect(context.Background())
	if !errors.Is(err, transport.ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected remote message in error, got %v", err)
	}
}

func TestConnectFailsWhenRemoteClosesDuringSetup(t *testing.T) {
	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "model not supported"))
	})

	_, err := fake.client(WithCredentialPreflight(false)).Connect(context.Background())
	if !errors.Is(err, transport.ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not supported") {
		t.Fatalf("expected close reason in error, got %v", err)
	}
}

func TestConnectRequiresAPIKey(t *testing.T) {
	_, err := NewClient("").Connect(context.Background())
	if !errors.Is(err, transport.ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
}

func TestConnectHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) { <-release })
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := fake.client(WithCredentialPreflight(false)).Connect(ctx)
	if !errors.Is(err, transport.ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed after cancel, got %v", err)
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {
		writeServerMessage(t, ws, `{"setupComplete":{}}`)
		writeServerMessage(t, ws, `{not json`)
		writeServerMessage(t, ws, `{"serverContent":{"turnComplete":true}}`)
		_, _, _ = ws.ReadMessage()
	})

	received, onEvent := collectEvents()
	conn, err := fake.client().Connect(context.Background(), onEvent)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer conn.Close()

	if conn.ID() == "" {
		t.Fatalf("expected a generated session id")
	}
	if event := nextEvent(t, received); event.Kind() != events.KindTurnComplete {
		t.Fatalf("expected turn complete after malformed message, got %s", event.Kind())
	}
}

func TestUndecodableAudioDropsOnlyThatPart(t *testing.T) {
	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {
		writeServerMessage(t, ws, `{"setupComplete":{}}`)
		writeServerMessage(t, ws, `{"serverContent":{"modelTurn":{"parts":[`+
			`{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"%%% not base64"}},`+
			`{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAABAA=="}}]},`+
			`"outputTranscription":{"text":"hello"},"turnComplete":true}}`)
		_, _, _ = ws.ReadMessage()
	})

	received, onEvent := collectEvents()
	conn, err := fake.client().Connect(context.Background(), onEvent)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer conn.Close()

	delta, ok := nextEvent(t, received).(events.AudioDelta)
	if !ok {
		t.Fatalf("expected the valid audio part to be delivered")
	}
	if len(delta.Audio) != 4 {
		t.Fatalf("expected 4 bytes of audio, got %d", len(delta.Audio))
	}
	transcript, ok := nextEvent(t, received).(events.TranscriptDelta)
	if !ok || transcript.Speaker != events.SpeakerModel || transcript.Text != "hello" {
		t.Fatalf("expected the model transcript sent alongside, got %#v", transcript)
	}
	if event := nextEvent(t, received); event.Kind() != events.KindTurnComplete {
		t.Fatalf("expected turn complete sent alongside, got %s", event.Kind())
	}
}

func TestDecodeServerMessage(t *testing.T) {
	testCases := []struct {
		name        string
		message     string
		dropped     int
		expectError bool
	}{
		{name: "valid", message: `{"serverContent":{"turnComplete":true}}`},
		{name: "not json", message: `{not json`, expectError: true},
		{
			name:    "undecodable audio",
			message: `{"serverContent":{"interrupted":true,"modelTurn":{"parts":[{"inlineData":{"data":"@@"}}]}}}`,
			dropped: 1,
		},
		{
			name:        "wrong type elsewhere",
			message:     `{"serverContent":{"turnComplete":"yes"}}`,
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			msg, dropped, err := decodeServerMessage([]byte(testCase.message))
			if dropped != testCase.dropped {
				t.Fatalf("expected %d dropped parts, got %d", testCase.dropped, dropped)
			}
			if testCase.expectError {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected message to decode, got %v", err)
			}
			if msg.ServerContent == nil {
				t.Fatalf("expected server content to survive")
			}
		})
	}
}

func TestRemoteCloseIsReported(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		expected events.Kind
	}{
		{name: "normal", code: websocket.CloseNormalClosure, expected: events.KindClosed},
		{name: "internal error", code: websocket.CloseInternalServerErr, expected: events.KindError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {
				writeServerMessage(t, ws, `{"setupComplete":{}}`)
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(testCase.code, "bye"))
				_, _, _ = ws.ReadMessage()
			})

			received, onEvent := collectEvents()
			conn, err := fake.client().Connect(context.Background(), onEvent)
			if err != nil {
				t.Fatalf("expected connect to succeed, got %v", err)
			}
			defer conn.Close()

			event := nextEvent(t, received)
			if event.Kind() != testCase.expected {
				t.Fatalf("expected %s, got %s", testCase.expected, event.Kind())
			}
			if errorEvent, ok := event.(events.Error); ok && !errors.Is(errorEvent.Err, transport.ErrTransport) {
				t.Fatalf("expected ErrTransport, got %v", errorEvent.Err)
			}
		})
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	fake := newFakeLiveServer(t, func(ws *websocket.Conn, setup map[string]any) {
		writeServerMessage(t, ws, `{"setupComplete":{}}`)
		_, _, _ = ws.ReadMessage()
	})

	received, onEvent := collectEvents()
	conn, err := fake.client().Connect(context.Background(), onEvent)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	_ = conn.Close()

	if err := conn.SendAudio([]byte{0, 0}); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	select {
	case event := <-received:
		t.Fatalf("expected no event after local close, got %s", event.Kind())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEncodingFromMIME(t *testing.T) {
	fallback := audio.OutputEncodingInfo()
	if got := encodingFromMIME("audio/pcm;rate=16000", fallback); got.SampleRate != 16000 {
		t.Fatalf("expected 16000, got %d", got.SampleRate)
	}
	if got := encodingFromMIME("audio/pcm", fallback); got.SampleRate != fallback.SampleRate {
		t.Fatalf("expected fallback rate, got %d", got.SampleRate)
	}
	if got := encodingFromMIME("audio/pcm;rate=abc", fallback); got.SampleRate != fallback.SampleRate {
		t.Fatalf("expected fallback rate for malformed rate, got %d", got.SampleRate)
	}
}

func TestSetupMessageOmitsDisabledTranscription(t *testing.T) {
	options := transport.DefaultConnectOptions()
	transport.WithTranscription(false, false)(&options)

	data, err := json.Marshal(newSetupMessage("models/x", options))
	if err != nil {
		t.Fatalf("expected setup to marshal, got %v", err)
	}
	if strings.Contains(string(data), "AudioTranscription") {
		t.Fatalf("expected no transcription config, got %s", data)
	}
	if !strings.Contains(string(data), `"model":"models/x"`) {
		t.Fatalf("expected prefixed model to be kept as is, got %s", data)
	}
}
