package gemini

import (
	"mime"
	"strconv"
	"strings"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
	"google.golang.org/genai"
)

// setupMessage is the first frame of every session. The generation config is
// declared locally because the live endpoint takes a thinking budget that the
// SDK models under a differently shaped type.
type setupMessage struct {
	Setup liveSetup `json:"setup"`
}

type liveSetup struct {
	Model                    string                          `json:"model"`
	GenerationConfig         liveGenerationConfig            `json:"generationConfig"`
	SystemInstruction        *genai.Content                  `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *genai.AudioTranscriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *genai.AudioTranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

type liveGenerationConfig struct {
	ResponseModalities []genai.Modality   `json:"responseModalities"`
	SpeechConfig       *genai.SpeechConfig `json:"speechConfig,omitempty"`
	ThinkingConfig     *thinkingConfig     `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int32 `json:"thinkingBudget"`
}

func newSetupMessage(model string, options transport.ConnectOptions) setupMessage {
	setup := liveSetup{
		Model: modelResourceName(model),
		GenerationConfig: liveGenerationConfig{
			ResponseModalities: []genai.Modality{genai.ModalityAudio},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: options.Voice},
				},
			},
			// Native audio models answer faster without thinking.
			ThinkingConfig: &thinkingConfig{ThinkingBudget: 0},
		},
	}
	if options.SystemInstruction != "" {
		setup.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: options.SystemInstruction}},
		}
	}
	if options.InputTranscription {
		setup.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if options.OutputTranscription {
		setup.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return setupMessage{Setup: setup}
}

func newAudioMessage(pcm []byte, encodingInfo audio.EncodingInfo) genai.LiveClientMessage {
	return genai.LiveClientMessage{
		RealtimeInput: &genai.LiveClientRealtimeInput{
			MediaChunks: []*genai.Blob{{Data: pcm, MIMEType: encodingInfo.MIMEType()}},
		},
	}
}

// setupCompleteMessage extracts the session id, which the SDK type does not
// expose on every version.
type setupCompleteMessage struct {
	SetupComplete *struct {
		SessionID string `json:"sessionId"`
	} `json:"setupComplete"`
}

// translate turns one server message into session events in the order they
// must be applied: audio first, then interruption, transcripts and finally
// the end of the turn.
func translate(msg *genai.LiveServerMessage, fallback audio.EncodingInfo) []events.Event {
	content := msg.ServerContent
	if content == nil {
		return nil
	}

	var out []events.Event
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "audio/pcm") {
				continue
			}
			out = append(out, events.NewAudioDelta(part.InlineData.Data, encodingFromMIME(part.InlineData.MIMEType, fallback)))
		}
	}
	if content.Interrupted {
		out = append(out, events.NewInterrupted())
	}
	if t := content.InputTranscription; t != nil && t.Text != "" {
		out = append(out, events.NewTranscriptDelta(events.SpeakerUser, t.Text))
	}
	if t := content.OutputTranscription; t != nil && t.Text != "" {
		out = append(out, events.NewTranscriptDelta(events.SpeakerModel, t.Text))
	}
	if content.TurnComplete {
		out = append(out, events.NewTurnComplete())
	}
	return out
}

// encodingFromMIME reads the rate parameter of an audio/pcm MIME type,
// keeping fallback's rate when it is missing or malformed.
func encodingFromMIME(mimeType string, fallback audio.EncodingInfo) audio.EncodingInfo {
	info := fallback
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return info
	}
	if rate, err := strconv.Atoi(params["rate"]); err == nil && rate > 0 {
		info.SampleRate = rate
	}
	return info
}
