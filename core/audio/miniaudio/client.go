package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// Client owns the miniaudio context shared by the capture and playback
// devices.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	capture      *Capture
	playback     *Playback
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	frameSize int
}

// WithFrameSize sets the number of samples per captured frame.
func WithFrameSize(size int) ClientOption {
	return func(o *clientOptions) {
		o.frameSize = size
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	options := clientOptions{frameSize: audio.DefaultFrameSize}
	for _, opt := range opts {
		opt(&options)
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	return &Client{
		audioContext: audioCtx,
		capture:      &Capture{audioContext: audioCtx, frameSize: options.frameSize},
		playback:     &Playback{audioContext: audioCtx, timeline: audio.NewTimeline(audio.OutputSampleRate)},
	}, nil
}

// Input is the microphone, captured at 16 kHz.
func (c *Client) Input() *Capture { return c.capture }

// Output is the speaker, played at 24 kHz.
func (c *Client) Output() *Playback { return c.playback }

func (c *Client) Close() {
	_ = c.playback.Stop()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}
