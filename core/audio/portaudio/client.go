package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
)

// Client is a PortAudio backed alternative to the miniaudio devices. Capture
// uses a blocking stream read one frame at a time, playback a callback
// stream rendering the shared timeline.
type Client struct {
	capture  *Capture
	playback *Playback
}

func NewClient(frameSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}

	return &Client{
		capture:  &Capture{frameSize: frameSize},
		playback: &Playback{timeline: audio.NewTimeline(audio.OutputSampleRate)},
	}, nil
}

func (c *Client) Input() *Capture { return c.capture }

func (c *Client) Output() *Playback { return c.playback }

func (c *Client) Close() {
	_ = c.playback.Stop()
	_ = portaudio.Terminate()
}

type Capture struct {
	frameSize int
}

func (c *Capture) EncodingInfo() audio.EncodingInfo {
	return audio.InputEncodingInfo()
}

func (c *Capture) Frames(ctx context.Context) (<-chan audio.Frame, error) {
	in := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.InputSampleRate, c.frameSize, in)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PortAudio input stream: %w", audio.ErrInputUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: failed to start PortAudio input stream: %w", audio.ErrInputUnavailable, err)
	}

	frames := make(chan audio.Frame, 4)
	go func() {
		defer close(frames)
		defer stream.Close()
		defer stream.Stop()

		for ctx.Err() == nil {
			if err := stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
				logger.Warn("failed to read from PortAudio stream", "error", err)
				return
			}

			frame := make(audio.Frame, len(in))
			copy(frame, in)
			select {
			case frames <- frame:
			default:
				droppedFrames.Add(context.Background(), 1)
			}
		}
	}()

	return frames, nil
}

type Playback struct {
	timeline *audio.Timeline

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (p *Playback) EncodingInfo() audio.EncodingInfo {
	return audio.OutputEncodingInfo()
}

func (p *Playback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, audio.OutputSampleRate, 0, func(out []float32) {
		p.timeline.Render(out)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to open PortAudio output stream: %w", audio.ErrOutputUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: failed to start PortAudio output stream: %w", audio.ErrOutputUnavailable, err)
	}

	p.stream = stream
	return nil
}

func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}

	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	p.stream = nil
	p.timeline.Reset()
	if err := errors.Join(stopErr, closeErr); err != nil {
		return fmt.Errorf("failed to stop PortAudio output stream: %w", err)
	}
	return nil
}

func (p *Playback) Now() time.Duration {
	return p.timeline.Now()
}

func (p *Playback) Schedule(buffer audio.Buffer, at time.Duration) (audio.Handle, error) {
	return p.timeline.Schedule(buffer, at)
}
