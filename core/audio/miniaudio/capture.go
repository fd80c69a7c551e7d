package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

type Capture struct {
	audioContext *malgo.AllocatedContext
	frameSize    int
}

func (c *Capture) EncodingInfo() audio.EncodingInfo {
	return audio.InputEncodingInfo()
}

// Frames opens the default capture device and streams fixed-size frames until
// ctx is cancelled. Frames the consumer is not ready for are dropped.
func (c *Capture) Frames(ctx context.Context) (<-chan audio.Frame, error) {
	format := malgo.FormatF32
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = audio.InputSampleRate
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency

	framer := audio.NewFramer(c.frameSize)
	frames := make(chan audio.Frame, 4)

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			framer.Write(audio.DecodeFloat32(pInput[:n]), func(frame audio.Frame) {
				select {
				case frames <- frame:
				default:
					droppedFrames.Add(context.Background(), 1)
				}
			})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize capture device: %w", audio.ErrInputUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: failed to start capture device: %w", audio.ErrInputUnavailable, err)
	}

	go func() {
		<-ctx.Done()
		// Stop waits for the data callback to return, so nothing writes to
		// frames once it is closed.
		if err := device.Stop(); err != nil {
			logger.Warn("failed to stop capture device", "error", err)
		}
		device.Uninit()
		close(frames)
	}()

	return frames, nil
}
