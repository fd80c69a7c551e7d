package miniaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// Playback renders a timeline to the default playback device. The device
// callback drives the timeline clock.
type Playback struct {
	audioContext *malgo.AllocatedContext
	timeline     *audio.Timeline

	mu      sync.Mutex
	device  *malgo.Device
	scratch []float32
}

func (p *Playback) EncodingInfo() audio.EncodingInfo {
	return audio.OutputEncodingInfo()
}

func (p *Playback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		return nil
	}

	sampleRate := uint32(audio.OutputSampleRate)
	format := malgo.FormatS16

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	config.Periods = 3

	device, err := malgo.InitDevice(p.audioContext.Context, config, malgo.DeviceCallbacks{Data: p.render})
	if err != nil {
		return fmt.Errorf("%w: failed to initialize playback device: %w", audio.ErrOutputUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: failed to start playback device: %w", audio.ErrOutputUnavailable, err)
	}

	p.device = device
	return nil
}

func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return nil
	}

	err := p.device.Stop()
	p.device.Uninit()
	p.device = nil
	p.timeline.Reset()
	if err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (p *Playback) Now() time.Duration {
	return p.timeline.Now()
}

func (p *Playback) Schedule(buffer audio.Buffer, at time.Duration) (audio.Handle, error) {
	return p.timeline.Schedule(buffer, at)
}

// render is the device data callback. It only runs on the device thread, so
// scratch needs no locking.
func (p *Playback) render(pOutput, _ []byte, frameCount uint32) {
	n := int(frameCount)
	if cap(p.scratch) < n {
		p.scratch = make([]float32, n)
	}
	samples := p.scratch[:n]

	p.timeline.Render(samples)
	audio.EncodePCM16Into(pOutput, samples)
}
