package audio

import (
	"fmt"
	"sync"
	"time"
)

// Timeline is a sample-accurate playback mixer. Buffers are scheduled at
// positions on the timeline and a device callback pulls mixed output through
// Render, which is also what advances the timeline clock.
type Timeline struct {
	mu sync.Mutex

	sampleRate int
	// position is the number of frames rendered so far.
	position int64
	voices   []*timelineVoice
}

type timelineVoice struct {
	timeline *Timeline

	start   int64
	samples []float32

	done     chan struct{}
	doneOnce sync.Once
}

func NewTimeline(sampleRate int) *Timeline {
	return &Timeline{sampleRate: sampleRate}
}

func (t *Timeline) SampleRate() int { return t.sampleRate }

func (t *Timeline) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.durationOf(t.position)
}

// Schedule places buffer on the timeline starting at at. Buffers scheduled in
// the past start at the current position.
func (t *Timeline) Schedule(buffer Buffer, at time.Duration) (Handle, error) {
	if buffer.SampleRate != 0 && buffer.SampleRate != t.sampleRate {
		return nil, fmt.Errorf("buffer sample rate %d does not match timeline rate %d", buffer.SampleRate, t.sampleRate)
	}

	v := &timelineVoice{
		timeline: t,
		samples:  buffer.Samples,
		done:     make(chan struct{}),
	}
	if len(buffer.Samples) == 0 {
		v.finish()
		return v, nil
	}

	t.mu.Lock()
	v.start = max(t.framesAt(at), t.position)
	t.voices = append(t.voices, v)
	t.mu.Unlock()
	return v, nil
}

// Render fills out with the mix of every voice overlapping the next len(out)
// frames and advances the timeline by that many frames. Voices that end
// within the rendered range are completed.
func (t *Timeline) Render(out []float32) {
	clear(out)

	t.mu.Lock()
	end := t.position + int64(len(out))
	var finished []*timelineVoice
	active := t.voices[:0]
	for _, v := range t.voices {
		voiceEnd := v.start + int64(len(v.samples))
		from := max(v.start, t.position)
		to := min(voiceEnd, end)
		for p := from; p < to; p++ {
			out[p-t.position] += v.samples[p-v.start]
		}

		if voiceEnd <= end {
			finished = append(finished, v)
		} else {
			active = append(active, v)
		}
	}
	clear(t.voices[len(active):])
	t.voices = active
	t.position = end
	t.mu.Unlock()

	for i, sample := range out {
		out[i] = max(-1, min(1, sample))
	}
	for _, v := range finished {
		v.finish()
	}
}

// Reset drops every scheduled voice without advancing the clock.
func (t *Timeline) Reset() {
	t.mu.Lock()
	voices := t.voices
	t.voices = nil
	t.mu.Unlock()

	for _, v := range voices {
		v.finish()
	}
}

func (t *Timeline) remove(target *timelineVoice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, v := range t.voices {
		if v == target {
			t.voices = append(t.voices[:i], t.voices[i+1:]...)
			return
		}
	}
}

func (t *Timeline) framesAt(at time.Duration) int64 {
	if at <= 0 || t.sampleRate <= 0 {
		return 0
	}
	// Rounded so a duration derived from a frame count maps back to that
	// frame even after nanosecond truncation.
	return (int64(at)*int64(t.sampleRate) + int64(time.Second)/2) / int64(time.Second)
}

func (t *Timeline) durationOf(frames int64) time.Duration {
	if t.sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(t.sampleRate))
}

func (v *timelineVoice) Stop() {
	v.timeline.remove(v)
	v.finish()
}

func (v *timelineVoice) Done() <-chan struct{} { return v.done }

func (v *timelineVoice) finish() {
	v.doneOnce.Do(func() { close(v.done) })
}
