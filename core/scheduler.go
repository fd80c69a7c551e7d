package live

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
)

// scheduler places response buffers back to back on the output timeline and
// tracks the ones that have not finished yet.
//
// The cursor is kept as a sample count past an anchor position so that
// per-buffer duration rounding never accumulates into gaps or overlaps.
type scheduler struct {
	output audio.Output

	anchor     time.Duration
	pending    int64
	sampleRate int

	playing map[string]audio.Handle
}

func newScheduler(output audio.Output) *scheduler {
	return &scheduler{output: output, playing: map[string]audio.Handle{}}
}

type scheduledBuffer struct {
	id     string
	at     time.Duration
	handle audio.Handle
}

// cursor is where the next buffer starts. It never moves backwards except on
// interrupt, where it snaps to the device clock.
func (s *scheduler) cursor() time.Duration {
	if s.sampleRate <= 0 {
		return s.anchor
	}
	return s.anchor + time.Duration(s.pending*int64(time.Second)/int64(s.sampleRate))
}

func (s *scheduler) reanchor(at time.Duration, sampleRate int) {
	s.anchor = at
	s.pending = 0
	s.sampleRate = sampleRate
}

func (s *scheduler) schedule(buffer audio.Buffer) (scheduledBuffer, error) {
	if now, cursor := s.output.Now(), s.cursor(); now > cursor {
		s.reanchor(now, buffer.SampleRate)
	} else if buffer.SampleRate != s.sampleRate {
		s.reanchor(cursor, buffer.SampleRate)
	}

	at := s.cursor()
	handle, err := s.output.Schedule(buffer, at)
	if err != nil {
		return scheduledBuffer{}, fmt.Errorf("failed to schedule buffer at %s: %w", at, err)
	}

	scheduled := scheduledBuffer{id: uuid.NewString(), at: at, handle: handle}
	s.pending += int64(len(buffer.Samples))
	s.playing[scheduled.id] = handle
	return scheduled, nil
}

// finished forgets a buffer and reports whether nothing is left playing.
// Unknown ids, such as buffers already dropped by interrupt, report false.
func (s *scheduler) finished(id string) bool {
	if _, ok := s.playing[id]; !ok {
		return false
	}
	delete(s.playing, id)
	return len(s.playing) == 0
}

func (s *scheduler) interrupt() {
	for _, handle := range s.playing {
		handle.Stop()
	}
	clear(s.playing)
	s.reanchor(s.output.Now(), s.sampleRate)
}

func (s *scheduler) tracked() int {
	return len(s.playing)
}
