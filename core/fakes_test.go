package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
)

type fakeInput struct {
	mu     sync.Mutex
	err    error
	calls  int
	frames chan audio.Frame
}

func newFakeInput() *fakeInput {
	return &fakeInput{}
}

func (i *fakeInput) EncodingInfo() audio.EncodingInfo { return audio.InputEncodingInfo() }

func (i *fakeInput) Frames(ctx context.Context) (<-chan audio.Frame, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.calls++
	if i.err != nil {
		return nil, i.err
	}

	in := make(chan audio.Frame)
	out := make(chan audio.Frame)
	i.frames = in
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-in:
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (i *fakeInput) callCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

type scheduledCall struct {
	at       time.Duration
	duration time.Duration
	handle   *fakeHandle
}

type fakeOutput struct {
	mu        sync.Mutex
	now       time.Duration
	startErr  error
	scheduled []scheduledCall
	starts    int
	stops     int
}

func (o *fakeOutput) EncodingInfo() audio.EncodingInfo { return audio.OutputEncodingInfo() }

func (o *fakeOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts++
	return o.startErr
}

func (o *fakeOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stops++
	return nil
}

func (o *fakeOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) setNow(now time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = now
}

func (o *fakeOutput) Schedule(buffer audio.Buffer, at time.Duration) (audio.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	handle := &fakeHandle{done: make(chan struct{})}
	o.scheduled = append(o.scheduled, scheduledCall{at: at, duration: buffer.Duration(), handle: handle})
	return handle, nil
}

func (o *fakeOutput) calls() []scheduledCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]scheduledCall(nil), o.scheduled...)
}

func (o *fakeOutput) stopCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops
}

type fakeHandle struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	once    sync.Once
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.finish()
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) finish() { h.once.Do(func() { close(h.done) }) }

func (h *fakeHandle) wasStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	closes int
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, pcm)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeConnector struct {
	mu      sync.Mutex
	calls   int
	err     error
	conn    *fakeConn
	options transport.ConnectOptions

	// block, when set, holds Connect until it is closed and then returns
	// the connection regardless of ctx.
	block chan struct{}
	// entered is signalled when Connect starts blocking.
	entered chan struct{}
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{conn: &fakeConn{id: "session-1"}}
}

func (c *fakeConnector) Connect(ctx context.Context, opts ...transport.ConnectOption) (transport.Conn, error) {
	options := transport.DefaultConnectOptions()
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.Lock()
	c.calls++
	c.options = options
	block, entered, err, conn := c.block, c.entered, c.err, c.conn
	c.mu.Unlock()

	if block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-block
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *fakeConnector) emit(event events.Event) {
	c.mu.Lock()
	onEvent := c.options.OnEvent
	c.mu.Unlock()
	onEvent(event)
}

func (c *fakeConnector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeConnector) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeConnector) setConn(conn *fakeConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// recorder collects UI callbacks in the order they ran.
type recorder struct {
	mu          sync.Mutex
	statuses    []string
	opened      []string
	speaking    []bool
	errors      []string
	transcripts map[events.Speaker]string
	turns       int
}

func newRecorder() *recorder {
	return &recorder{transcripts: map[events.Speaker]string{}}
}

func (r *recorder) options() []ManagerOption {
	return []ManagerOption{
		WithStatusCallback(func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, text)
		}),
		WithOpenCallback(func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.opened = append(r.opened, id)
		}),
		WithSpeakingCallback(func(speaking bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.speaking = append(r.speaking, speaking)
		}),
		WithErrorCallback(func(message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, message)
		}),
		WithTranscriptCallback(func(speaker events.Speaker, text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transcripts[speaker] = text
		}),
		WithTurnCompleteCallback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.turns++
		}),
	}
}

type recorded struct {
	statuses    []string
	opened      []string
	speaking    []bool
	errors      []string
	transcripts map[events.Speaker]string
	turns       int
}

func (r *recorder) snapshot() recorded {
	r.mu.Lock()
	defer r.mu.Unlock()

	transcripts := map[events.Speaker]string{}
	for speaker, text := range r.transcripts {
		transcripts[speaker] = text
	}
	return recorded{
		statuses:    append([]string(nil), r.statuses...),
		opened:      append([]string(nil), r.opened...),
		speaking:    append([]bool(nil), r.speaking...),
		errors:      append([]string(nil), r.errors...),
		transcripts: transcripts,
		turns:       r.turns,
	}
}

func (i *fakeInput) push(frame audio.Frame) {
	i.mu.Lock()
	frames := i.frames
	i.mu.Unlock()
	frames <- frame
}

func eventually(t testing.TB, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", message)
}

func (m *Manager) scheduledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduler.tracked()
}

// timelineOutput plays onto a real audio.Timeline without a device.
type timelineOutput struct {
	*audio.Timeline
}

func newTimelineOutput() timelineOutput {
	return timelineOutput{Timeline: audio.NewTimeline(audio.OutputSampleRate)}
}

func (timelineOutput) EncodingInfo() audio.EncodingInfo { return audio.OutputEncodingInfo() }
func (timelineOutput) Start() error                     { return nil }
func (timelineOutput) Stop() error                      { return nil }
