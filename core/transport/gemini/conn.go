package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/metric"
)

var malformedMessages, _ = meter.Int64Counter("gemini.live.malformed_messages",
	metric.WithDescription("Server messages dropped because they could not be decoded"))

var audioDecodeErrors, _ = meter.Int64Counter("gemini.live.audio_decode_errors",
	metric.WithDescription("Response audio parts dropped because their payload was not valid base64"))

type conn struct {
	ws *websocket.Conn
	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu      sync.Mutex
	writeTimeout time.Duration

	id      string
	options transport.ConnectOptions

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, options transport.ConnectOptions, writeTimeout time.Duration) *conn {
	return &conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		options:      options,
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) SendAudio(pcm []byte) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	if err := c.writeJSON(newAudioMessage(pcm, c.options.InputEncodingInfo)); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}
	return nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *conn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write live message: %w", err)
	}
	return nil
}

// awaitSetupComplete reads until the remote acknowledges the setup. A close
// frame at this stage carries the reason the session was refused, which is
// usually a rejected key or model.
func (c *conn) awaitSetupComplete(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				reason := closeErr.Text
				if reason == "" {
					reason = fmt.Sprintf("remote closed with code %d", closeErr.Code)
				}
				return fmt.Errorf("%w: %s", transport.ErrHandshakeFailed, reason)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", transport.ErrHandshakeFailed, ctxErr)
			}
			return fmt.Errorf("%w: %w", transport.ErrHandshakeFailed, err)
		}

		var setup setupCompleteMessage
		if err := json.Unmarshal(data, &setup); err == nil && setup.SetupComplete != nil {
			c.id = setup.SetupComplete.SessionID
			if c.id == "" {
				c.id = uuid.NewString()
			}
			_ = c.ws.SetReadDeadline(time.Time{})
			logger.Info("live session opened", "session_id", c.id)
			return nil
		}
		c.handleMessage(data)
	}
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.handleMessage(data)
	}
}

func (c *conn) handleReadError(err error) {
	if c.closed.Load() {
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			logger.Info("live session closed by remote", "session_id", c.id, "reason", closeErr.Text)
			c.options.OnEvent(events.NewClosed(closeErr.Text))
			return
		}
		logger.Warn("live session closed abnormally", "session_id", c.id, "code", closeErr.Code, "reason", closeErr.Text)
		c.options.OnEvent(events.NewError(fmt.Errorf("%w: %s (code %d)", transport.ErrTransport, closeErr.Text, closeErr.Code)))
		return
	}

	logger.Warn("live session read failed", "session_id", c.id, "error", err)
	c.options.OnEvent(events.NewError(fmt.Errorf("%w: %w", transport.ErrTransport, err)))
}

func (c *conn) handleMessage(data []byte) {
	msg, dropped, err := decodeServerMessage(data)
	if dropped > 0 {
		logger.Warn("dropping undecodable response audio", "session_id", c.id, "parts", dropped)
		audioDecodeErrors.Add(context.Background(), int64(dropped))
	}
	if err != nil {
		logger.Warn("dropping malformed live message", "session_id", c.id, "error", err)
		malformedMessages.Add(context.Background(), 1)
		return
	}
	if msg.GoAway != nil {
		logger.Info("remote announced the session will end soon", "session_id", c.id)
	}

	for _, event := range translate(msg, c.outputEncodingInfo()) {
		c.options.OnEvent(event)
	}
}

func (c *conn) outputEncodingInfo() audio.EncodingInfo {
	if c.options.OutputEncodingInfo.IsZero() {
		return audio.OutputEncodingInfo()
	}
	return c.options.OutputEncodingInfo
}
