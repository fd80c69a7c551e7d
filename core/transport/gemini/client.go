// Package gemini connects live sessions to the Gemini Live
// BidiGenerateContent websocket endpoint.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice = "Zephyr"

	defaultLiveURL          = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	defaultRESTURL          = "https://generativelanguage.googleapis.com"
	defaultHandshakeTimeout = 15 * time.Second
	defaultWriteTimeout     = 5 * time.Second

	apiKeyHeader = "x-goog-api-key"
)

type Client struct {
	apiKey string
	model  string

	liveURL string
	restURL string

	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	preflight        bool

	dialer     *websocket.Dialer
	httpClient *http.Client
}

type ClientOption func(*Client)

// NewClient creates a client authenticated with apiKey. The key is not
// checked until a session is opened.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:           apiKey,
		model:            DefaultModel,
		liveURL:          defaultLiveURL,
		restURL:          defaultRESTURL,
		handshakeTimeout: defaultHandshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		preflight:        true,
		httpClient:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.dialer == nil {
		client.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: client.handshakeTimeout,
		}
	}
	return client
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithEndpoints overrides the websocket and REST base URLs. Empty values keep
// the defaults.
func WithEndpoints(liveURL, restURL string) ClientOption {
	return func(c *Client) {
		if liveURL != "" {
			c.liveURL = liveURL
		}
		if restURL != "" {
			c.restURL = strings.TrimSuffix(restURL, "/")
		}
	}
}

func WithHandshakeTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.handshakeTimeout = timeout
		}
	}
}

func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.writeTimeout = timeout
		}
	}
}

// WithCredentialPreflight toggles the REST lookup of the model made before
// dialing. The lookup turns a rejected key into a readable error instead of
// a bare websocket close.
func WithCredentialPreflight(enabled bool) ClientOption {
	return func(c *Client) {
		c.preflight = enabled
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func (c *Client) Model() string { return c.model }

// Connect opens a live session and returns once the remote confirmed the
// setup. Events are delivered through the callback set in opts until the
// connection is closed.
func (c *Client) Connect(ctx context.Context, opts ...transport.ConnectOption) (transport.Conn, error) {
	options := transport.DefaultConnectOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Voice == "" {
		options.Voice = DefaultVoice
	}

	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.String("request.voice", options.Voice),
	)

	conn, err := c.connect(ctx, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("response.session_id", conn.ID()))
	return conn, nil
}

func (c *Client) connect(ctx context.Context, options transport.ConnectOptions) (*conn, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", transport.ErrHandshakeFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	if c.preflight {
		if err := c.checkCredentials(ctx); err != nil {
			return nil, err
		}
	}

	header := http.Header{}
	header.Set(apiKeyHeader, c.apiKey)
	ws, resp, err := c.dialer.DialContext(ctx, c.liveURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial returned %s: %w", transport.ErrHandshakeFailed, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: %w: %w", transport.ErrHandshakeFailed, transport.ErrUnreachable, err)
	}

	conn := newConn(ws, options, c.writeTimeout)
	if err := conn.writeJSON(newSetupMessage(c.model, options)); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("%w: %w", transport.ErrHandshakeFailed, err)
	}
	if err := conn.awaitSetupComplete(ctx); err != nil {
		_ = ws.Close()
		return nil, err
	}

	go conn.readLoop()
	return conn, nil
}

func modelResourceName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
