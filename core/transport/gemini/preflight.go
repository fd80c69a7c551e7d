package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
)

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// checkCredentials looks the configured model up over REST with the API key.
// Any non-2xx answer fails the handshake with the remote's own message.
func (c *Client) checkCredentials(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "check credentials")
	defer span.End()

	url := c.restURL + "/v1beta/" + modelResourceName(c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", transport.ErrHandshakeFailed, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w: %w", transport.ErrHandshakeFailed, transport.ErrUnreachable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		err = fmt.Errorf("%w: %s", transport.ErrHandshakeFailed, apiErr.Error.Message)
		span.RecordError(err)
		return err
	}
	err = fmt.Errorf("%w: credential check returned %s", transport.ErrHandshakeFailed, resp.Status)
	span.RecordError(err)
	return err
}
