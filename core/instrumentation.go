package live

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	framesSent, _ = meter.Int64Counter("live.frames.sent",
		metric.WithDescription("Captured frames handed to the transport"))
	framesDropped, _ = meter.Int64Counter("live.frames.dropped",
		metric.WithDescription("Captured frames that were not transmitted"))
	decodeErrors, _ = meter.Int64Counter("live.audio.decode_errors",
		metric.WithDescription("Response audio payloads dropped because they could not be decoded"))
)
