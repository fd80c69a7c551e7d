package miniaudio

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/audio/miniaudio"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var droppedFrames, _ = meter.Int64Counter("audio.capture.dropped_frames",
	metric.WithDescription("Captured frames dropped because the consumer was not keeping up"))
