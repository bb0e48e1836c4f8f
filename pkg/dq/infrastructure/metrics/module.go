package metrics

import (
	"go.uber.org/fx"

	metrics "github.com/tigerroll/scour/pkg/dq/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder and
// OpenTelemetryTracer as the metrics interfaces.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
