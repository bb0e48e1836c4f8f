package metrics

import "go.uber.org/fx"

// NoOpModule is an Fx module providing no-op metrics and tracing.
// Production wiring uses pkg/dq/infrastructure/metrics instead.
var NoOpModule = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
