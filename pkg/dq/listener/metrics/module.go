package metrics

import (
	"go.uber.org/fx"
)

// Module provides the metrics listeners into the listener groups the
// orchestrator consumes. It expects a metrics.MetricRecorder in the graph.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewMetricsRunListener, fx.ResultTags(`group:"runListeners"`))),
	fx.Provide(fx.Annotate(NewMetricsStageListener, fx.ResultTags(`group:"stageListeners"`))),
)
