package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/scour/pkg/dq/listener/logging"
	"github.com/tigerroll/scour/pkg/dq/listener/metrics"
)

// Module aggregates all listener modules of the pipeline.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
)
