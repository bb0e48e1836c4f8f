package logging

import (
	"go.uber.org/fx"
)

// Module provides the logging listeners into the listener groups the
// orchestrator consumes.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingRunListener, fx.ResultTags(`group:"runListeners"`))),
	fx.Provide(fx.Annotate(NewLoggingStageListener, fx.ResultTags(`group:"stageListeners"`))),
)
