package orchestrator

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	"github.com/tigerroll/scour/pkg/dq/core/metrics"
	port "github.com/tigerroll/scour/pkg/dq/core/port"
)

// OrchestratorParams receives the orchestrator's collaborators from Fx,
// including every listener provided into the listener groups.
type OrchestratorParams struct {
	fx.In

	Cfg            *config.Config
	Recorder       metrics.MetricRecorder
	Tracer         metrics.Tracer
	RunListeners   []port.RunExecutionListener   `group:"runListeners"`
	StageListeners []port.StageExecutionListener `group:"stageListeners"`
}

// NewOrchestratorProvider is the Fx constructor for the Orchestrator.
func NewOrchestratorProvider(p OrchestratorParams) *Orchestrator {
	return NewOrchestrator(p.Cfg, p.Recorder, p.Tracer, p.RunListeners, p.StageListeners)
}

// Module provides the Orchestrator.
var Module = fx.Options(
	fx.Provide(NewOrchestratorProvider),
)
