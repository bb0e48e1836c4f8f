// Package cleansing implements the cleansing stages of the pipeline:
// deduplication, missing-value imputation, outlier handling, and text
// standardization. Each stage consumes a batch and produces a new batch
// version plus a report; the input batch is never mutated. Stage kinds
// resolve through a registry so custom cleansers plug in through the same
// contract as the built-ins.
package cleansing

import (
	"context"
	"sync"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

const moduleName = "cleansing"

// Cleanser is one cleansing stage. Clean returns the replacement batch and
// the stage report; it returns an error only for an execution fault, never
// for a data finding.
type Cleanser interface {
	Name() string
	Clean(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error)
}

// Builder constructs a Cleanser from the pipeline configuration and the
// batch schema. Builders run before any stage executes, so a builder error
// is a configuration error.
type Builder func(cfg *config.PipelineConfig, schema model.Schema) (Cleanser, error)

var cleanserRegistry = make(map[string]Builder)
var registryMutex sync.RWMutex

// RegisterCleanserKind registers a cleanser builder under the given stage
// name. Registering an empty name or nil builder panics.
func RegisterCleanserKind(name string, builder Builder) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("cleanser kind name cannot be empty")
	}
	if builder == nil {
		panic("cannot register nil builder for cleanser kind: " + name)
	}
	cleanserRegistry[name] = builder
}

// IsCleanserKindRegistered checks whether the named stage kind is registered.
func IsCleanserKindRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := cleanserRegistry[name]
	return ok
}

// BuildStages resolves the configured stage order into Cleanser instances.
// An unknown stage name is a configuration error naming stage_order.
func BuildStages(cfg *config.PipelineConfig, schema model.Schema) ([]Cleanser, error) {
	order := cfg.StageOrderOrDefault()
	stages := make([]Cleanser, 0, len(order))

	for _, name := range order {
		registryMutex.RLock()
		builder, ok := cleanserRegistry[name]
		registryMutex.RUnlock()
		if !ok {
			return nil, exception.NewConfigErrorf(moduleName,
				"pipeline.stage_order", "unknown cleansing stage %q", name)
		}
		stage, err := builder(cfg, schema)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func init() {
	RegisterCleanserKind(config.StageDeduplicate, newDeduplicator)
	RegisterCleanserKind(config.StageImpute, newImputer)
	RegisterCleanserKind(config.StageOutliers, newOutlierHandler)
	RegisterCleanserKind(config.StageText, newTextStandardizer)
}
