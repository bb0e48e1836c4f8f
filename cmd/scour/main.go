package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	inframetrics "github.com/tigerroll/scour/pkg/dq/infrastructure/metrics"
	"github.com/tigerroll/scour/pkg/dq/listener"
	"github.com/tigerroll/scour/pkg/dq/orchestrator"
	logger "github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// setupTracing installs a global OpenTelemetry TracerProvider tagged with
// the service name. Exporters attach through the usual OTel environment
// configuration; without one spans are recorded and dropped.
func setupTracing(ctx context.Context) func() {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "scour"),
		)),
	)
	otel.SetTracerProvider(tp)
	return func() {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warnf("Failed to shut down tracer provider: %v", err)
		}
	}
}

// runPipeline loads the input batch, executes the orchestrator over it, and
// logs the outcome. It drives the process exit through the Fx shutdowner.
func runPipeline(ctx context.Context, lc fx.Lifecycle, orch *orchestrator.Orchestrator, shutdowner fx.Shutdowner, inputPath string) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shut down application: %v", err)
					}
				}()

				b, err := loadBatch(inputPath)
				if err != nil {
					logger.Errorf("Failed to load input batch: %v", err)
					return
				}

				final, report, err := orch.Run(ctx, b)
				if err != nil {
					logger.Errorf("Run failed: %v", err)
					return
				}
				logOutcome(final, report)
			}()
			return nil
		},
	})
}

func logOutcome(final *model.Batch, report *model.Report) {
	logger.Infof("Run %s finished with status %s: %d records in, %d out, %d errors, %d warnings, %d infos.",
		report.RunID, report.Status,
		report.Quality.RecordsIn, report.Quality.RecordsOut,
		report.Count(model.SeverityError), report.Count(model.SeverityWarning), report.Count(model.SeverityInfo))
	if report.Status == model.RunStatusAborted {
		logger.Warnf("Run aborted: %s", report.AbortReason)
		return
	}
	logger.Infof("Error rate %.4f -> %.4f (reduction %.2f%%), final batch version %d.",
		report.Quality.InitialErrorRate, report.Quality.FinalErrorRate,
		report.Quality.ErrorReduction*100, final.Version)
	for _, entry := range report.Dictionary {
		logger.Infof("Dictionary: field=%s type=%s non_null=%d null_rate=%.4f cardinality=%d",
			entry.Field, entry.Type, entry.NonNull, entry.NullRate, entry.Cardinality)
	}
}

func main() {
	configPath := flag.String("config", "", "path to the application YAML configuration")
	inputPath := flag.String("input", "", "path to the input batch YAML document")
	flag.Parse()

	if *inputPath == "" {
		logger.Fatalf("No input batch given; use -input <file>.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping the run...", sig)
		cancel()
	}()

	shutdownTracing := setupTracing(ctx)
	defer shutdownTracing()

	app := fx.New(
		logger.Module,
		fx.Supply(
			fx.Annotated{Name: "configPath", Target: *configPath},
		),
		config.Module,
		inframetrics.Module,
		listener.Module,
		orchestrator.Module,
		fx.Invoke(func(lc fx.Lifecycle, orch *orchestrator.Orchestrator, shutdowner fx.Shutdowner) {
			runPipeline(ctx, lc, orch, shutdowner, *inputPath)
		}),
	)
	app.Run()

	if err := app.Err(); err != nil {
		logger.Errorf("Application failed: %v", err)
		os.Exit(1)
	}
}
