package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/manetbench/internal/config"
	"github.com/specialistvlad/manetbench/internal/controller"
	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/specialistvlad/manetbench/internal/engine"
	"github.com/specialistvlad/manetbench/internal/events"
	"github.com/specialistvlad/manetbench/internal/nedscan"
	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/specialistvlad/manetbench/internal/report"
	"github.com/specialistvlad/manetbench/internal/results"
	"github.com/specialistvlad/manetbench/internal/session"
	"github.com/specialistvlad/manetbench/internal/synth"
	"github.com/specialistvlad/manetbench/internal/trial"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	experiment *config.Experiment
	base       params.Parameters
	store      *session.Store
	worker     *controller.Worker
	memory     *events.Memory
	httpServer *http.Server
}

// NewApp loads the experiment file, applies the operator overrides and
// validates the base parameters. No trial runs before every value is known
// to be usable.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	x, err := config.Load(ctx, cfg.ExperimentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}
	cfg.apply(x)

	app := &App{
		ctx:        ctx,
		outW:       outW,
		logger:     logger,
		config:     cfg,
		experiment: x,
		store:      session.New(),
		worker:     controller.NewWorker(),
		memory:     &events.Memory{},
	}
	if x.Mode == config.ModeNetworks {
		return app, nil
	}

	base, err := x.BaseParameters()
	if err != nil {
		return nil, err
	}
	if app.base, err = params.ApplyStrings(base, cfg.Set); err != nil {
		return nil, err
	}
	if err := app.batch().Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Experiment ready.", "mode", x.Mode, "protocol", x.Protocol, "runs", x.Runs, "start_seed", x.StartSeed)
	return app, nil
}

// Experiment returns the effective experiment. This is primarily for testing.
func (a *App) Experiment() *config.Experiment { return a.experiment }

// Store returns the session store. This is primarily for testing.
func (a *App) Store() *session.Store { return a.store }

// Run executes the selected action and waits for it to finish.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.", "mode", a.experiment.Mode)

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	if a.experiment.Mode == config.ModeNetworks {
		return a.listNetworks(ctx)
	}

	publisher, closePublisher := a.publisher(ctx)
	defer closePublisher()

	ctrl := controller.New(a.orchestrator(), a.store, a.outW, publisher)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.worker.Start(workerCtx)

	mode := a.experiment.Mode
	req := a.controllerRequest()
	var outcome controller.Outcome
	done, err := a.worker.Submit(ctx, controller.Job{
		Name: mode,
		Run: func(ctx context.Context) error {
			var err error
			if mode == config.ModeCompare {
				_, outcome, err = ctrl.RunComparison(ctx, req)
			} else {
				_, outcome, err = ctrl.RunSingle(ctx, req)
			}
			return err
		},
	})
	if err != nil {
		return err
	}

	result := <-done
	publisher.Publish(ctx, events.Done(mode, result.Err))

	if a.config.ReportOut != "" && len(outcome.Records) > 0 {
		doc := report.NewDocument(mode, a.base, outcome.Records, outcome.Summaries, outcome.Comparison)
		if err := report.WriteFile(a.config.ReportOut, doc); err != nil {
			a.logger.Error("Failed to export report.", "path", a.config.ReportOut, "error", err)
			if result.Err == nil {
				return err
			}
		} else {
			a.logger.Info("Report exported.", "path", a.config.ReportOut)
		}
	}

	a.logger.Debug("App.Run method finished.", "error", result.Err)
	return result.Err
}

func (a *App) orchestrator() *trial.Orchestrator {
	eng := a.experiment.Engine
	resultsDir := eng.ResultsPath()
	return trial.New(
		synth.New(eng.ConfigPath(), synth.Options{}),
		engine.New(eng.RunnerConfig()),
		results.NewExtractor(resultsDir),
		a.store,
		resultsDir,
	)
}

func (a *App) batch() trial.Batch {
	return trial.Batch{
		Protocol:  a.experiment.Protocol,
		Params:    a.base,
		StartSeed: a.experiment.StartSeed,
		Runs:      a.experiment.Runs,
	}
}

func (a *App) controllerRequest() controller.Request {
	return controller.Request{
		Protocol:  a.experiment.Protocol,
		Params:    a.base,
		StartSeed: a.experiment.StartSeed,
		Runs:      a.experiment.Runs,
		Strict:    a.experiment.StrictProtocols,
	}
}

// publisher always records events in memory for /status and adds a
// socket.io publisher when an events URL is configured. A server that
// cannot be reached only costs the remote events.
func (a *App) publisher(ctx context.Context) (events.Publisher, func()) {
	if a.config.EventsURL == "" {
		return a.memory, func() {}
	}
	sio, err := events.Dial(ctx, a.config.EventsURL, events.DialOptions{})
	if err != nil {
		a.logger.Warn("Event publisher unavailable, continuing without it.", "url", a.config.EventsURL, "error", err)
		return a.memory, func() {}
	}
	return events.Multi{a.memory, sio}, sio.Close
}

func (a *App) listNetworks(ctx context.Context) error {
	workingDir := a.experiment.Engine.WorkingDir
	if a.config.Network != "" {
		name, ok := nedscan.Qualify(ctx, workingDir, a.config.Network)
		if !ok {
			return fmt.Errorf("network %q not declared under %s", a.config.Network, workingDir)
		}
		fmt.Fprintln(a.outW, name)
		return nil
	}

	names, err := nedscan.Networks(ctx, workingDir)
	if err != nil {
		return fmt.Errorf("failed to scan networks: %w", err)
	}
	fmt.Fprintf(a.outW, "Available networks (%d):\n", len(names))
	for _, n := range names {
		fmt.Fprintf(a.outW, "  %s\n", n)
	}
	return nil
}
