package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
)

// Status is the body served on /status.
type Status struct {
	Mode      string   `json:"mode"`
	Busy      bool     `json:"busy"`
	Protocols []string `json:"protocols"`
	Trials    int      `json:"trials"`
	Events    int      `json:"events"`
	LastEvent string   `json:"last_event,omitempty"`
}

// healthHandler reports that the process is alive.
func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports whether a batch is in flight and what the session
// holds so far.
func (app *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(app.status()); err != nil {
		logger.Warn("Failed to write status.", "error", err)
	}
}

func (app *App) status() Status {
	s := Status{
		Mode:      app.experiment.Mode,
		Busy:      app.worker.Busy(),
		Protocols: []string{},
		Trials:    app.store.Len(),
	}
	for _, p := range app.store.Protocols() {
		s.Protocols = append(s.Protocols, p.String())
	}
	names := app.memory.Names()
	s.Events = len(names)
	if len(names) > 0 {
		s.LastEvent = names[len(names)-1]
	}
	return s
}

func (app *App) healthMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", app.healthHandler)
	mux.HandleFunc("/status", app.statusHandler)
	return mux
}

// healthCheckServer initializes and runs the health check HTTP server.
func (app *App) healthCheckServer() {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Configuring health check server.")
	if app.config.HealthcheckPort <= 0 {
		logger.Debug("Health check server not started: disabled")
		return
	}

	addr := fmt.Sprintf(":%d", app.config.HealthcheckPort)
	app.httpServer = &http.Server{
		Addr:              addr,
		Handler:           app.healthMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (app *App) closeHealthCheckServer() error {
	logger := ctxlog.FromContext(app.ctx)
	if app.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(app.ctx), 5*time.Second)
	defer cancel()

	logger.Info("Shutting down health check server...")
	if err := app.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	app.httpServer = nil
	return nil
}
