// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modfed/modfed/internal/observability"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin host with an admin HTTP API",
		Long: `Run the plugin host process. Exposes an admin HTTP API for
discovering, loading, and invoking plugins, plus a metrics/health endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	addEngineFlags(cmd)
	cmd.Flags().String("server-addr", "", "admin HTTP API address")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			slog.Warn("error closing loaded modules", "error", closeErr)
		}
	}()

	slog.Info("starting plugin host",
		"registry_url", cfg.Registry.URL,
		"server_addr", cfg.Server.Addr,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newAdminHandler(eng),
		ReadHeaderTimeout: 5 * time.Second,
	}

	adminErrChan := make(chan error, 1)
	go func() {
		if serveErr := adminServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			adminErrChan <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, adminErrChan, "admin-http")

	slog.Info("admin HTTP API listening", "addr", cfg.Server.Addr)

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, eng.discovery.Ready)
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return fmt.Errorf("failed to start observability server: %w", obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Plugin host started")

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping admin HTTP server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failing server triggers shutdown of the whole
// process.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

// newAdminHandler builds the admin HTTP API.
//
//	GET  /api/plugins              discover loadable plugins
//	POST /api/plugins/{id}/load    load a plugin's module
//	POST /api/plugins/{id}/invoke  invoke a loaded module function (?fn=name)
func newAdminHandler(eng *engine) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/plugins", func(w http.ResponseWriter, r *http.Request) {
		manifests, err := eng.discovery.Discover(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, manifests)
	})

	mux.HandleFunc("POST /api/plugins/{id}/load", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		m, err := resolveManifest(r.Context(), eng, "", id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		if _, err := eng.loader.Load(r.Context(), m); err != nil {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":      m.ID,
			"version": m.Version,
			"status":  "loaded",
		})
	})

	mux.HandleFunc("POST /api/plugins/{id}/invoke", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		fn := r.URL.Query().Get("fn")
		if fn == "" {
			writeJSONError(w, http.StatusBadRequest, errors.New("query parameter 'fn' is required"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		m, err := resolveManifest(r.Context(), eng, "", id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		h, err := eng.loader.Load(r.Context(), m)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}

		out, err := h.Invoke(r.Context(), fn, payload)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
