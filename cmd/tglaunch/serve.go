package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tglaunch/internal/backend"
	"tglaunch/internal/bootstrap"
	"tglaunch/internal/config"
	"tglaunch/internal/httpapi"
	"tglaunch/internal/supervisor"
)

const shutdownTimeout = 5 * time.Second

func runServe(cmd *cobra.Command, opts *options, getenv func(string) string) error {
	cfg, err := loadConfig(cmd, opts, getenv)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	return serve(cmd.Context(), cfg, log, nil)
}

// runtimeFor picks the backend runtime: an explicit command when
// configured, otherwise the managed virtualenv.
func runtimeFor(cfg config.Config) bootstrap.Runtime {
	env := map[string]string{
		"PYTHONUNBUFFERED": "1",
		"PORT":             cfg.BackendPort(),
	}
	if len(cfg.BackendCommand) > 0 {
		return bootstrap.Static{Command: cfg.BackendCommand, Dir: cfg.ServerDir, Env: env}
	}
	return bootstrap.Venv{
		ServerDir:    cfg.ServerDir,
		VenvDir:      cfg.VenvDir,
		Entrypoint:   cfg.Entrypoint,
		Requirements: cfg.Requirements,
		Python:       cfg.Python,
		Env:          env,
	}
}

func newManager(ctx context.Context, cfg config.Config, log zerolog.Logger) *supervisor.Manager {
	return supervisor.New(supervisor.Config{
		BackendURL:  cfg.ServerURL,
		LogPath:     cfg.LogFile,
		GracePeriod: time.Duration(cfg.GracePeriod),
		Runtime:     runtimeFor(cfg),
		Prober:      backend.NewProber(nil, time.Duration(cfg.ProbeTimeout)),
		Modes:       backend.NewModeDetector(cfg.ModeMarker, cfg.LogTailLines),
		Logger:      log.With().Str("component", "supervisor").Logger(),
		BaseContext: ctx,
	})
}

// acquireLock takes the per-server-dir lock next to the backend log. Two
// supervisors must never share one log and venv.
func acquireLock(cfg config.Config) (*flock.Flock, error) {
	dir := filepath.Dir(cfg.LogFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, "tglaunch.lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another tglaunch supervisor holds %s", path)
	}
	return lock, nil
}

// serve runs the control API until ctx is canceled, then stops the
// backend and drains the server. ready, when non-nil, receives the bound
// address.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, ready chan<- string) error {
	lock, err := acquireLock(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	mgr := newManager(ctx, cfg, log)

	var origins []string
	if cfg.CORS.Enabled {
		origins = cfg.CORS.AllowedOrigins
	}
	handler := httpapi.NewMux(mgr, httpapi.Options{
		Logger:      log.With().Str("component", "httpapi").Logger(),
		Metrics:     cfg.MetricsEnabled,
		CORSOrigins: origins,
	})

	ln, err := net.Listen("tcp", cfg.ControlAddr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ControlAddr(), err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	log.Info().Str("addr", addr).Str("server_url", cfg.ServerURL).Str("log_file", cfg.LogFile).
		Int("pid", os.Getpid()).Msg("control api listening")
	if ready != nil {
		ready <- addr
	}

	// After the bind, so clients can watch the backend come up.
	var autoStart sync.WaitGroup
	if cfg.AutoStart {
		autoStart.Add(1)
		go func() {
			defer autoStart.Done()
			s := mgr.Start(ctx)
			if s.LastError != nil {
				log.Warn().Str("last_error", *s.LastError).Msg("auto start failed")
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("control api: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	mgr.Shutdown(context.Background())
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	// A start accepted while draining may have relaunched the backend.
	autoStart.Wait()
	mgr.Shutdown(context.Background())
	return serveErr
}
