package supervisor

import (
	"context"
	"errors"
	"sync"

	"tglaunch/internal/backend"
	"tglaunch/internal/bootstrap"
	"tglaunch/internal/common/fsutil"
	"tglaunch/pkg/types"
)

// Manager supervises a single backend process. Start, Stop and Status all
// hold mu for their full duration, so a start never interleaves with a
// stop and every snapshot sees a consistent handle.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	handle    backend.Handle
	lastError string
}

// New constructs a Manager. Nothing is launched until Start.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

// BackendURL returns the base URL clients use for translation calls.
func (m *Manager) BackendURL() string { return m.cfg.BackendURL }

// Start launches the backend unless it is already running. Failures are
// recorded as last_error in the returned snapshot, never returned.
func (m *Manager) Start(ctx context.Context) types.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap()
	if m.handle.IsAlive() {
		startsTotal.WithLabelValues("already_running").Inc()
		return m.snapshot(ctx)
	}
	err := m.launch()
	startsTotal.WithLabelValues(startResult(err)).Inc()
	if err != nil {
		m.lastError = err.Error()
		m.cfg.Logger.Error().Err(err).Str("event", "start_failed").Msg("backend start failed")
	} else {
		m.lastError = ""
	}
	return m.snapshot(ctx)
}

// launch prepares the runtime and spawns the backend. Must hold mu.
func (m *Manager) launch() error {
	// A start queued behind shutdown must not spawn an orphan.
	if err := m.cfg.BaseContext.Err(); err != nil {
		return &bootstrap.Error{Step: "runtime", Err: err}
	}
	if m.cfg.Runtime == nil {
		return &bootstrap.Error{Step: "runtime", Err: errors.New("no backend runtime configured")}
	}
	sink, err := fsutil.OpenAppend(m.cfg.LogPath)
	if err != nil {
		return &backend.LaunchError{Path: m.cfg.LogPath, Err: err}
	}
	// The child keeps its own descriptor; ours is only needed until Start.
	defer sink.Close()

	m.cfg.Logger.Info().Str("event", "bootstrap").Msg("preparing backend runtime")
	cmd, err := m.cfg.Runtime.Prepare(m.cfg.BaseContext, sink)
	if err != nil {
		return err
	}
	if err := m.handle.Launch(cmd, sink); err != nil {
		return err
	}
	pid, _ := m.handle.PID()
	m.cfg.Logger.Info().Str("event", "launch").Int("pid", pid).Str("path", cmd.Path).
		Str("log", m.cfg.LogPath).Msg("backend launched")
	return nil
}

// Stop terminates the backend if it is running and returns once the
// process is gone (bounded by the grace period plus a forced kill).
func (m *Manager) Stop(ctx context.Context) types.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap()
	if !m.handle.IsAlive() {
		stopsTotal.WithLabelValues("not_running").Inc()
		return m.snapshot(ctx)
	}
	res := m.handle.Terminate(m.cfg.GracePeriod)
	mode := "graceful"
	if res.Forced {
		mode = "forced"
	}
	stopsTotal.WithLabelValues(mode).Inc()
	m.cfg.Logger.Info().Str("event", "terminate").Int("pid", res.PID).Bool("forced", res.Forced).
		Msg("backend stopped")
	return m.snapshot(ctx)
}

// Status reports the current backend state without changing it.
func (m *Manager) Status(ctx context.Context) types.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap()
	return m.snapshot(ctx)
}

// Shutdown stops the backend on supervisor exit. Best effort.
func (m *Manager) Shutdown(ctx context.Context) {
	s := m.Stop(ctx)
	m.cfg.Logger.Info().Bool("backend_running", s.Running).Msg("supervisor shutdown")
}

// reap logs a backend that exited on its own since the last call.
// Must hold mu.
func (m *Manager) reap() {
	info, ok := m.handle.Reap()
	if !ok {
		return
	}
	exitsTotal.Inc()
	ev := m.cfg.Logger.Warn().Str("event", "exit").Int("pid", info.PID)
	if info.Err != nil {
		ev = ev.Err(info.Err)
	}
	ev.Msg("backend exited")
}
