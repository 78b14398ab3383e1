package supervisor

import (
	"context"

	"tglaunch/pkg/types"
)

// snapshot composes a point-in-time status. Must hold mu.
func (m *Manager) snapshot(ctx context.Context) types.StatusSnapshot {
	s := types.StatusSnapshot{URL: m.cfg.BackendURL}
	if pid, ok := m.handle.PID(); ok {
		s.Running = true
		s.PID = &pid
		s.Ready = m.cfg.Prober.Probe(ctx, m.cfg.BackendURL)
	}
	if mode, ok := m.cfg.Modes.Detect(m.cfg.LogPath); ok {
		s.Mode = &mode
	}
	if m.lastError != "" {
		e := m.lastError
		s.LastError = &e
	}
	boolGauge(backendUp, s.Running)
	boolGauge(backendReady, s.Ready)
	return s
}
