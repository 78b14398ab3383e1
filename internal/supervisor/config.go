package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tglaunch/internal/backend"
	"tglaunch/internal/bootstrap"
)

// DefaultGracePeriod is how long Stop waits for a graceful exit before
// killing the backend.
const DefaultGracePeriod = 8 * time.Second

// Prober reports backend readiness. Failures must read as false.
type Prober interface {
	Probe(ctx context.Context, baseURL string) bool
}

// ModeSource recovers the backend compute mode from its log.
type ModeSource interface {
	Detect(logPath string) (string, bool)
}

// Config encapsulates everything Manager needs. Zero values get defaults.
type Config struct {
	// BackendURL is probed for readiness and reported to clients.
	BackendURL string
	// LogPath is the append-only file receiving backend stdout and stderr.
	LogPath string
	// GracePeriod bounds the graceful phase of Stop.
	GracePeriod time.Duration
	// Runtime prepares the environment and yields the launch command.
	Runtime bootstrap.Runtime
	Prober  Prober
	Modes   ModeSource
	Logger  zerolog.Logger
	// BaseContext scopes runtime preparation. Canceling it (supervisor
	// shutdown) aborts a long bootstrap; client disconnects do not.
	BaseContext context.Context
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Prober == nil {
		c.Prober = backend.NewProber(nil, backend.DefaultProbeTimeout)
	}
	if c.Modes == nil {
		c.Modes = backend.NewModeDetector("", 0)
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
	return c
}
