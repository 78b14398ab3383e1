package supervisor

import (
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tglaunch/internal/backend"
	"tglaunch/pkg/types"
)

// buildFakeBackend compiles the shared fake translation server.
func buildFakeBackend(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := filepath.Join(t.TempDir(), "fake_backend")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", bin, "../backend/testdata/fake_backend.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake backend: %v: %s", err, string(out))
	}
	return bin
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// runtimeFunc adapts a function to bootstrap.Runtime.
type runtimeFunc func(ctx context.Context, log io.Writer) (backend.Command, error)

func (f runtimeFunc) Prepare(ctx context.Context, log io.Writer) (backend.Command, error) {
	return f(ctx, log)
}

// staticProber returns a fixed answer and counts calls.
type staticProber struct {
	ready bool
	calls atomic.Int32
}

func (p *staticProber) Probe(ctx context.Context, baseURL string) bool {
	p.calls.Add(1)
	return p.ready
}

// fakeConfig wires a Manager to the fake backend on a free port.
func fakeConfig(t *testing.T, bin string, args ...string) Config {
	t.Helper()
	port := freePort(t)
	env := append(os.Environ(), "PORT="+strconv.Itoa(port))
	return Config{
		BackendURL:  "http://127.0.0.1:" + strconv.Itoa(port),
		LogPath:     filepath.Join(t.TempDir(), "logs", "server.log"),
		GracePeriod: 3 * time.Second,
		Runtime: runtimeFunc(func(context.Context, io.Writer) (backend.Command, error) {
			return backend.Command{Path: bin, Args: args, Env: env}, nil
		}),
		Prober: backend.NewProber(nil, 300*time.Millisecond),
		Logger: zerolog.New(io.Discard),
	}
}

// newManager returns a Manager whose backend is stopped on test cleanup.
func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := New(cfg)
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m
}

// waitFor polls Status until cond holds or the deadline passes.
func waitFor(t *testing.T, m *Manager, d time.Duration, cond func(types.StatusSnapshot) bool) types.StatusSnapshot {
	t.Helper()
	deadline := time.Now().Add(d)
	for {
		s := m.Status(context.Background())
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s; last status %+v", d, s)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
