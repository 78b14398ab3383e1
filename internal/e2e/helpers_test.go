package e2e

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tglaunch/internal/backend"
	"tglaunch/internal/bootstrap"
	"tglaunch/internal/httpapi"
	"tglaunch/internal/supervisor"
	"tglaunch/pkg/client"
	"tglaunch/pkg/types"
)

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
	if out, err := cmd.CombinedOutput(); err != nil {
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

type stack struct {
	client  *client.Client
	mgr     *supervisor.Manager
	url     string
	logPath string
}

// newStack wires the real supervisor and control API to a fake backend
// started through the static runtime. The backend reads its port from
// $PORT, so the test process env carries it.
func newStack(t *testing.T, grace time.Duration, backendArgs ...string) *stack {
	t.Helper()
	bin := buildFakeBackend(t)
	port := strconv.Itoa(freePort(t))
	t.Setenv("PORT", port)

	logPath := filepath.Join(t.TempDir(), "logs", "server.log")
	mgr := supervisor.New(supervisor.Config{
		BackendURL:  "http://127.0.0.1:" + port,
		LogPath:     logPath,
		GracePeriod: grace,
		Runtime: bootstrap.Static{
			Command: append([]string{bin}, backendArgs...),
			Env:     map[string]string{"PYTHONUNBUFFERED": "1", "PORT": port},
		},
		Prober: backend.NewProber(nil, 300*time.Millisecond),
		Modes:  backend.NewModeDetector("", 0),
		Logger: zerolog.New(io.Discard),
	})
	srv := httptest.NewServer(httpapi.NewMux(mgr, httpapi.Options{Logger: zerolog.Nop()}))
	t.Cleanup(func() {
		srv.Close()
		mgr.Shutdown(context.Background())
	})
	return &stack{
		client:  client.New(client.Config{BaseURL: srv.URL, Timeout: 30 * time.Second}),
		mgr:     mgr,
		url:     "http://127.0.0.1:" + port,
		logPath: logPath,
	}
}

func (s *stack) waitStatus(t *testing.T, d time.Duration, cond func(types.StatusSnapshot) bool) types.StatusSnapshot {
	t.Helper()
	deadline := time.Now().Add(d)
	for {
		st, err := s.client.Status(context.Background())
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s; last status %+v", d, st)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
