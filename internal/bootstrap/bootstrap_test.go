package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct {
	calls  []Cmd
	failAt int // 1-based step index to fail, 0 never
	venvPy string
}

func (r *recorder) run(ctx context.Context, c Cmd, log io.Writer) error {
	r.calls = append(r.calls, c)
	if r.failAt == len(r.calls) {
		return errors.New("exit status 1")
	}
	if len(c.Args) >= 2 && c.Args[1] == "venv" {
		if err := os.MkdirAll(filepath.Dir(r.venvPy), 0o755); err != nil {
			return err
		}
		return os.WriteFile(r.venvPy, []byte("#!"), 0o755)
	}
	return nil
}

func newVenv(t *testing.T, rec *recorder) Venv {
	t.Helper()
	dir := t.TempDir()
	v := Venv{
		ServerDir:    dir,
		VenvDir:      filepath.Join(dir, ".venv"),
		Entrypoint:   "main.py",
		Requirements: "requirements.txt",
		Env:          map[string]string{"PYTHONUNBUFFERED": "1"},
		Run:          rec.run,
		LookPath: func(name string) (string, error) {
			if name == "python3" {
				return "/usr/bin/python3", nil
			}
			return "", errors.New("not found")
		},
	}
	rec.venvPy = v.Interpreter()
	return v
}

func TestVenvCreatesThenReuses(t *testing.T) {
	rec := &recorder{}
	v := newVenv(t, rec)
	var log bytes.Buffer
	cmd, err := v.Prepare(context.Background(), &log)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(rec.calls) != 3 {
		t.Fatalf("expected 3 setup steps, got %d", len(rec.calls))
	}
	if rec.calls[0].Path != "/usr/bin/python3" {
		t.Fatalf("venv created with %q", rec.calls[0].Path)
	}
	if cmd.Path != v.Interpreter() || len(cmd.Args) != 1 || cmd.Args[0] != "main.py" || cmd.Dir != v.ServerDir {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if !strings.Contains(log.String(), "creating virtual environment") {
		t.Fatalf("setup not logged: %q", log.String())
	}

	if _, err := v.Prepare(context.Background(), io.Discard); err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	if len(rec.calls) != 3 {
		t.Fatalf("existing venv must be reused, got %d calls", len(rec.calls))
	}
}

func TestVenvStepFailure(t *testing.T) {
	rec := &recorder{failAt: 3}
	v := newVenv(t, rec)
	_, err := v.Prepare(context.Background(), io.Discard)
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if be.Step != "install requirements" {
		t.Fatalf("step=%q", be.Step)
	}
}

func TestVenvCompletesAfterFailedInstall(t *testing.T) {
	rec := &recorder{failAt: 3}
	v := newVenv(t, rec)
	if _, err := v.Prepare(context.Background(), io.Discard); err == nil {
		t.Fatalf("expected install failure")
	}
	if _, err := os.Stat(v.Interpreter()); err != nil {
		t.Fatalf("interpreter should exist after create venv: %v", err)
	}

	rec.failAt = 0
	var log bytes.Buffer
	if _, err := v.Prepare(context.Background(), &log); err != nil {
		t.Fatalf("retry prepare: %v", err)
	}
	if len(rec.calls) != 5 {
		t.Fatalf("retry should rerun only the pip steps, got %d calls", len(rec.calls))
	}
	if last := rec.calls[4]; len(last.Args) < 5 || last.Args[4] != "requirements.txt" {
		t.Fatalf("last step was not the requirements install: %+v", last)
	}
	if !strings.Contains(log.String(), "completing virtual environment") {
		t.Fatalf("retry not logged: %q", log.String())
	}

	if _, err := v.Prepare(context.Background(), io.Discard); err != nil {
		t.Fatalf("third prepare: %v", err)
	}
	if len(rec.calls) != 5 {
		t.Fatalf("completed venv must be reused, got %d calls", len(rec.calls))
	}
}

func TestVenvNoPython(t *testing.T) {
	rec := &recorder{}
	v := newVenv(t, rec)
	v.LookPath = func(string) (string, error) { return "", errors.New("not found") }
	_, err := v.Prepare(context.Background(), io.Discard)
	var be *Error
	if !errors.As(err, &be) || be.Step != "find python" {
		t.Fatalf("expected find python error, got %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("no step should run without python")
	}
}

func TestStatic(t *testing.T) {
	t.Setenv("PORT", "9999")
	s := Static{Command: []string{"/bin/server", "--flag"}, Dir: "/srv", Env: map[string]string{"PORT": "8080", "TGLAUNCH_TEST_DEFAULT": "1"}}
	cmd, err := s.Prepare(context.Background(), io.Discard)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if cmd.Path != "/bin/server" || len(cmd.Args) != 1 || cmd.Dir != "/srv" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	var ports, unbuffered int
	for _, kv := range cmd.Env {
		if strings.HasPrefix(kv, "PORT=") {
			ports++
			if kv != "PORT=9999" {
				t.Fatalf("inherited PORT must win, got %s", kv)
			}
		}
		if kv == "TGLAUNCH_TEST_DEFAULT=1" {
			unbuffered++
		}
	}
	if ports != 1 || unbuffered != 1 {
		t.Fatalf("ports=%d unbuffered=%d", ports, unbuffered)
	}

	if _, err := (Static{}).Prepare(context.Background(), io.Discard); err == nil {
		t.Fatalf("empty command must fail")
	}
}
