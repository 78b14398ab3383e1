package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"tglaunch/internal/backend"
	"tglaunch/internal/common/fsutil"
)

const readyMarkerName = ".tglaunch-ready"

// Cmd is one preparation command.
type Cmd struct {
	Path string
	Args []string
	Dir  string
}

// Runner executes a preparation command with output sent to log.
type Runner func(ctx context.Context, c Cmd, log io.Writer) error

// RunCmd is the default Runner.
func RunCmd(ctx context.Context, c Cmd, log io.Writer) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = log
	cmd.Stderr = log
	return cmd.Run()
}

// Venv keeps a Python virtual environment under VenvDir with the server's
// requirements installed, then runs Entrypoint with the venv interpreter.
// A completed venv is reused without reinstalling; one left behind by a
// failed install is completed on the next Prepare.
type Venv struct {
	ServerDir    string
	VenvDir      string
	Entrypoint   string
	Requirements string
	// Python lists interpreter names tried on PATH, in order.
	Python []string
	Env    map[string]string

	Run      Runner
	LookPath func(string) (string, error)
}

// Interpreter returns the venv python path for the current OS.
func (v Venv) Interpreter() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(v.VenvDir, "Scripts", "python.exe")
	}
	return filepath.Join(v.VenvDir, "bin", "python")
}

func (v Venv) Prepare(ctx context.Context, log io.Writer) (backend.Command, error) {
	py := v.Interpreter()
	if !fsutil.FileExists(v.readyMarker()) {
		if err := v.create(ctx, py, log); err != nil {
			return backend.Command{}, err
		}
	}
	return backend.Command{
		Path: py,
		Args: []string{v.Entrypoint},
		Dir:  v.ServerDir,
		Env:  withDefaults(os.Environ(), v.Env),
	}, nil
}

// readyMarker is written after the last setup step. A venv without it is
// incomplete and gets its install steps rerun.
func (v Venv) readyMarker() string {
	return filepath.Join(v.VenvDir, readyMarkerName)
}

func (v Venv) create(ctx context.Context, py string, log io.Writer) error {
	run := v.Run
	if run == nil {
		run = RunCmd
	}
	type step struct {
		name string
		cmd  Cmd
	}
	var steps []step
	if !fsutil.FileExists(py) {
		sys, err := v.systemPython()
		if err != nil {
			return &Error{Step: "find python", Err: err}
		}
		fmt.Fprintf(log, "creating virtual environment in %s\n", v.VenvDir)
		steps = append(steps, step{"create venv", Cmd{Path: sys, Args: []string{"-m", "venv", v.VenvDir}, Dir: v.ServerDir}})
	} else {
		fmt.Fprintf(log, "completing virtual environment in %s\n", v.VenvDir)
	}
	steps = append(steps,
		step{"upgrade pip", Cmd{Path: py, Args: []string{"-m", "pip", "install", "--upgrade", "pip"}, Dir: v.ServerDir}},
		step{"install requirements", Cmd{Path: py, Args: []string{"-m", "pip", "install", "-r", v.Requirements}, Dir: v.ServerDir}},
	)
	for _, s := range steps {
		if err := run(ctx, s.cmd, log); err != nil {
			return &Error{Step: s.name, Err: err}
		}
	}
	if !fsutil.FileExists(py) {
		return &Error{Step: "create venv", Err: fmt.Errorf("interpreter missing after setup: %s", py)}
	}
	if err := os.WriteFile(v.readyMarker(), []byte(v.Requirements+"\n"), 0o644); err != nil {
		return &Error{Step: "mark complete", Err: err}
	}
	return nil
}

func (v Venv) systemPython() (string, error) {
	look := v.LookPath
	if look == nil {
		look = exec.LookPath
	}
	names := v.Python
	if len(names) == 0 {
		names = []string{"python3", "python"}
	}
	for _, n := range names {
		if p, err := look(n); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("none of %v found on PATH", names)
}
