package backend

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// killWait bounds how long Terminate waits for the OS to reap a process
// after a forced kill.
const killWait = 2 * time.Second

// ErrAlreadyRunning is returned by Launch while a live process is owned.
var ErrAlreadyRunning = errors.New("backend already running")

// Command describes how to spawn the backend process.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is the complete child environment. Nil inherits the supervisor's.
	Env []string
}

// LaunchError reports that the backend executable could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string { return fmt.Sprintf("launch %s: %v", e.Path, e.Err) }

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitInfo describes a process that exited on its own.
type ExitInfo struct {
	PID int
	Err error
}

// TerminateResult describes how Terminate stopped the process.
type TerminateResult struct {
	PID int
	// Forced is true when the grace period expired and the process was killed.
	Forced bool
	// Stopped is false when there was nothing to terminate.
	Stopped bool
}

type proc struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // written once before done is closed
}

func (p *proc) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Handle owns at most one backend process. It is not safe for concurrent
// use; the supervisor serializes all access.
type Handle struct {
	p *proc
}

// IsAlive reports whether a process is owned and has not exited. It never
// blocks. An exited process is dropped from the handle.
func (h *Handle) IsAlive() bool {
	h.Reap()
	return h.p != nil
}

// Reap drops an exited process and returns its exit details. The boolean is
// false when nothing was reaped.
func (h *Handle) Reap() (ExitInfo, bool) {
	if h.p == nil || !h.p.exited() {
		return ExitInfo{}, false
	}
	info := ExitInfo{PID: h.p.cmd.Process.Pid, Err: h.p.err}
	h.p = nil
	return info, true
}

// PID returns the pid of the live process.
func (h *Handle) PID() (int, bool) {
	if !h.IsAlive() {
		return 0, false
	}
	return h.p.cmd.Process.Pid, true
}

// Launch spawns the backend with stdout and stderr written to logSink.
// Passing an *os.File lets the child write directly, so it keeps logging
// even if the supervisor exits first. On failure the handle stays empty.
func (h *Handle) Launch(c Command, logSink io.Writer) error {
	if h.IsAlive() {
		return ErrAlreadyRunning
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = logSink
	cmd.Stderr = logSink
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return &LaunchError{Path: c.Path, Err: err}
	}
	p := &proc{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	h.p = p
	return nil
}

// Terminate asks the process to exit, waits up to grace, then kills it.
// The handle is always empty on return.
func (h *Handle) Terminate(grace time.Duration) TerminateResult {
	p := h.p
	h.p = nil
	if p == nil {
		return TerminateResult{}
	}
	res := TerminateResult{PID: p.cmd.Process.Pid, Stopped: true}
	if p.exited() {
		return res
	}
	_ = terminateProcess(p.cmd.Process)
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-p.done:
		return res
	case <-t.C:
	}
	res.Forced = true
	_ = killProcess(p.cmd.Process)
	select {
	case <-p.done:
	case <-time.After(killWait):
	}
	return res
}
