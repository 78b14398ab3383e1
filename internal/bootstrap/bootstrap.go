// Package bootstrap prepares the backend runtime before launch and decides
// the command the supervisor runs.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"tglaunch/internal/backend"
)

// Runtime prepares the backend environment and returns the launch command.
// Output of any preparation step goes to log.
type Runtime interface {
	Prepare(ctx context.Context, log io.Writer) (backend.Command, error)
}

// Error reports a failed preparation step.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("bootstrap %s: %v", e.Step, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Static runs a fixed command with no environment preparation.
type Static struct {
	Command []string
	Dir     string
	Env     map[string]string
}

func (s Static) Prepare(ctx context.Context, log io.Writer) (backend.Command, error) {
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return backend.Command{}, &Error{Step: "command", Err: fmt.Errorf("backend command is empty")}
	}
	return backend.Command{
		Path: s.Command[0],
		Args: append([]string(nil), s.Command[1:]...),
		Dir:  s.Dir,
		Env:  withDefaults(os.Environ(), s.Env),
	}, nil
}

// withDefaults appends KEY=VALUE for each default whose key is not already
// present in base.
func withDefaults(base []string, defaults map[string]string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(base))
	for _, kv := range base {
		if k, _, ok := strings.Cut(kv, "="); ok {
			seen[k] = true
		}
	}
	for k, v := range defaults {
		if !seen[k] {
			out = append(out, k+"="+v)
		}
	}
	return out
}
