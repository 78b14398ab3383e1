package supervisor

import (
	"errors"

	"tglaunch/internal/backend"
	"tglaunch/internal/bootstrap"
)

// IsBootstrapError reports whether err came from runtime preparation.
func IsBootstrapError(err error) bool {
	var be *bootstrap.Error
	return errors.As(err, &be)
}

// IsLaunchError reports whether err came from spawning the backend.
func IsLaunchError(err error) bool {
	var le *backend.LaunchError
	return errors.As(err, &le)
}

// startResult labels a start attempt for metrics.
func startResult(err error) string {
	switch {
	case err == nil:
		return "launched"
	case IsBootstrapError(err):
		return "bootstrap_error"
	case IsLaunchError(err):
		return "launch_error"
	default:
		return "error"
	}
}
