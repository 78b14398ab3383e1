package types

// StatusSnapshot is returned by every control route (GET /status,
// POST /start, POST /stop). It is recomputed on each request.
type StatusSnapshot struct {
	// True iff the supervised backend process exists and has not exited.
	// example: true
	Running bool `json:"server_running" example:"true"`
	// True iff Running and the backend health endpoint reports a loaded model.
	// example: false
	Ready bool `json:"server_ready" example:"false"`
	// Process ID of the backend, null unless Running.
	// example: 12345
	PID *int `json:"server_pid" example:"12345"`
	// Base URL of the backend; clients call it directly for translation.
	// example: http://127.0.0.1:8080
	URL string `json:"server_url" example:"http://127.0.0.1:8080"`
	// Compute mode most recently reported in the backend log, if any.
	// example: CPU
	Mode *string `json:"mode" example:"CPU"`
	// Last bootstrap or launch failure, cleared by a successful launch.
	LastError *string `json:"last_error"`
}

// PIDOrZero returns the pid, or 0 when the backend is not running.
func (s StatusSnapshot) PIDOrZero() int {
	if s.PID == nil {
		return 0
	}
	return *s.PID
}

// Derived backend states. Stopping is never observed by clients since
// Stop holds the supervisor lock until the process is gone.
const (
	StateIdle     = "idle"
	StateStarting = "starting"
	StateReady    = "ready"
)

// State derives the supervisor state from the snapshot.
func (s StatusSnapshot) State() string {
	switch {
	case s.Running && s.Ready:
		return StateReady
	case s.Running:
		return StateStarting
	default:
		return StateIdle
	}
}

// ErrorResponse is the JSON error payload of the control API.
type ErrorResponse struct {
	// Error message.
	// example: not found
	Error string `json:"error" example:"not found"`
}
