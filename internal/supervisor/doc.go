// Package supervisor owns the translation backend process and answers the
// three control operations: Start, Stop and Status.
//
// Files by concern:
//
//   - manager.go: Manager, its lock and the three operations.
//   - config.go: Config and defaults applied by New.
//   - status.go: snapshot composition (liveness, readiness probe, mode).
//   - errors.go: error classification helpers.
//   - metrics.go: Prometheus collectors for lifecycle events.
//
// Backend state is never stored. Idle, Starting and Ready are derived on
// each call from the process handle and a live health probe; an exited
// backend is noticed lazily on the next call.
package supervisor
