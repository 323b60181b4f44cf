// Package state provides the persistence glue for runner saved state.
//
// A Store is a small key-value surface the engine uses to park opaque
// snapshots across full process restarts. The snapshot format belongs to
// the runner package; stores only move bytes. Three backends are
// provided:
//
//   - MemoryStore: in-process map, for tests and single-run tooling.
//   - SQLiteStore: a local SQLite file, the usual choice for desktop or
//     on-host deployments.
//   - NATSStore: a JetStream key-value bucket, for fleets that already
//     run NATS and want snapshots to survive host loss.
//
// Stores are safe for concurrent use. A missing key is reported as
// ErrNotFound on every backend.
package state
