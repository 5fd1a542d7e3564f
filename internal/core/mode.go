// Package core is the orchestration layer.  It composes the session
// engine, the client driver, and the transports into complete
// operational modes and provides a builder that selects the right mode
// from a Config.
//
// Architecture layers (bottom → top):
//
//	wire  →  session | client  →  transport  →  core  →  cmd (CLI)
package core

import "context"

// Mode is one complete run of nnfp: serving, or a client session.
// Each mode owns its full lifecycle from connection establishment to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}
