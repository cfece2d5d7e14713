// Package core is the orchestration layer.  It builds the extension
// registry from a Config and runs it against a simulated client
// connection.
//
// Architecture layers (bottom → top):
//
//	capability, protocol, session, video  →  extension  →  core  →  cmd (CLI)
//
// The builder in this package is the single dispatch point between
// the CLI and the operational modes.
package core

import (
	"context"
	"io"

	"hostext/extensions/agentfwd"
)

// Mode represents a complete operational mode of hostext (listing the
// bundled extensions or hosting a session).  Each mode owns its full
// lifecycle from setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// Stdio carries the streams and prompts a Mode talks to.
type Stdio struct {
	In  io.Reader // client-to-host messages, one JSON object per line
	Out io.Writer // host-to-client messages and reports

	// Passphrase unlocks encrypted agent keys.  Nil makes them an error.
	Passphrase agentfwd.PassphraseFunc
}
