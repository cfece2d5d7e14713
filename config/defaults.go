package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

// Bundled extension names, in the order they are registered.
const (
	ExtEcho      = "echo"
	ExtRecorder  = "recorder"
	ExtRTPMirror = "rtpmirror"
	ExtAgentFwd  = "agentfwd"
)

// KnownExtensions lists every bundled extension in registry order.
var KnownExtensions = []string{ExtEcho, ExtRecorder, ExtRTPMirror, ExtAgentFwd}

const (
	// DefaultFrames is how many frames the harness pumps through the
	// video pipeline.
	DefaultFrames = 30

	// DefaultFrameInterval paces the pattern capturer (~30 fps).
	DefaultFrameInterval = 33 * time.Millisecond

	// DefaultWidth and DefaultHeight size the captured frames.
	DefaultWidth  = 64
	DefaultHeight = 48

	// MaxFrameDimension bounds Width and Height.
	MaxFrameDimension = 4096
)
