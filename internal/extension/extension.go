// Package extension negotiates, activates and dispatches to the
// optional host extensions of a single client connection.
//
// An Extension is a registered plugin descriptor.  Once the client's
// accepted capabilities are known, the Manager asks every eligible
// Extension for a Session, routes inbound ExtensionMessages to the
// Session owning their type, and lets Sessions that declare interest
// wrap the video capturer and encoder.
//
// Architecture layers (bottom → top):
//
//	capability, protocol, session, video  →  extension  →  core  →  cmd
package extension

import (
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/internal/video"
)

// Extension describes an optional host feature.  Extensions are
// borrowed by the Manager: they must outlive it and are never closed
// by it.
type Extension interface {
	// RequiredCapability is the capability the client must accept for
	// this extension to be activated.  Empty means always eligible.
	RequiredCapability() string

	// MessageType is the ExtensionMessage type routed to this
	// extension's session.  Unique within a registry.
	MessageType() string

	// CreateSession activates the extension for one connection.  It is
	// called at most once per connection.
	CreateSession(ctl session.Control, stub protocol.ClientStub) Session
}

// Session is the live, per-connection instance of an Extension.
//
// A Session that also implements io.Closer is closed when the Manager
// is closed.
type Session interface {
	// MessageType matches the originating Extension's MessageType.
	MessageType() string

	// OnMessage handles a message routed to this session.  The result
	// reports whether the message was understood; it is informational.
	OnMessage(msg *protocol.ExtensionMessage) bool

	// ModifiesVideoPipeline reports whether the session wants to be
	// offered the capturer and encoder.  It must not change over the
	// session's lifetime.
	ModifiesVideoPipeline() bool

	// WrapVideoCapturer returns c unchanged or a replacement that owns c.
	WrapVideoCapturer(c video.Capturer) video.Capturer

	// WrapVideoEncoder returns e unchanged or a replacement that owns e.
	WrapVideoEncoder(e video.Encoder) video.Encoder
}

// NoPipeline can be embedded by sessions that never touch video.
type NoPipeline struct{}

// ModifiesVideoPipeline returns false.
func (NoPipeline) ModifiesVideoPipeline() bool { return false }

// WrapVideoCapturer returns c.
func (NoPipeline) WrapVideoCapturer(c video.Capturer) video.Capturer { return c }

// WrapVideoEncoder returns e.
func (NoPipeline) WrapVideoEncoder(e video.Encoder) video.Encoder { return e }
