// Package session describes the control surface a host-side client
// session exposes to its extensions.
//
// Extensions never see the session object itself, only this narrow
// interface, which keeps them testable without a live connection.
package session

// Control is implemented by the object that owns a client connection.
type Control interface {
	// ConnectionID identifies the connection for logging.
	ConnectionID() string

	// ResetVideoPipeline tells the session that extensions have
	// intercepted the video capturer or encoder, so the stream built
	// from them must be treated as new.
	ResetVideoPipeline()
}
