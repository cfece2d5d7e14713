// Package echo provides an always-eligible extension that sends every
// message it receives straight back to the client.  It is mostly
// useful for checking that a client's extension plumbing works.
package echo

import (
	"hostext/internal/extension"
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/util"
)

// MessageType is the message type owned by the echo extension.
const MessageType = "echo"

// Extension is the echo extension descriptor.
type Extension struct {
	logger *util.Logger
}

var _ extension.Extension = (*Extension)(nil)

// New returns the echo extension.
func New(logger *util.Logger) *Extension {
	return &Extension{logger: logger.Named(MessageType)}
}

// RequiredCapability returns "": echo is always active.
func (e *Extension) RequiredCapability() string { return "" }

// MessageType returns MessageType.
func (e *Extension) MessageType() string { return MessageType }

// CreateSession implements extension.Extension.
func (e *Extension) CreateSession(ctl session.Control, stub protocol.ClientStub) extension.Session {
	if ctl != nil {
		e.logger.Debug("session for connection %s", ctl.ConnectionID())
	}
	return &Session{stub: stub, logger: e.logger}
}

// Session echoes messages to the client stub.
type Session struct {
	extension.NoPipeline
	stub   protocol.ClientStub
	logger *util.Logger
}

// MessageType returns MessageType.
func (s *Session) MessageType() string { return MessageType }

// OnMessage sends msg.Data back under the same type.
func (s *Session) OnMessage(msg *protocol.ExtensionMessage) bool {
	if s.stub == nil {
		return false
	}
	s.logger.Debug("echo %d bytes", len(msg.Data))
	s.stub.DeliverHostMessage(&protocol.ExtensionMessage{Type: MessageType, Data: msg.Data})
	return true
}
