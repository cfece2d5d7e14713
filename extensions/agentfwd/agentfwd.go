// Package agentfwd provides an extension that serves the SSH agent
// protocol to the client over extension messages.
//
// Each message's data is one base64-encoded agent frame (4-byte
// big-endian length followed by the body).  Requests are answered by
// an agent.Agent on the host, either an in-memory keyring or an
// upstream agent socket, and replies travel back as host messages in
// the same encoding.
package agentfwd

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sync"

	"golang.org/x/crypto/ssh/agent"

	hxerr "hostext/internal/errors"
	"hostext/internal/extension"
	"hostext/internal/protocol"
	"hostext/internal/retry"
	"hostext/internal/session"
	"hostext/util"
)

const (
	// MessageType is the message type owned by the forwarder.
	MessageType = "ssh-agent"

	// Capability is the capability the client must accept.
	Capability = "sshAgent"

	// maxFrameSize bounds a single agent frame in either direction.
	maxFrameSize = 256 << 10
)

// Extension is the forwarder descriptor.  Every session is served by
// the same agent.
type Extension struct {
	agent  agent.Agent
	closer io.Closer // upstream connection, if any
	logger *util.Logger
}

var _ extension.Extension = (*Extension)(nil)

// New returns a forwarder serving a.
func New(a agent.Agent, logger *util.Logger) *Extension {
	return &Extension{agent: a, logger: logger.Named("agentfwd")}
}

// NewKeyring returns a forwarder backed by an in-memory keyring holding
// keys.
func NewKeyring(logger *util.Logger, keys ...agent.AddedKey) (*Extension, error) {
	kr := agent.NewKeyring()
	for i, k := range keys {
		if err := kr.Add(k); err != nil {
			return nil, fmt.Errorf("adding key %d (%s): %w", i, k.Comment, err)
		}
	}
	return New(kr, logger), nil
}

// DialUpstream returns a forwarder relaying to the agent listening on
// the unix socket sock.  The dial is retried briefly in case the agent
// is still starting; permission errors fail at once.  Close releases
// the connection.
func DialUpstream(ctx context.Context, sock string, logger *util.Logger) (*Extension, error) {
	if sock == "" {
		return nil, fmt.Errorf("agent socket is not set")
	}
	var d net.Dialer
	var conn net.Conn
	err := retry.DialPolicy().Do(ctx, func(attempt int) error {
		c, err := d.DialContext(ctx, "unix", sock)
		if err != nil {
			if hxerr.Is(err, fs.ErrPermission) {
				return retry.Permanent(err)
			}
			logger.Debug("agentfwd: dial %s attempt %d: %v", sock, attempt, err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	e := New(agent.NewClient(conn), logger)
	e.closer = conn
	return e, nil
}

// Close releases the upstream agent connection, if any.  Extensions
// outlive the sessions they create, so this is the caller's job.
func (e *Extension) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// RequiredCapability returns Capability.
func (e *Extension) RequiredCapability() string { return Capability }

// MessageType returns MessageType.
func (e *Extension) MessageType() string { return MessageType }

// CreateSession starts serving the agent protocol for one connection.
func (e *Extension) CreateSession(ctl session.Control, stub protocol.ClientStub) extension.Session {
	host, served := net.Pipe()
	s := &Session{
		conn:   host,
		stub:   stub,
		logger: e.logger,
		done:   make(chan struct{}),
	}
	if ctl != nil {
		s.logger = e.logger.Named(ctl.ConnectionID())
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer served.Close()
		if err := agent.ServeAgent(e.agent, served); err != nil && err != io.EOF {
			s.logger.Debug("agent stopped: %v", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		s.readReplies()
	}()
	return s
}

// Session relays agent frames for one connection.
type Session struct {
	extension.NoPipeline

	conn   net.Conn // host end of the pipe to the agent server
	stub   protocol.ClientStub
	logger *util.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// MessageType returns MessageType.
func (s *Session) MessageType() string { return MessageType }

// OnMessage forwards one agent request frame.  The reply, if any, is
// delivered to the client asynchronously.
func (s *Session) OnMessage(msg *protocol.ExtensionMessage) bool {
	frame, err := decodeFrame(msg.Data)
	if err != nil {
		s.logger.Warn("%v", err)
		return false
	}

	select {
	case <-s.done:
		s.logger.Debug("%v", hxerr.ErrSessionClosed)
		return false
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		s.logger.Warn("forward request: %v", err)
		return false
	}
	return true
}

// Close stops the agent server and waits for the relay to finish.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

// readReplies delivers every frame the agent writes until the pipe
// closes.
func (s *Session) readReplies() {
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n > maxFrameSize {
			s.logger.Warn("agent reply of %d bytes exceeds limit", n)
			s.conn.Close()
			return
		}
		frame := make([]byte, 4+n)
		copy(frame, hdr[:])
		if _, err := io.ReadFull(s.conn, frame[4:]); err != nil {
			return
		}
		if s.stub != nil {
			s.stub.DeliverHostMessage(&protocol.ExtensionMessage{
				Type: MessageType,
				Data: base64.StdEncoding.EncodeToString(frame),
			})
		}
	}
}

// decodeFrame decodes and checks one base64 agent frame.  A frame whose
// length prefix disagrees with its size would desynchronize the stream,
// so it is rejected rather than forwarded.
func decodeFrame(data string) ([]byte, error) {
	frame, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hxerr.ErrMalformedMessage, err)
	}
	if len(frame) < 5 {
		return nil, fmt.Errorf("%w: agent frame of %d bytes", hxerr.ErrMalformedMessage, len(frame))
	}
	n := binary.BigEndian.Uint32(frame)
	if n > maxFrameSize || int(n) != len(frame)-4 {
		return nil, fmt.Errorf("%w: length prefix %d, body %d bytes", hxerr.ErrMalformedMessage, n, len(frame)-4)
	}
	return frame, nil
}
