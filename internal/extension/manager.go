package extension

import (
	"io"

	"hostext/internal/capability"
	hxerr "hostext/internal/errors"
	"hostext/internal/metrics"
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/internal/video"
	"hostext/util"
)

// Manager owns the extension registry of one client connection.
//
// Lifecycle: Constructed → Negotiated → Closed.  Negotiation happens
// once; the table of active sessions is never changed afterwards.
// Manager is not safe for concurrent use: every method must be called
// from the session's control goroutine.
type Manager struct {
	extensions []Extension
	control    session.Control
	logger     *util.Logger
	metrics    *metrics.Collector

	negotiated bool
	closed     bool
	active     []activeSession // registry order
	byType     map[string]Session
}

type activeSession struct {
	msgType string
	session Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.  Messages are prefixed "extension:".
func WithLogger(l *util.Logger) Option {
	return func(m *Manager) { m.logger = l.Named("extension") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// NewManager validates exts and returns a Manager that has not yet
// negotiated.  Registry problems (nil entries, empty or duplicate
// message types, capabilities containing whitespace) are returned as
// *errors.RegistryError.
func NewManager(exts []Extension, ctl session.Control, opts ...Option) (*Manager, error) {
	if err := validate(exts); err != nil {
		return nil, err
	}
	m := &Manager{
		extensions: append([]Extension(nil), exts...),
		control:    ctl,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MustManager is like NewManager but panics on an invalid registry.
// Intended for hosts whose registry is fixed at compile time.
func MustManager(exts []Extension, ctl session.Control, opts ...Option) *Manager {
	m, err := NewManager(exts, ctl, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func validate(exts []Extension) error {
	seen := make(map[string]int, len(exts))
	for i, ext := range exts {
		if ext == nil {
			return hxerr.Registry(i, "", "", hxerr.ErrNilExtension)
		}
		typ, c := ext.MessageType(), ext.RequiredCapability()
		switch {
		case typ == "":
			return hxerr.Registry(i, typ, c, hxerr.ErrEmptyMessageType)
		case !capability.Valid(c):
			return hxerr.Registry(i, typ, c, hxerr.ErrInvalidCapability)
		}
		if _, dup := seen[typ]; dup {
			return hxerr.Registry(i, typ, c, hxerr.ErrDuplicateMessageType)
		}
		seen[typ] = i
	}
	return nil
}

// Capabilities returns the space-separated required capabilities of
// every registered extension, in registry order.  Extensions without a
// requirement contribute nothing; shared capabilities are not merged.
// The result does not depend on negotiation.
func (m *Manager) Capabilities() string {
	caps := make([]string, 0, len(m.extensions))
	for _, ext := range m.extensions {
		caps = append(caps, ext.RequiredCapability())
	}
	return capability.Join(caps)
}

// OnNegotiatedCapabilities activates every extension whose required
// capability is empty or present in negotiated, passing ctl and stub to
// its factory.  It may be called once; later calls return
// errors.ErrAlreadyNegotiated and change nothing.
func (m *Manager) OnNegotiatedCapabilities(stub protocol.ClientStub, negotiated string) error {
	if m.closed {
		return hxerr.ErrManagerClosed
	}
	if m.negotiated {
		return hxerr.ErrAlreadyNegotiated
	}
	m.negotiated = true

	accepted := capability.Parse(negotiated)
	m.byType = make(map[string]Session, len(m.extensions))
	for _, ext := range m.extensions {
		typ, c := ext.MessageType(), ext.RequiredCapability()
		if c != "" && !accepted.Has(c) {
			m.logger.Debug("%s: capability %q not negotiated", typ, c)
			continue
		}

		s := ext.CreateSession(m.control, stub)
		if s == nil {
			m.logger.Warn("%s: factory returned no session", typ)
			m.metrics.RecordError(typ + ": factory returned no session")
			continue
		}
		if got := s.MessageType(); got != typ {
			m.logger.Warn("%s: session reports message type %q", typ, got)
		}
		m.active = append(m.active, activeSession{msgType: typ, session: s})
		m.byType[typ] = s
	}

	m.metrics.Negotiated(len(m.active))
	m.logger.Verbose("activated %d of %d extensions %v",
		len(m.active), len(m.extensions), m.ActiveMessageTypes())
	return nil
}

// DispatchMessage routes msg to the active session owning msg.Type and
// reports whether one did.  Messages for unknown or inactive types,
// and any message before negotiation, are dropped silently.
func (m *Manager) DispatchMessage(msg *protocol.ExtensionMessage) bool {
	if msg == nil {
		return false
	}
	s, ok := m.byType[msg.Type]
	if !ok {
		m.metrics.MessageDropped()
		m.logger.Debug("dropping message of type %q", msg.Type)
		return false
	}
	m.metrics.MessageRouted()
	if !s.OnMessage(msg) {
		m.logger.Debug("%s: message not handled", msg.Type)
	}
	return true
}

// InterceptVideoCapturer offers c to every active session that
// modifies the video pipeline, in registry order, each receiving the
// previous session's result.  If any such session exists the session
// control is told to reset the pipeline, once.
func (m *Manager) InterceptVideoCapturer(c video.Capturer) video.Capturer {
	return intercept(m, "capturer", c, Session.WrapVideoCapturer, m.metrics.CapturerOffered)
}

// InterceptVideoEncoder is the encoder counterpart of
// InterceptVideoCapturer.
func (m *Manager) InterceptVideoEncoder(e video.Encoder) video.Encoder {
	return intercept(m, "encoder", e, Session.WrapVideoEncoder, m.metrics.EncoderOffered)
}

func intercept[T any](m *Manager, kind string, in T, wrap func(Session, T) T, offered func()) T {
	var wrappers []video.Wrapper[T]
	for _, a := range m.active {
		if !a.session.ModifiesVideoPipeline() {
			continue
		}
		a := a
		wrappers = append(wrappers, func(cur T) T {
			offered()
			out := wrap(a.session, cur)
			if any(out) == nil {
				// Keep the previous handle rather than lose it.
				m.logger.Warn("%s: wrapped %s to nil, keeping previous", a.msgType, kind)
				return cur
			}
			return out
		})
	}
	if len(wrappers) == 0 {
		return in
	}

	out := video.Chain(in, wrappers...)
	m.logger.Debug("%s offered to %d sessions", kind, len(wrappers))
	m.metrics.PipelineReset()
	if m.control != nil {
		m.control.ResetVideoPipeline()
	}
	return out
}

// Negotiated reports whether OnNegotiatedCapabilities has run.
func (m *Manager) Negotiated() bool { return m.negotiated }

// ActiveMessageTypes returns the message types of the active sessions
// in registry order.
func (m *Manager) ActiveMessageTypes() []string {
	out := make([]string, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a.msgType)
	}
	return out
}

// Close closes every active session implementing io.Closer, in reverse
// registry order, and empties the table.  Dispatch and interception
// become no-ops and negotiation returns errors.ErrManagerClosed.
// Calling Close again does nothing.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for i := len(m.active) - 1; i >= 0; i-- {
		a := m.active[i]
		closer, ok := a.session.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			m.logger.Warn("%s: close: %v", a.msgType, err)
			m.metrics.RecordError(err.Error())
			errs = append(errs, hxerr.Wrap(a.msgType, "close", err))
		}
	}
	m.active = nil
	m.byType = nil
	return hxerr.Join(errs...)
}
