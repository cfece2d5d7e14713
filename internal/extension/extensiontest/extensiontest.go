// Package extensiontest provides fakes for exercising the extension
// manager and anything built on it: a recording Extension, a counting
// session Control and a capturing ClientStub.
package extensiontest

import (
	"context"
	"sync"
	"sync/atomic"

	"hostext/internal/extension"
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/internal/video"
)

// CallLog records calls across several fakes in the order they happen.
type CallLog struct {
	mu      sync.Mutex
	entries []string
}

// Add appends an entry.
func (l *CallLog) Add(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *CallLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Extension is a fake extension that records what the manager did
// with it.
type Extension struct {
	msgType    string
	capability string
	log        *CallLog

	mu               sync.Mutex
	modifiesPipeline bool
	instantiations   int
	control          session.Control
	stub             protocol.ClientStub
	messages         []*protocol.ExtensionMessage
	wrappedCapturer  bool
	wrappedEncoder   bool
	closed           bool
}

var _ extension.Extension = (*Extension)(nil)

// NewExtension returns a fake extension owning msgType and requiring
// capability (empty for always eligible).
func NewExtension(msgType, capability string) *Extension {
	return &Extension{msgType: msgType, capability: capability}
}

// WithCallLog makes the fake and its session record calls in log.
func (e *Extension) WithCallLog(log *CallLog) *Extension {
	e.log = log
	return e
}

// SetModifiesVideoPipeline controls what sessions created afterwards
// report from ModifiesVideoPipeline.
func (e *Extension) SetModifiesVideoPipeline(v bool) {
	e.mu.Lock()
	e.modifiesPipeline = v
	e.mu.Unlock()
}

// RequiredCapability implements extension.Extension.
func (e *Extension) RequiredCapability() string { return e.capability }

// MessageType implements extension.Extension.
func (e *Extension) MessageType() string { return e.msgType }

// CreateSession implements extension.Extension.
func (e *Extension) CreateSession(ctl session.Control, stub protocol.ClientStub) extension.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instantiations++
	e.control = ctl
	e.stub = stub
	e.log.Add(e.msgType + ".create")
	return &Session{ext: e, modifiesPipeline: e.modifiesPipeline}
}

// WasInstantiated reports whether CreateSession was called.
func (e *Extension) WasInstantiated() bool { return e.Instantiations() > 0 }

// Instantiations returns how many times CreateSession was called.
func (e *Extension) Instantiations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instantiations
}

// HasHandledMessage reports whether the session received a message.
func (e *Extension) HasHandledMessage() bool { return len(e.Messages()) > 0 }

// Messages returns the messages the session received.
func (e *Extension) Messages() []*protocol.ExtensionMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*protocol.ExtensionMessage(nil), e.messages...)
}

// HasWrappedVideoCapturer reports whether the session was offered the
// capturer.
func (e *Extension) HasWrappedVideoCapturer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wrappedCapturer
}

// HasWrappedVideoEncoder reports whether the session was offered the
// encoder.
func (e *Extension) HasWrappedVideoEncoder() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wrappedEncoder
}

// Closed reports whether the session was closed.
func (e *Extension) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Control returns the control passed to CreateSession.
func (e *Extension) Control() session.Control {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.control
}

// Stub returns the stub passed to CreateSession.
func (e *Extension) Stub() protocol.ClientStub {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stub
}

// Session is the fake's live session.  Wrapping returns a Capturer or
// Encoder named after the message type that owns the previous handle.
type Session struct {
	ext              *Extension
	modifiesPipeline bool
}

// MessageType implements extension.Session.
func (s *Session) MessageType() string { return s.ext.msgType }

// OnMessage implements extension.Session.
func (s *Session) OnMessage(msg *protocol.ExtensionMessage) bool {
	s.ext.mu.Lock()
	s.ext.messages = append(s.ext.messages, msg)
	s.ext.mu.Unlock()
	s.ext.log.Add(s.ext.msgType + ".message")
	return true
}

// ModifiesVideoPipeline implements extension.Session.
func (s *Session) ModifiesVideoPipeline() bool { return s.modifiesPipeline }

// WrapVideoCapturer implements extension.Session.
func (s *Session) WrapVideoCapturer(c video.Capturer) video.Capturer {
	s.ext.mu.Lock()
	s.ext.wrappedCapturer = true
	s.ext.mu.Unlock()
	s.ext.log.Add(s.ext.msgType + ".capturer")
	return &Capturer{Name: s.ext.msgType, Inner: c}
}

// WrapVideoEncoder implements extension.Session.
func (s *Session) WrapVideoEncoder(e video.Encoder) video.Encoder {
	s.ext.mu.Lock()
	s.ext.wrappedEncoder = true
	s.ext.mu.Unlock()
	s.ext.log.Add(s.ext.msgType + ".encoder")
	return &Encoder{Name: s.ext.msgType, Inner: e}
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.ext.mu.Lock()
	s.ext.closed = true
	s.ext.mu.Unlock()
	s.ext.log.Add(s.ext.msgType + ".close")
	return nil
}

// Capturer is a named capturer wrapping an optional inner one.
type Capturer struct {
	Name   string
	Inner  video.Capturer
	closed atomic.Bool
}

// Capture delegates to Inner, or returns an empty frame.
func (c *Capturer) Capture(ctx context.Context) (*video.Frame, error) {
	if c.closed.Load() {
		return nil, video.ErrClosed
	}
	if c.Inner != nil {
		return c.Inner.Capture(ctx)
	}
	return &video.Frame{}, nil
}

// Close closes Inner.
func (c *Capturer) Close() error {
	c.closed.Store(true)
	if c.Inner != nil {
		return c.Inner.Close()
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Capturer) Closed() bool { return c.closed.Load() }

// Names returns the names along the wrapper chain, outermost first.
func (c *Capturer) Names() []string {
	var out []string
	var cur video.Capturer = c
	for {
		fc, ok := cur.(*Capturer)
		if !ok {
			return out
		}
		out = append(out, fc.Name)
		cur = fc.Inner
	}
}

// Encoder is a named encoder wrapping an optional inner one.
type Encoder struct {
	Name   string
	Inner  video.Encoder
	closed atomic.Bool
}

// Encode delegates to Inner, or returns an empty encoded frame.
func (e *Encoder) Encode(f *video.Frame) (*video.EncodedFrame, error) {
	if e.closed.Load() {
		return nil, video.ErrClosed
	}
	if e.Inner != nil {
		return e.Inner.Encode(f)
	}
	return &video.EncodedFrame{Sequence: f.Sequence}, nil
}

// Close closes Inner.
func (e *Encoder) Close() error {
	e.closed.Store(true)
	if e.Inner != nil {
		return e.Inner.Close()
	}
	return nil
}

// Closed reports whether Close was called.
func (e *Encoder) Closed() bool { return e.closed.Load() }

// Names returns the names along the wrapper chain, outermost first.
func (e *Encoder) Names() []string {
	var out []string
	var cur video.Encoder = e
	for {
		fe, ok := cur.(*Encoder)
		if !ok {
			return out
		}
		out = append(out, fe.Name)
		cur = fe.Inner
	}
}

// Control counts ResetVideoPipeline calls.
type Control struct {
	ID     string
	resets atomic.Int64
}

var _ session.Control = (*Control)(nil)

// ConnectionID implements session.Control.
func (c *Control) ConnectionID() string { return c.ID }

// ResetVideoPipeline implements session.Control.
func (c *Control) ResetVideoPipeline() { c.resets.Add(1) }

// Resets returns the number of ResetVideoPipeline calls.
func (c *Control) Resets() int { return int(c.resets.Load()) }

// Stub records host messages.
type Stub struct {
	mu   sync.Mutex
	msgs []*protocol.ExtensionMessage
	ch   chan *protocol.ExtensionMessage
}

var _ protocol.ClientStub = (*Stub)(nil)

// NewStub returns a Stub whose messages can also be awaited with Next.
func NewStub() *Stub {
	return &Stub{ch: make(chan *protocol.ExtensionMessage, 64)}
}

// DeliverHostMessage implements protocol.ClientStub.
func (s *Stub) DeliverHostMessage(msg *protocol.ExtensionMessage) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	if s.ch != nil {
		select {
		case s.ch <- msg:
		default:
		}
	}
}

// Messages returns a copy of the delivered messages.
func (s *Stub) Messages() []*protocol.ExtensionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.ExtensionMessage(nil), s.msgs...)
}

// Next waits for the next delivered message.  It returns nil when ctx
// ends first or when the Stub was not created by NewStub.
func (s *Stub) Next(ctx context.Context) *protocol.ExtensionMessage {
	if s.ch == nil {
		return nil
	}
	select {
	case msg := <-s.ch:
		return msg
	case <-ctx.Done():
		return nil
	}
}
