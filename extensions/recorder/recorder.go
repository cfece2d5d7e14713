// Package recorder provides an extension that records encoded video
// frames on request and hands them to the client one at a time.
//
// The client drives it with JSON commands in the message data:
//
//	{"type":"start"}       begin recording
//	{"type":"stop"}        stop recording, keep what was recorded
//	{"type":"next-frame"}  reply with the oldest recorded frame
//
// Replies are {"type":"next-frame-reply","data":"<base64>"}, with no data
// once the buffer is empty.  Recorded frames are bounded by a byte budget;
// when it is exceeded the oldest frames are discarded.
package recorder

import (
	"encoding/base64"
	"errors"
	"sync"

	"github.com/joeshaw/envdecode"

	"hostext/internal/extension"
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/internal/video"
	"hostext/util"
)

const (
	// MessageType is the message type owned by the recorder.
	MessageType = "video-recorder"

	// Capability is the capability the client must accept.
	Capability = "videoRecorder"

	// DefaultMaxBytes bounds the recorded frames when not configured.
	DefaultMaxBytes = 8 << 20
)

// Commands understood by the recorder.
const (
	cmdStart          = "start"
	cmdStop           = "stop"
	cmdNextFrame      = "next-frame"
	cmdNextFrameReply = "next-frame-reply"
)

// Config tunes the recorder.  Defaults can be loaded via envdecode.
type Config struct {
	// MaxBytes is the recording budget. ENV: HOSTEXT_RECORDER_MAX_BYTES
	MaxBytes int `env:"HOSTEXT_RECORDER_MAX_BYTES,default=8388608,strict"`
}

// ConfigFromEnv builds a Config using envdecode.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, err
	}
	return cfg, nil
}

// Extension is the recorder descriptor.
type Extension struct {
	maxBytes int
	logger   *util.Logger
}

var _ extension.Extension = (*Extension)(nil)

// New returns a recorder.  A non-positive cfg.MaxBytes selects
// DefaultMaxBytes.
func New(cfg Config, logger *util.Logger) *Extension {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extension{maxBytes: maxBytes, logger: logger.Named("recorder")}
}

// NewFromEnv builds a recorder using ConfigFromEnv.
func NewFromEnv(logger *util.Logger) (*Extension, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, logger), nil
}

// RequiredCapability returns Capability.
func (e *Extension) RequiredCapability() string { return Capability }

// MessageType returns MessageType.
func (e *Extension) MessageType() string { return MessageType }

// CreateSession implements extension.Extension.
func (e *Extension) CreateSession(_ session.Control, stub protocol.ClientStub) extension.Session {
	return &Session{stub: stub, maxBytes: e.maxBytes, logger: e.logger}
}

// Session is a live recorder.  It is safe for concurrent use: messages
// arrive on the control goroutine while frames arrive from the encoder.
type Session struct {
	stub     protocol.ClientStub
	maxBytes int
	logger   *util.Logger

	mu        sync.Mutex
	recording bool
	frames    [][]byte // oldest first
	size      int
	dropped   int
}

// MessageType returns MessageType.
func (s *Session) MessageType() string { return MessageType }

// ModifiesVideoPipeline returns true: the recorder wraps the encoder.
func (s *Session) ModifiesVideoPipeline() bool { return true }

// WrapVideoCapturer returns c.
func (s *Session) WrapVideoCapturer(c video.Capturer) video.Capturer { return c }

// WrapVideoEncoder returns an encoder that records the output of e.
func (s *Session) WrapVideoEncoder(e video.Encoder) video.Encoder {
	return &encoder{inner: e, session: s}
}

// OnMessage handles a recorder command.  Malformed or unknown commands
// are logged and reported as not handled.
func (s *Session) OnMessage(msg *protocol.ExtensionMessage) bool {
	cmd, err := protocol.DecodeCommand(msg.Data)
	if err != nil {
		s.logger.Warn("%v", err)
		return false
	}

	switch cmd.Type {
	case cmdStart:
		s.setRecording(true)
	case cmdStop:
		s.setRecording(false)
	case cmdNextFrame:
		var data string
		if f := s.next(); f != nil {
			data = base64.StdEncoding.EncodeToString(f)
		}
		if s.stub != nil {
			s.stub.DeliverHostMessage(protocol.NewCommandMessage(MessageType, cmdNextFrameReply, data))
		}
	default:
		s.logger.Debug("unknown command %q", cmd.Type)
		return false
	}
	return true
}

// Recording reports whether frames are currently being recorded.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Buffered returns the number of recorded frames and their total size.
func (s *Session) Buffered() (frames, bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames), s.size
}

// Dropped returns how many frames were discarded to stay within budget.
func (s *Session) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close discards any recorded frames.
func (s *Session) Close() error {
	s.mu.Lock()
	s.recording = false
	s.frames = nil
	s.size = 0
	s.mu.Unlock()
	return nil
}

func (s *Session) setRecording(on bool) {
	s.mu.Lock()
	changed := s.recording != on
	s.recording = on
	s.mu.Unlock()
	if changed {
		s.logger.Verbose("recording %v", on)
	}
}

func (s *Session) record(f *video.EncodedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil || !s.recording || len(f.Data) == 0 {
		return
	}
	if len(f.Data) > s.maxBytes {
		s.dropped++
		return
	}
	data := f.Clone().Data
	s.frames = append(s.frames, data)
	s.size += len(data)
	for s.size > s.maxBytes {
		s.size -= len(s.frames[0])
		s.frames[0] = nil
		s.frames = s.frames[1:]
		s.dropped++
	}
}

func (s *Session) next() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	f := s.frames[0]
	s.frames[0] = nil
	s.frames = s.frames[1:]
	s.size -= len(f)
	return f
}

// encoder records every frame produced by inner.
type encoder struct {
	inner   video.Encoder
	session *Session
}

func (e *encoder) Encode(frame *video.Frame) (*video.EncodedFrame, error) {
	out, err := e.inner.Encode(frame)
	if err != nil {
		return nil, err
	}
	e.session.record(out)
	return out, nil
}

func (e *encoder) Close() error { return e.inner.Close() }
