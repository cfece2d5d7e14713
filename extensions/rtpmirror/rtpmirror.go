// Package rtpmirror provides an extension that mirrors the encoded video
// stream to the client as RTP packets carried in extension messages.
//
// The client sends {"type":"start"} and {"type":"stop"}.  While started,
// every encoded frame is split with the VP8 payloader and each marshaled
// packet is delivered as {"type":"packet","data":"<base64>"}.
package rtpmirror

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/joeshaw/envdecode"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"hostext/internal/extension"
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/internal/video"
	"hostext/util"
)

const (
	// MessageType is the message type owned by the mirror.
	MessageType = "rtp-mirror"

	// Capability is the capability the client must accept.
	Capability = "rtpMirror"

	// DefaultMTU is the packet size limit when none is configured.
	DefaultMTU = 1200

	// DefaultPayloadType is the dynamic payload type used for VP8.
	DefaultPayloadType = 96

	rtpHeaderSize = 12

	// MaxPayloadType is the largest payload type that fits the 7-bit
	// header field next to the marker bit.
	MaxPayloadType = 127

	// MaxMTU keeps the payload budget within the packetizer's uint16.
	MaxMTU = rtpHeaderSize + 0xFFFF
)

const (
	cmdStart  = "start"
	cmdStop   = "stop"
	cmdPacket = "packet"
)

// Config tunes the packetizer.  Defaults can be loaded via envdecode.
type Config struct {
	// MTU bounds each marshaled packet. ENV: HOSTEXT_RTP_MTU
	MTU int `env:"HOSTEXT_RTP_MTU,default=1200,strict"`
	// PayloadType of every packet. ENV: HOSTEXT_RTP_PAYLOAD_TYPE
	PayloadType uint8 `env:"HOSTEXT_RTP_PAYLOAD_TYPE,default=96,strict"`
	// SSRC of the stream; zero picks one per session. ENV: HOSTEXT_RTP_SSRC
	SSRC uint32 `env:"HOSTEXT_RTP_SSRC,strict"`
}

// ConfigFromEnv builds a Config using envdecode and validates it.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values that cannot be carried in an RTP header or
// packetized.  Zero MTU and payload type mean "use the default".
func (c Config) Validate() error {
	if c.MTU != 0 && (c.MTU <= rtpHeaderSize || c.MTU > MaxMTU) {
		return fmt.Errorf("rtp mtu %d: must be between %d and %d", c.MTU, rtpHeaderSize+1, MaxMTU)
	}
	if c.PayloadType > MaxPayloadType {
		return fmt.Errorf("rtp payload type %d: must be at most %d", c.PayloadType, MaxPayloadType)
	}
	return nil
}

// Extension is the mirror descriptor.
type Extension struct {
	cfg    Config
	logger *util.Logger
}

var _ extension.Extension = (*Extension)(nil)

// New returns a mirror.  Zero MTU and payload type select the
// defaults; values Validate rejects are replaced by them too.
func New(cfg Config, logger *util.Logger) *Extension {
	logger = logger.Named("rtpmirror")
	if cfg.MTU > MaxMTU {
		logger.Warn("mtu %d too large, using %d", cfg.MTU, MaxMTU)
		cfg.MTU = MaxMTU
	}
	if cfg.MTU <= rtpHeaderSize {
		cfg.MTU = DefaultMTU
	}
	if cfg.PayloadType == 0 || cfg.PayloadType > MaxPayloadType {
		if cfg.PayloadType != 0 {
			logger.Warn("payload type %d out of range, using %d", cfg.PayloadType, DefaultPayloadType)
		}
		cfg.PayloadType = DefaultPayloadType
	}
	return &Extension{cfg: cfg, logger: logger}
}

// NewFromEnv builds a mirror using ConfigFromEnv.
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
	ssrc := e.cfg.SSRC
	if ssrc == 0 {
		ssrc = rand.Uint32()
	}
	return &Session{
		stub:        stub,
		logger:      e.logger,
		ssrc:        ssrc,
		payloadType: e.cfg.PayloadType,
		mtu:         e.cfg.MTU,
		sequencer:   rtp.NewRandomSequencer(),
		payloader:   &codecs.VP8Payloader{},
	}
}

// Session is a live mirror.  Commands arrive on the control goroutine
// and frames on the encoder's, so state is guarded by mu.
type Session struct {
	stub   protocol.ClientStub
	logger *util.Logger

	mu          sync.Mutex
	started     bool
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	payloader   *codecs.VP8Payloader
	packets     int
}

// MessageType returns MessageType.
func (s *Session) MessageType() string { return MessageType }

// ModifiesVideoPipeline returns true: the mirror wraps the encoder.
func (s *Session) ModifiesVideoPipeline() bool { return true }

// WrapVideoCapturer returns c.
func (s *Session) WrapVideoCapturer(c video.Capturer) video.Capturer { return c }

// WrapVideoEncoder returns an encoder that mirrors the output of e.
func (s *Session) WrapVideoEncoder(e video.Encoder) video.Encoder {
	return &encoder{inner: e, session: s}
}

// OnMessage handles start and stop.
func (s *Session) OnMessage(msg *protocol.ExtensionMessage) bool {
	cmd, err := protocol.DecodeCommand(msg.Data)
	if err != nil {
		s.logger.Warn("%v", err)
		return false
	}
	switch cmd.Type {
	case cmdStart, cmdStop:
		s.mu.Lock()
		s.started = cmd.Type == cmdStart
		s.mu.Unlock()
		s.logger.Verbose("mirror %s (ssrc %d)", cmd.Type, s.SSRC())
		return true
	default:
		s.logger.Debug("unknown command %q", cmd.Type)
		return false
	}
}

// SSRC returns the stream's synchronization source.
func (s *Session) SSRC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssrc
}

// Packets returns the number of packets delivered so far.
func (s *Session) Packets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets
}

// Close stops mirroring.
func (s *Session) Close() error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

// packetize splits f into marshaled RTP packets, or returns nil when
// the mirror is stopped.
func (s *Session) packetize(f *video.EncodedFrame) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil || !s.started || len(f.Data) == 0 {
		return nil, nil
	}

	payloads := s.payloader.Payload(uint16(s.mtu-rtpHeaderSize), f.Data)
	out := make([][]byte, 0, len(payloads))
	for i, payload := range payloads {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    s.payloadType,
				SequenceNumber: s.sequencer.NextSequenceNumber(),
				Timestamp:      f.Timestamp,
				SSRC:           s.ssrc,
			},
			Payload: payload,
		}
		b, err := pkt.Marshal()
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	s.packets += len(out)
	return out, nil
}

func (s *Session) deliver(packets [][]byte) {
	if s.stub == nil {
		return
	}
	for _, p := range packets {
		data := base64.StdEncoding.EncodeToString(p)
		s.stub.DeliverHostMessage(protocol.NewCommandMessage(MessageType, cmdPacket, data))
	}
}

// encoder mirrors every frame produced by inner.
type encoder struct {
	inner   video.Encoder
	session *Session
}

func (e *encoder) Encode(frame *video.Frame) (*video.EncodedFrame, error) {
	out, err := e.inner.Encode(frame)
	if err != nil {
		return nil, err
	}
	packets, err := e.session.packetize(out)
	if err != nil {
		e.session.logger.Warn("packetize frame %d: %v", out.Sequence, err)
	}
	e.session.deliver(packets)
	return out, nil
}

func (e *encoder) Close() error { return e.inner.Close() }
