// Package metrics provides lightweight, lock-free counters for tracking
// what the extension layer of a host session did: which extensions were
// activated, how inbound messages were routed, and how often the video
// pipeline was intercepted.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks extension metrics for one host session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	extensionsActivated atomic.Int64
	messagesRouted      atomic.Int64
	messagesDropped     atomic.Int64
	capturerOffers      atomic.Int64
	encoderOffers       atomic.Int64
	pipelineResets      atomic.Int64
	hostMessages        atomic.Int64
	framesEncoded       atomic.Int64
	errorsTotal         atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	negotiatedAt time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Negotiation ──────────────────────────────────────────────────────

// Negotiated records the moment capabilities were negotiated and how
// many extensions were activated as a result.
func (c *Collector) Negotiated(activated int) {
	if c == nil {
		return
	}
	c.extensionsActivated.Add(int64(activated))
	c.mu.Lock()
	c.negotiatedAt = time.Now()
	c.mu.Unlock()
}

// ExtensionsActivated returns the number of extension sessions created.
func (c *Collector) ExtensionsActivated() int64 {
	if c == nil {
		return 0
	}
	return c.extensionsActivated.Load()
}

// ── Routing ──────────────────────────────────────────────────────────

// MessageRouted records a message delivered to an extension session.
func (c *Collector) MessageRouted() {
	if c == nil {
		return
	}
	c.messagesRouted.Add(1)
}

// MessageDropped records a message no active session claimed.
func (c *Collector) MessageDropped() {
	if c == nil {
		return
	}
	c.messagesDropped.Add(1)
}

// MessagesRouted returns the number of routed messages.
func (c *Collector) MessagesRouted() int64 {
	if c == nil {
		return 0
	}
	return c.messagesRouted.Load()
}

// MessagesDropped returns the number of dropped messages.
func (c *Collector) MessagesDropped() int64 {
	if c == nil {
		return 0
	}
	return c.messagesDropped.Load()
}

// HostMessageSent records a message delivered to the client.
func (c *Collector) HostMessageSent() {
	if c == nil {
		return
	}
	c.hostMessages.Add(1)
}

// HostMessages returns the number of messages delivered to the client.
func (c *Collector) HostMessages() int64 {
	if c == nil {
		return 0
	}
	return c.hostMessages.Load()
}

// ── Video pipeline ───────────────────────────────────────────────────

// CapturerOffered records one session being offered the capturer.
func (c *Collector) CapturerOffered() {
	if c == nil {
		return
	}
	c.capturerOffers.Add(1)
}

// EncoderOffered records one session being offered the encoder.
func (c *Collector) EncoderOffered() {
	if c == nil {
		return
	}
	c.encoderOffers.Add(1)
}

// PipelineReset records a ResetVideoPipeline notification.
func (c *Collector) PipelineReset() {
	if c == nil {
		return
	}
	c.pipelineResets.Add(1)
}

// FrameEncoded records one frame passing through the encoder stage.
func (c *Collector) FrameEncoded() {
	if c == nil {
		return
	}
	c.framesEncoded.Add(1)
}

// CapturerOffers returns how many wrap offers the capturer saw.
func (c *Collector) CapturerOffers() int64 {
	if c == nil {
		return 0
	}
	return c.capturerOffers.Load()
}

// EncoderOffers returns how many wrap offers the encoder saw.
func (c *Collector) EncoderOffers() int64 {
	if c == nil {
		return 0
	}
	return c.encoderOffers.Load()
}

// PipelineResets returns the number of reset notifications.
func (c *Collector) PipelineResets() int64 {
	if c == nil {
		return 0
	}
	return c.pipelineResets.Load()
}

// FramesEncoded returns the number of frames encoded.
func (c *Collector) FramesEncoded() int64 {
	if c == nil {
		return 0
	}
	return c.framesEncoded.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime              string `json:"uptime"`
	ExtensionsActivated int64  `json:"extensions_activated"`
	MessagesRouted      int64  `json:"messages_routed"`
	MessagesDropped     int64  `json:"messages_dropped"`
	HostMessages        int64  `json:"host_messages"`
	CapturerOffers      int64  `json:"capturer_offers"`
	EncoderOffers       int64  `json:"encoder_offers"`
	PipelineResets      int64  `json:"pipeline_resets"`
	FramesEncoded       int64  `json:"frames_encoded"`
	ErrorsTotal         int64  `json:"errors_total"`
	NegotiatedAt        string `json:"negotiated_at,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorMessage    string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:              time.Since(c.startTime).Truncate(time.Second).String(),
		ExtensionsActivated: c.extensionsActivated.Load(),
		MessagesRouted:      c.messagesRouted.Load(),
		MessagesDropped:     c.messagesDropped.Load(),
		HostMessages:        c.hostMessages.Load(),
		CapturerOffers:      c.capturerOffers.Load(),
		EncoderOffers:       c.encoderOffers.Load(),
		PipelineResets:      c.pipelineResets.Load(),
		FramesEncoded:       c.framesEncoded.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
	}
	if !c.negotiatedAt.IsZero() {
		s.NegotiatedAt = c.negotiatedAt.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
