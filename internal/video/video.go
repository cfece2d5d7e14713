// Package video defines the two replaceable stages of a host's video
// pipeline, the Capturer and the Encoder, and the frame types that flow
// between them.
//
// # Ownership
//
// Capturer and Encoder values are move-only handles: at any time
// exactly one party owns a handle and is responsible for closing it.
// A wrapper that takes a handle and returns a different one owns the
// handle it took and must close it from its own Close.
package video

import (
	"context"
	"errors"
	"io"
)

// ErrClosed is returned by a stage used after Close.
var ErrClosed = errors.New("video: stage is closed")

// Frame is a raw captured frame in packed I420 layout.
type Frame struct {
	Width     int
	Height    int
	Data      []byte // Y plane followed by U and V planes
	Timestamp int64  // capture time in nanoseconds since the capturer started
	Sequence  uint64 // monotonically increasing per capturer
}

// I420Size returns the buffer size of a packed I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return ySize + uvSize*2
}

// EncodedFrame is the output of an Encoder.
type EncodedFrame struct {
	Data      []byte
	Keyframe  bool
	Timestamp uint32 // 90 kHz media clock
	Sequence  uint64 // sequence of the source frame
}

// Clone returns a deep copy of f, safe to keep past the next Encode.
func (f *EncodedFrame) Clone() *EncodedFrame {
	c := *f
	if f.Data != nil {
		c.Data = make([]byte, len(f.Data))
		copy(c.Data, f.Data)
	}
	return &c
}

// Capturer produces raw frames.
type Capturer interface {
	io.Closer

	// Capture blocks until the next frame is available.
	Capture(ctx context.Context) (*Frame, error)
}

// Encoder compresses raw frames.
type Encoder interface {
	io.Closer

	// Encode compresses one frame.  The returned frame's Data is
	// valid until the next Encode call.
	Encode(frame *Frame) (*EncodedFrame, error)
}

// MediaClock converts a nanosecond timestamp to the 90 kHz clock used
// for video RTP timestamps.
func MediaClock(ns int64) uint32 {
	return uint32(ns * 90 / 1_000_000)
}
