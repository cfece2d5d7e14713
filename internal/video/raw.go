package video

import "sync"

// DefaultKeyframeInterval is the keyframe cadence of RawEncoder.
const DefaultKeyframeInterval = 30

// RawEncoder "encodes" by copying the frame verbatim.  It marks every
// keyframeInterval-th frame as a keyframe so consumers that care about
// keyframes can be exercised without a codec library.
type RawEncoder struct {
	keyframeInterval uint64

	mu     sync.Mutex
	out    EncodedFrame
	count  uint64
	closed bool
}

// NewRawEncoder returns a RawEncoder.  A non-positive interval selects
// DefaultKeyframeInterval.
func NewRawEncoder(keyframeInterval int) *RawEncoder {
	if keyframeInterval <= 0 {
		keyframeInterval = DefaultKeyframeInterval
	}
	return &RawEncoder{keyframeInterval: uint64(keyframeInterval)}
}

// Encode implements Encoder.
func (e *RawEncoder) Encode(frame *Frame) (*EncodedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	e.out.Data = append(e.out.Data[:0], frame.Data...)
	e.out.Keyframe = e.count%e.keyframeInterval == 0
	e.out.Timestamp = MediaClock(frame.Timestamp)
	e.out.Sequence = frame.Sequence
	e.count++
	return &e.out, nil
}

// Close implements Encoder.
func (e *RawEncoder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.out.Data = nil
	e.mu.Unlock()
	return nil
}
