package video

import (
	"context"
	"sync"
	"time"
)

// PatternCapturer generates a moving luma gradient.  It stands in for
// a screen capturer when no real display is available.
type PatternCapturer struct {
	width, height int
	interval      time.Duration

	mu     sync.Mutex
	seq    uint64
	start  time.Time
	closed bool
}

// NewPatternCapturer returns a capturer producing width x height frames
// no faster than one per interval.  A zero interval never waits.
func NewPatternCapturer(width, height int, interval time.Duration) *PatternCapturer {
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 48
	}
	return &PatternCapturer{width: width, height: height, interval: interval}
}

// Capture implements Capturer.
func (p *PatternCapturer) Capture(ctx context.Context) (*Frame, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	seq := p.seq
	p.seq++
	if p.start.IsZero() {
		p.start = time.Now()
	}
	due := p.start.Add(time.Duration(seq) * p.interval)
	p.mu.Unlock()

	if wait := time.Until(due); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &Frame{
		Width:     p.width,
		Height:    p.height,
		Data:      make([]byte, I420Size(p.width, p.height)),
		Timestamp: int64(seq) * int64(p.interval),
		Sequence:  seq,
	}
	ySize := p.width * p.height
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			f.Data[y*p.width+x] = byte(x + y + int(seq))
		}
	}
	for i := ySize; i < len(f.Data); i++ {
		f.Data[i] = 128 // neutral chroma
	}
	return f, nil
}

// Close implements Capturer.
func (p *PatternCapturer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
