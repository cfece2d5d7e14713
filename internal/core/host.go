package core

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"hostext/config"
	hxerr "hostext/internal/errors"
	"hostext/internal/extension"
	"hostext/internal/metrics"
	"hostext/internal/protocol"
	"hostext/internal/session"
	"hostext/internal/video"
	"hostext/util"
)

// maxLineSize bounds one inbound JSON message.
const maxLineSize = 1 << 20

// HostSession plays the host side of one client connection: it
// negotiates capabilities, activates extensions, runs a synthetic video
// pipeline through them and relays extension messages between its
// input and output.
//
// It implements session.Control for the extensions it hosts.
type HostSession struct {
	Config     *config.Config
	Extensions []extension.Extension
	Stdio      Stdio
	Logger     *util.Logger
	Metrics    *metrics.Collector

	registry *Registry // released after the session, if set by Build

	id     string
	resets atomic.Int64
	outMu  sync.Mutex
	enc    *json.Encoder
}

var _ session.Control = (*HostSession)(nil)

// ConnectionID implements session.Control.
func (h *HostSession) ConnectionID() string { return h.id }

// ResetVideoPipeline implements session.Control.  The pipeline is
// intercepted once before frames flow, so a reset only needs to be
// recorded; it must not rebuild anything from inside the manager call.
func (h *HostSession) ResetVideoPipeline() {
	n := h.resets.Add(1)
	h.Logger.Verbose("video pipeline reset requested (%d)", n)
}

// Resets returns how many pipeline resets were requested.
func (h *HostSession) Resets() int { return int(h.resets.Load()) }

// DeliverHostMessage implements protocol.ClientStub by writing msg to
// the output as one JSON line.  Safe for concurrent use.
func (h *HostSession) DeliverHostMessage(msg *protocol.ExtensionMessage) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	if h.enc == nil {
		return
	}
	if err := h.enc.Encode(msg); err != nil {
		h.Logger.Warn("write host message: %v", err)
		h.Metrics.RecordError(err.Error())
		return
	}
	h.Metrics.HostMessageSent()
}

// Run hosts the session until the input is exhausted or ctx ends.
func (h *HostSession) Run(ctx context.Context) error {
	if h.id == "" {
		h.id = uuid.NewString()
	}
	if h.Stdio.Out != nil {
		h.enc = json.NewEncoder(h.Stdio.Out)
	}
	log := h.Logger.Named("host")
	if h.registry != nil {
		defer func() {
			if err := h.registry.Close(); err != nil {
				log.Warn("releasing extensions: %v", err)
			}
		}()
	}

	mgr, err := extension.NewManager(h.Extensions, h,
		extension.WithLogger(h.Logger), extension.WithMetrics(h.Metrics))
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn("closing extensions: %v", err)
		}
	}()

	advertised := mgr.Capabilities()
	negotiated := h.Config.Negotiated(advertised)
	log.Verbose("connection %s: advertised %q, negotiated %q", h.id, advertised, negotiated)
	if err := mgr.OnNegotiatedCapabilities(h, negotiated); err != nil {
		return err
	}

	if h.Config.DryRun {
		return h.report(advertised, negotiated, mgr.ActiveMessageTypes())
	}

	pumpDone := make(chan struct{})
	if h.Config.Frames > 0 {
		capturer := mgr.InterceptVideoCapturer(
			video.NewPatternCapturer(h.Config.Width, h.Config.Height, h.Config.FrameInterval))
		encoder := mgr.InterceptVideoEncoder(video.NewRawEncoder(video.DefaultKeyframeInterval))
		go func() {
			defer close(pumpDone)
			h.pump(ctx, capturer, encoder)
		}()
	} else {
		close(pumpDone)
	}

	err = h.relay(ctx, mgr)

	// The pump watches ctx itself and always finishes.
	<-pumpDone
	if h.Config.Verbose > 0 {
		log.Verbose("metrics: %s", h.Metrics.JSON())
	}
	return err
}

// relay reads one ExtensionMessage per input line and dispatches it on
// the calling goroutine.  Malformed lines are logged and skipped.
func (h *HostSession) relay(ctx context.Context, mgr *extension.Manager) error {
	if h.Stdio.In == nil {
		return nil
	}
	log := h.Logger.Named("host")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(h.Stdio.In)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var msg protocol.ExtensionMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Type == "" {
				log.Warn("%v: %q", hxerr.ErrMalformedMessage, line)
				h.Metrics.RecordError(hxerr.ErrMalformedMessage.Error())
				continue
			}
			if !mgr.DispatchMessage(&msg) {
				log.Verbose("no extension for message type %q", msg.Type)
			}
		}
	}
}

// pump captures and encodes Config.Frames frames, then closes the
// pipeline it was handed.
func (h *HostSession) pump(ctx context.Context, c video.Capturer, e video.Encoder) {
	log := h.Logger.Named("host")
	defer func() {
		if err := e.Close(); err != nil {
			log.Warn("closing encoder: %v", err)
		}
		if err := c.Close(); err != nil {
			log.Warn("closing capturer: %v", err)
		}
	}()

	for i := 0; i < h.Config.Frames; i++ {
		frame, err := c.Capture(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("capture: %v", err)
				h.Metrics.RecordError(err.Error())
			}
			return
		}
		if _, err := e.Encode(frame); err != nil {
			log.Warn("encode frame %d: %v", frame.Sequence, err)
			h.Metrics.RecordError(err.Error())
			return
		}
		h.Metrics.FrameEncoded()
	}
	log.Debug("pumped %d frames", h.Config.Frames)
}

// report writes the negotiation outcome instead of running the session.
func (h *HostSession) report(advertised, negotiated string, active []string) error {
	if h.Stdio.Out == nil {
		return nil
	}
	_, err := fmt.Fprintf(h.Stdio.Out,
		"connection:  %s\nadvertised:  %s\nnegotiated:  %s\nactive:      %s\n",
		h.id, advertised, negotiated, strings.Join(active, " "))
	return err
}
