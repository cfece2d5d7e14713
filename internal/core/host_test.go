package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"hostext/config"
	"hostext/extensions/echo"
	"hostext/extensions/recorder"
	"hostext/extensions/rtpmirror"
	"hostext/internal/extension"
	"hostext/internal/metrics"
	"hostext/internal/protocol"
	"hostext/util"
)

func newHost(cfg *config.Config, in io.Reader, out io.Writer, exts ...extension.Extension) *HostSession {
	return &HostSession{
		Config:     cfg,
		Extensions: exts,
		Stdio:      Stdio{In: in, Out: out},
		Logger:     util.NewLogger(0),
		Metrics:    metrics.New(),
	}
}

func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Frames = 0
	return cfg
}

func hostMessages(t *testing.T, out *bytes.Buffer) []protocol.ExtensionMessage {
	t.Helper()
	var msgs []protocol.ExtensionMessage
	sc := bufio.NewScanner(bytes.NewReader(out.Bytes()))
	for sc.Scan() {
		var m protocol.ExtensionMessage
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("output line %q: %v", sc.Text(), err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestHostSession_EchoRoundTrip(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"type":"echo","data":"hello"}`,
		``,
		`not json`,
		`{"data":"no type"}`,
		`{"type":"video-recorder","data":"{}"}`,
		`{"type":"echo","data":"again"}`,
	}, "\n"))
	var out bytes.Buffer
	h := newHost(quietConfig(), in, &out, echo.New(nil))

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := hostMessages(t, &out)
	if len(msgs) != 2 || msgs[0].Data != "hello" || msgs[1].Data != "again" {
		t.Fatalf("host messages = %+v", msgs)
	}
	snap := h.Metrics.Snapshot()
	if snap.MessagesRouted != 2 || snap.MessagesDropped != 1 {
		t.Errorf("routed/dropped = %d/%d, want 2/1", snap.MessagesRouted, snap.MessagesDropped)
	}
	if snap.ErrorsTotal != 2 {
		t.Errorf("errors = %d, want 2 malformed lines", snap.ErrorsTotal)
	}
	if snap.HostMessages != 2 {
		t.Errorf("host messages = %d, want 2", snap.HostMessages)
	}
}

func TestHostSession_ConnectionID(t *testing.T) {
	h := newHost(quietConfig(), nil, nil)
	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(h.ConnectionID()); err != nil {
		t.Errorf("ConnectionID %q is not a UUID: %v", h.ConnectionID(), err)
	}
}

func TestHostSession_DryRunReportsNegotiation(t *testing.T) {
	cfg := quietConfig()
	cfg.DryRun = true
	cfg.ClientCapabilities = "rtpMirror somethingElse"
	cfg.ClientCapabilitiesSet = true
	var out bytes.Buffer
	h := newHost(cfg, strings.NewReader(`{"type":"echo","data":"x"}`), &out,
		echo.New(nil), recorder.New(recorder.Config{}, nil), rtpmirror.New(rtpmirror.Config{}, nil))

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	report := out.String()
	for _, want := range []string{
		"advertised:  videoRecorder rtpMirror\n",
		"negotiated:  rtpMirror\n",
		"active:      echo rtp-mirror\n",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report lacks %q:\n%s", want, report)
		}
	}
	if h.Metrics.MessagesRouted() != 0 {
		t.Error("dry run must not dispatch input")
	}
}

func TestHostSession_PipelineIntercepted(t *testing.T) {
	cfg := quietConfig()
	cfg.Frames = 3
	cfg.FrameInterval = 0
	cfg.Width, cfg.Height = 8, 8
	h := newHost(cfg, nil, nil, echo.New(nil), recorder.New(recorder.Config{}, nil))

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.Resets() != 2 {
		t.Errorf("resets = %d, want one per intercept", h.Resets())
	}
	snap := h.Metrics.Snapshot()
	if snap.FramesEncoded != 3 {
		t.Errorf("frames = %d, want 3", snap.FramesEncoded)
	}
	if snap.CapturerOffers != 1 || snap.EncoderOffers != 1 {
		t.Errorf("offers = %d/%d, want 1/1", snap.CapturerOffers, snap.EncoderOffers)
	}
}

func TestHostSession_NoResetWithoutPipelineSessions(t *testing.T) {
	cfg := quietConfig()
	cfg.Frames = 2
	cfg.FrameInterval = 0
	h := newHost(cfg, nil, nil, echo.New(nil))

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.Resets() != 0 {
		t.Errorf("resets = %d, want 0", h.Resets())
	}
	if h.Metrics.FramesEncoded() != 2 {
		t.Errorf("frames = %d, want 2", h.Metrics.FramesEncoded())
	}
}

func TestHostSession_MirrorDeliversPackets(t *testing.T) {
	cfg := quietConfig()
	cfg.Frames = 6
	cfg.FrameInterval = 20 * time.Millisecond
	cfg.Width, cfg.Height = 16, 16
	in := strings.NewReader(`{"type":"rtp-mirror","data":"{\"type\":\"start\"}"}` + "\n")
	var out bytes.Buffer
	h := newHost(cfg, in, &out, rtpmirror.New(rtpmirror.Config{}, nil))

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	msgs := hostMessages(t, &out)
	if len(msgs) == 0 {
		t.Fatal("no packets mirrored")
	}
	for _, m := range msgs {
		c, err := protocol.DecodeCommand(m.Data)
		if err != nil || m.Type != "rtp-mirror" || c.Type != "packet" {
			t.Errorf("unexpected host message %+v", m)
		}
	}
}

func TestHostSession_NegotiationFiltersExtensions(t *testing.T) {
	cfg := quietConfig()
	cfg.ClientCapabilitiesSet = true // peer accepts nothing
	in := strings.NewReader(`{"type":"rtp-mirror","data":"{\"type\":\"start\"}"}` + "\n")
	h := newHost(cfg, in, nil, rtpmirror.New(rtpmirror.Config{}, nil))

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.Metrics.ExtensionsActivated() != 0 {
		t.Error("extension activated without its capability")
	}
	if h.Metrics.MessagesDropped() != 1 {
		t.Errorf("dropped = %d, want 1", h.Metrics.MessagesDropped())
	}
}

func TestHostSession_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	h := newHost(quietConfig(), pr, nil, echo.New(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHostSession_InvalidRegistry(t *testing.T) {
	h := newHost(quietConfig(), nil, nil, echo.New(nil), echo.New(nil))
	if err := h.Run(context.Background()); err == nil {
		t.Error("expected error for duplicate message types")
	}
}

func TestHostSession_CancelStopsPump(t *testing.T) {
	cfg := quietConfig()
	cfg.Frames = 1000
	cfg.FrameInterval = time.Second
	h := newHost(cfg, nil, nil, echo.New(nil), recorder.New(recorder.Config{}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run err = %v, want nil without input", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not wait out the pump after cancel")
	}
	if h.Metrics.FramesEncoded() >= int64(cfg.Frames) {
		t.Error("pump ran to completion despite cancel")
	}
}
