package recorder

import (
	"encoding/base64"
	"testing"

	"hostext/internal/extension/extensiontest"
	"hostext/internal/protocol"
	"hostext/internal/video"
)

func cmd(verb string) *protocol.ExtensionMessage {
	return protocol.NewCommandMessage(MessageType, verb, "")
}

func newSession(t *testing.T, maxBytes int) (*Session, *extensiontest.Stub) {
	t.Helper()
	stub := extensiontest.NewStub()
	s := New(Config{MaxBytes: maxBytes}, nil).CreateSession(&extensiontest.Control{}, stub)
	return s.(*Session), stub
}

// encode pushes one frame of the given bytes through the wrapped encoder.
func encode(t *testing.T, enc video.Encoder, data []byte) {
	t.Helper()
	if _, err := enc.Encode(&video.Frame{Data: data}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func lastReply(t *testing.T, stub *extensiontest.Stub) protocol.Command {
	t.Helper()
	msgs := stub.Messages()
	if len(msgs) == 0 {
		t.Fatal("no reply")
	}
	last := msgs[len(msgs)-1]
	if last.Type != MessageType {
		t.Fatalf("reply type = %q", last.Type)
	}
	c, err := protocol.DecodeCommand(last.Data)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRecorder_Descriptor(t *testing.T) {
	e := New(Config{}, nil)
	if e.RequiredCapability() != "videoRecorder" || e.MessageType() != "video-recorder" {
		t.Errorf("descriptor = %q/%q", e.RequiredCapability(), e.MessageType())
	}
	if e.maxBytes != DefaultMaxBytes {
		t.Errorf("maxBytes = %d, want default", e.maxBytes)
	}
}

func TestRecorder_RecordsOnlyWhileStarted(t *testing.T) {
	s, stub := newSession(t, 1024)
	enc := s.WrapVideoEncoder(video.NewRawEncoder(0))

	encode(t, enc, []byte("before"))
	s.OnMessage(cmd("start"))
	if !s.Recording() {
		t.Fatal("not recording after start")
	}
	encode(t, enc, []byte("one"))
	encode(t, enc, []byte("two"))
	s.OnMessage(cmd("stop"))
	encode(t, enc, []byte("after"))

	if n, size := s.Buffered(); n != 2 || size != 6 {
		t.Errorf("buffered = %d frames / %d bytes, want 2 / 6", n, size)
	}

	for _, want := range []string{"one", "two"} {
		s.OnMessage(cmd("next-frame"))
		r := lastReply(t, stub)
		if r.Type != "next-frame-reply" {
			t.Fatalf("reply verb = %q", r.Type)
		}
		got, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("frame = %q, want %q", got, want)
		}
	}

	s.OnMessage(cmd("next-frame"))
	if r := lastReply(t, stub); r.Data != "" {
		t.Errorf("empty buffer replied with %q", r.Data)
	}
}

func TestRecorder_BudgetDropsOldest(t *testing.T) {
	s, stub := newSession(t, 10)
	enc := s.WrapVideoEncoder(video.NewRawEncoder(0))
	s.OnMessage(cmd("start"))

	encode(t, enc, []byte("aaaa"))
	encode(t, enc, []byte("bbbb"))
	encode(t, enc, []byte("cccc")) // evicts aaaa
	encode(t, enc, []byte("this frame is too large"))

	if n, size := s.Buffered(); n != 2 || size != 8 {
		t.Errorf("buffered = %d / %d, want 2 / 8", n, size)
	}
	if s.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", s.Dropped())
	}

	s.OnMessage(cmd("next-frame"))
	got, _ := base64.StdEncoding.DecodeString(lastReply(t, stub).Data)
	if string(got) != "bbbb" {
		t.Errorf("oldest kept frame = %q, want bbbb", got)
	}
}

func TestRecorder_RecordsCopies(t *testing.T) {
	s, stub := newSession(t, 1024)
	enc := s.WrapVideoEncoder(video.NewRawEncoder(0))
	s.OnMessage(cmd("start"))

	// RawEncoder reuses its output buffer between calls.
	encode(t, enc, []byte("first"))
	encode(t, enc, []byte("xxxxx"))

	s.OnMessage(cmd("next-frame"))
	got, _ := base64.StdEncoding.DecodeString(lastReply(t, stub).Data)
	if string(got) != "first" {
		t.Errorf("frame = %q, want first", got)
	}
}

func TestRecorder_BadCommands(t *testing.T) {
	s, stub := newSession(t, 1024)
	tests := []struct {
		name string
		data string
	}{
		{"not json", "start"},
		{"no verb", `{}`},
		{"unknown verb", `{"type":"rewind"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s.OnMessage(&protocol.ExtensionMessage{Type: MessageType, Data: tt.data}) {
				t.Error("OnMessage = true, want false")
			}
		})
	}
	if len(stub.Messages()) != 0 {
		t.Error("bad commands must not produce replies")
	}
}

func TestRecorder_WrapsOnlyEncoder(t *testing.T) {
	s, _ := newSession(t, 0)
	if !s.ModifiesVideoPipeline() {
		t.Fatal("recorder must modify the pipeline")
	}
	c := video.NewPatternCapturer(2, 2, 0)
	if s.WrapVideoCapturer(c) != video.Capturer(c) {
		t.Error("capturer should pass through")
	}

	inner := &extensiontest.Encoder{Name: "base"}
	enc := s.WrapVideoEncoder(inner)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if !inner.Closed() {
		t.Error("wrapper must close the encoder it owns")
	}
}

// emptyEncoder produces no output and no error, as an encoder that is
// still buffering might.
type emptyEncoder struct{}

func (emptyEncoder) Encode(*video.Frame) (*video.EncodedFrame, error) { return nil, nil }
func (emptyEncoder) Close() error                                    { return nil }

func TestRecorder_NilEncodedFrame(t *testing.T) {
	s, _ := newSession(t, 1024)
	enc := s.WrapVideoEncoder(emptyEncoder{})
	s.OnMessage(cmd("start"))

	out, err := enc.Encode(&video.Frame{Data: []byte("x")})
	if err != nil || out != nil {
		t.Fatalf("Encode = %v, %v; want nil, nil", out, err)
	}
	if n, _ := s.Buffered(); n != 0 {
		t.Errorf("buffered %d frames from a nil output", n)
	}
}

func TestRecorder_CloseDiscards(t *testing.T) {
	s, _ := newSession(t, 1024)
	enc := s.WrapVideoEncoder(video.NewRawEncoder(0))
	s.OnMessage(cmd("start"))
	encode(t, enc, []byte("x"))

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Buffered(); n != 0 || s.Recording() {
		t.Error("Close should stop recording and discard frames")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("HOSTEXT_RECORDER_MAX_BYTES", "")
		cfg, err := ConfigFromEnv()
		if err != nil {
			t.Fatal(err)
		}
		if got := New(cfg, nil).maxBytes; got != DefaultMaxBytes {
			t.Errorf("maxBytes = %d, want %d", got, DefaultMaxBytes)
		}
	})
	t.Run("set", func(t *testing.T) {
		t.Setenv("HOSTEXT_RECORDER_MAX_BYTES", "4096")
		e, err := NewFromEnv(nil)
		if err != nil {
			t.Fatal(err)
		}
		if e.maxBytes != 4096 {
			t.Errorf("maxBytes = %d, want 4096", e.maxBytes)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		t.Setenv("HOSTEXT_RECORDER_MAX_BYTES", "lots")
		if _, err := ConfigFromEnv(); err == nil {
			t.Error("expected error for non-numeric budget")
		}
	})
}
