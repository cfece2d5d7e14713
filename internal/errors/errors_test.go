package errors

import (
	"fmt"
	"io"
	"testing"
)

func TestRegistryError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *RegistryError
		want string
	}{
		{
			name: "duplicate type",
			err:  Registry(2, "echo", "", ErrDuplicateMessageType),
			want: `extension registry: entry 2 ("echo"): message type already registered`,
		},
		{
			name: "empty type",
			err:  Registry(0, "", "cap1", ErrEmptyMessageType),
			want: "extension registry: entry 0: message type is empty",
		},
		{
			name: "bad capability",
			err:  Registry(1, "rec", "a b", ErrInvalidCapability),
			want: `extension registry: entry 1 ("rec"): capability must be a single token: "a b"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryError_Unwrap(t *testing.T) {
	err := Registry(0, "x", "", ErrDuplicateMessageType)
	if !Is(err, ErrDuplicateMessageType) {
		t.Error("should unwrap to ErrDuplicateMessageType")
	}
}

func TestExtensionError_Format(t *testing.T) {
	err := Wrap("ssh-agent", "close", io.ErrClosedPipe)
	want := "extension ssh-agent close: io: read/write on closed pipe"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !Is(err, io.ErrClosedPipe) {
		t.Error("should unwrap to inner error")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "frames",
				Value:   -1,
				Message: "must not be negative",
				Hint:    "use 0 to disable the video pipeline",
			},
			want: "config: --frames=-1: must not be negative\n  hint: use 0 to disable the video pipeline",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "extensions",
				Message: "at least one extension is required",
			},
			want: "config: --extensions: at least one extension is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestIsConfiguration(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"registry", Registry(0, "x", "", ErrEmptyMessageType), true},
		{"wrapped registry", fmt.Errorf("new manager: %w", Registry(0, "x", "", ErrNilExtension)), true},
		{"bare sentinel", ErrDuplicateMessageType, false},
		{"runtime", Wrap("x", "message", ErrMalformedMessage), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfiguration(tt.err); got != tt.want {
				t.Errorf("IsConfiguration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	// Verify sentinel errors are distinct.
	sentinels := []error{
		ErrNilExtension, ErrEmptyMessageType, ErrDuplicateMessageType,
		ErrInvalidCapability, ErrAlreadyNegotiated, ErrManagerClosed,
		ErrSessionClosed,
		ErrMalformedMessage, ErrUnknownExtension,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
