// Package errors provides domain-specific error types for hostext.
//
// These types carry structured context (registry position, extension,
// operation) that helps callers tell programmer errors in the extension
// registry apart from runtime failures inside a single extension.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

// Registry configuration errors.  These are programmer errors and are
// reported once, when the manager is constructed.
var (
	ErrNilExtension         = errors.New("extension is nil")
	ErrEmptyMessageType     = errors.New("message type is empty")
	ErrDuplicateMessageType = errors.New("message type already registered")
	ErrInvalidCapability    = errors.New("capability must be a single token")
)

// Lifecycle and runtime errors.
var (
	ErrAlreadyNegotiated = errors.New("capabilities already negotiated")
	ErrManagerClosed     = errors.New("extension manager is closed")
	ErrSessionClosed     = errors.New("extension session is closed")
	ErrMalformedMessage  = errors.New("malformed extension message")
	ErrUnknownExtension  = errors.New("unknown extension")
)

// ── Structured error types ───────────────────────────────────────────

// RegistryError reports an invalid entry in the extension registry.
type RegistryError struct {
	Index       int    // position of the offending extension
	MessageType string // its message type, possibly empty
	Capability  string // its required capability, possibly empty
	Err         error  // one of the registry sentinels
}

func (e *RegistryError) Error() string {
	s := fmt.Sprintf("extension registry: entry %d", e.Index)
	if e.MessageType != "" {
		s += fmt.Sprintf(" (%q)", e.MessageType)
	}
	s += ": " + e.Err.Error()
	if e.Capability != "" && errors.Is(e.Err, ErrInvalidCapability) {
		s += fmt.Sprintf(": %q", e.Capability)
	}
	return s
}

func (e *RegistryError) Unwrap() error { return e.Err }

// ExtensionError reports a failure inside one extension session.
type ExtensionError struct {
	MessageType string // owning extension
	Op          string // "create", "message", "wrap", "close"
	Err         error
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("extension %s %s: %v", e.MessageType, e.Op, e.Err)
}

func (e *ExtensionError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Registry creates a RegistryError for the extension at index.
func Registry(index int, msgType, capability string, err error) *RegistryError {
	return &RegistryError{Index: index, MessageType: msgType, Capability: capability, Err: err}
}

// Wrap creates an ExtensionError.
func Wrap(msgType, op string, err error) *ExtensionError {
	return &ExtensionError{MessageType: msgType, Op: op, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsConfiguration reports whether err stems from an invalid extension
// registry rather than from runtime traffic.
func IsConfiguration(err error) bool {
	if err == nil {
		return false
	}
	var re *RegistryError
	return errors.As(err, &re)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use hostext/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
