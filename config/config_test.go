package config

import (
	"reflect"
	"strings"
	"testing"
)

// ── ParseExtensionList ───────────────────────────────────────────────

func TestParseExtensionList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single", "echo", []string{"echo"}, false},
		{"several", "recorder,echo", []string{"recorder", "echo"}, false},
		{"spaces and case", " Echo , RTPMIRROR ", []string{"echo", "rtpmirror"}, false},
		{"duplicates", "echo,recorder,echo", []string{"echo", "recorder"}, false},
		{"empty items", "echo,,agentfwd,", []string{"echo", "agentfwd"}, false},
		{"all", "all", KnownExtensions, false},
		{"none", "none", []string{}, false},
		{"empty", "", []string{}, false},
		{"unknown", "echo,teleport", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExtensionList(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseExtensionList_ErrorNamesKnown(t *testing.T) {
	_, err := ParseExtensionList("bogus")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, k := range KnownExtensions {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error %q should list %q", err, k)
		}
	}
}

// ── Defaults ─────────────────────────────────────────────────────────

func TestDefault(t *testing.T) {
	cfg := Default()
	if !reflect.DeepEqual(cfg.Extensions, KnownExtensions) {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	// The slice must be a copy so callers can't mutate KnownExtensions.
	cfg.Extensions[0] = "changed"
	if KnownExtensions[0] != ExtEcho {
		t.Error("Default shares KnownExtensions")
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestHasExtension(t *testing.T) {
	cfg := &Config{Extensions: []string{"echo", "recorder"}}
	if !cfg.HasExtension("recorder") || cfg.HasExtension("agentfwd") {
		t.Error("HasExtension mismatch")
	}
}

// ── Negotiated ───────────────────────────────────────────────────────

func TestNegotiated(t *testing.T) {
	const advertised = "videoRecorder rtpMirror sshAgent"
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unset accepts all", Config{}, advertised},
		{"subset", Config{ClientCapabilities: "sshAgent videoRecorder", ClientCapabilitiesSet: true}, "videoRecorder sshAgent"},
		{"unknown ignored", Config{ClientCapabilities: "teleport rtpMirror", ClientCapabilitiesSet: true}, "rtpMirror"},
		{"explicitly none", Config{ClientCapabilitiesSet: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Negotiated(advertised); got != tt.want {
				t.Errorf("Negotiated = %q, want %q", got, tt.want)
			}
		})
	}
}
