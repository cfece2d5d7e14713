// Package config defines the runtime configuration for hostext and
// provides helpers for parsing extension and capability lists.
package config

import (
	"fmt"
	"strings"
	"time"

	"hostext/internal/capability"
)

// Config holds every tuneable for a single host session.
type Config struct {
	// ── Extensions ───────────────────────────────────────────────────
	Extensions []string // enabled extension names, registry order

	// ── Negotiation ──────────────────────────────────────────────────
	ClientCapabilities    string // capabilities the peer accepts
	ClientCapabilitiesSet bool   // false → peer accepts everything advertised

	// ── Video ────────────────────────────────────────────────────────
	Frames        int // frames to pump through the pipeline; 0 disables
	FrameInterval time.Duration
	Width         int
	Height        int

	// ── SSH agent ────────────────────────────────────────────────────
	AgentKeys   []string // private key files for the in-memory keyring
	AgentSocket string   // upstream agent socket; replaces the keyring

	// ── Output ───────────────────────────────────────────────────────
	Verbose        int
	DryRun         bool
	ListExtensions bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Extensions:    append([]string(nil), KnownExtensions...),
		Frames:        DefaultFrames,
		FrameInterval: DefaultFrameInterval,
		Width:         DefaultWidth,
		Height:        DefaultHeight,
	}
}

// Negotiated returns the capabilities both sides agree on, given the
// host's advertised set.  Without explicit client capabilities the peer
// is assumed to accept everything advertised.
func (c *Config) Negotiated(advertised string) string {
	if !c.ClientCapabilitiesSet {
		return advertised
	}
	return capability.Intersect(advertised, c.ClientCapabilities)
}

// ── Extension-list parser ────────────────────────────────────────────

// IsKnownExtension reports whether name is a bundled extension.
func IsKnownExtension(name string) bool {
	for _, k := range KnownExtensions {
		if k == name {
			return true
		}
	}
	return false
}

// ParseExtensionList splits a comma-separated list such as
// "echo, recorder".  Empty items are skipped, duplicates keep their
// first position, and unknown names are an error.  "all" selects every
// bundled extension and "none" selects nothing.
func ParseExtensionList(list string) ([]string, error) {
	list = strings.TrimSpace(list)
	switch strings.ToLower(list) {
	case "all":
		return append([]string(nil), KnownExtensions...), nil
	case "", "none":
		return []string{}, nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(item))
		if name == "" || seen[name] {
			continue
		}
		if !IsKnownExtension(name) {
			return nil, fmt.Errorf("unknown extension %q (known: %s)",
				name, strings.Join(KnownExtensions, ", "))
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// HasExtension reports whether name is enabled.
func (c *Config) HasExtension(name string) bool {
	for _, e := range c.Extensions {
		if e == name {
			return true
		}
	}
	return false
}
