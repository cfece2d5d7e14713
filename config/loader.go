package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)
//
// Per-extension tunables (recorder budget, RTP packetizer) are decoded
// by the extensions themselves with envdecode.

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the HOSTEXT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value; malformed numbers are ignored.
// This should be called BEFORE CLI flag parsing so that flags take
// precedence.
func LoadFromEnv(cfg *Config) {
	// Extensions
	if v, ok := os.LookupEnv("HOSTEXT_EXTENSIONS"); ok && v != "" {
		cfg.Extensions = splitList(v)
	}

	// Negotiation.  An explicitly empty value means the peer accepts
	// nothing, so presence rather than content is checked.
	if v, ok := os.LookupEnv("HOSTEXT_CLIENT_CAPS"); ok {
		cfg.ClientCapabilities = v
		cfg.ClientCapabilitiesSet = true
	}

	// Video
	if v, ok := envInt("HOSTEXT_FRAMES"); ok {
		cfg.Frames = v
	}
	if v, ok := envDuration("HOSTEXT_FRAME_INTERVAL"); ok {
		cfg.FrameInterval = v
	}
	if v, ok := envInt("HOSTEXT_WIDTH"); ok && v > 0 {
		cfg.Width = v
	}
	if v, ok := envInt("HOSTEXT_HEIGHT"); ok && v > 0 {
		cfg.Height = v
	}

	// SSH agent
	if v := os.Getenv("HOSTEXT_AGENT_KEYS"); v != "" {
		cfg.AgentKeys = splitList(v)
	}
	if v := os.Getenv("HOSTEXT_AGENT_SOCK"); v != "" {
		cfg.AgentSocket = v
	}

	// Output
	if v, ok := envInt("HOSTEXT_VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
	if envBool("HOSTEXT_DRY_RUN") {
		cfg.DryRun = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envDuration accepts a Go duration ("40ms") or a bare number of
// milliseconds.
func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
