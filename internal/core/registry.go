package core

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh/agent"

	"hostext/config"
	"hostext/extensions/agentfwd"
	"hostext/extensions/echo"
	"hostext/extensions/recorder"
	"hostext/extensions/rtpmirror"
	hxerr "hostext/internal/errors"
	"hostext/internal/extension"
	"hostext/util"
)

// CatalogEntry describes a bundled extension without constructing it.
type CatalogEntry struct {
	Name        string
	MessageType string
	Capability  string
	Summary     string
}

// Catalog lists the bundled extensions in registry order.
var Catalog = []CatalogEntry{
	{config.ExtEcho, echo.MessageType, "", "echoes every message back to the client"},
	{config.ExtRecorder, recorder.MessageType, recorder.Capability, "records encoded frames on request"},
	{config.ExtRTPMirror, rtpmirror.MessageType, rtpmirror.Capability, "mirrors encoded frames as VP8 RTP packets"},
	{config.ExtAgentFwd, agentfwd.MessageType, agentfwd.Capability, "serves the SSH agent protocol"},
}

// Registry is a constructed extension list plus anything that must be
// released once the session is over.
type Registry struct {
	Extensions []extension.Extension
	closers    []io.Closer
}

// Close releases resources held by the extensions.
func (r *Registry) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return hxerr.Join(errs...)
}

// BuildRegistry constructs the extensions enabled in cfg, in the order
// they are listed.
func BuildRegistry(ctx context.Context, cfg *config.Config, logger *util.Logger, prompt agentfwd.PassphraseFunc) (*Registry, error) {
	reg := &Registry{}
	for _, name := range cfg.Extensions {
		ext, closer, err := buildExtension(ctx, name, cfg, logger, prompt)
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("extension %s: %w", name, err)
		}
		reg.Extensions = append(reg.Extensions, ext)
		if closer != nil {
			reg.closers = append(reg.closers, closer)
		}
	}
	return reg, nil
}

// ── extension builders ───────────────────────────────────────────────

func buildExtension(ctx context.Context, name string, cfg *config.Config, logger *util.Logger, prompt agentfwd.PassphraseFunc) (extension.Extension, io.Closer, error) {
	switch name {
	case config.ExtEcho:
		return echo.New(logger), nil, nil
	case config.ExtRecorder:
		e, err := recorder.NewFromEnv(logger)
		return e, nil, err
	case config.ExtRTPMirror:
		e, err := rtpmirror.NewFromEnv(logger)
		return e, nil, err
	case config.ExtAgentFwd:
		return buildAgentFwd(ctx, cfg, logger, prompt)
	default:
		return nil, nil, fmt.Errorf("unknown extension")
	}
}

// buildAgentFwd relays to an upstream agent when a socket is
// configured, and otherwise serves a keyring of the configured keys.
func buildAgentFwd(ctx context.Context, cfg *config.Config, logger *util.Logger, prompt agentfwd.PassphraseFunc) (extension.Extension, io.Closer, error) {
	if cfg.AgentSocket != "" {
		e, err := agentfwd.DialUpstream(ctx, cfg.AgentSocket, logger)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	}
	var keys []agent.AddedKey
	if len(cfg.AgentKeys) > 0 {
		var err error
		if keys, err = agentfwd.LoadKeys(cfg.AgentKeys, prompt); err != nil {
			return nil, nil, err
		}
	} else {
		// Default keys are best effort: an unreadable or locked key is
		// skipped rather than failing the session.
		for _, p := range agentfwd.DefaultKeyPaths() {
			k, err := agentfwd.LoadKey(p, prompt)
			if err != nil {
				logger.Warn("agentfwd: skipping %s: %v", p, err)
				continue
			}
			keys = append(keys, k)
		}
	}
	e, err := agentfwd.NewKeyring(logger, keys...)
	if err != nil {
		return nil, nil, err
	}
	logger.Verbose("agentfwd: keyring holds %d keys", len(keys))
	return e, nil, nil
}
