package core

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"hostext/config"
	"hostext/internal/metrics"
	"hostext/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(ctx context.Context, cfg *config.Config, logger *util.Logger, stdio Stdio) (Mode, error) {
	if cfg.ListExtensions {
		return &ListMode{Out: stdio.Out}, nil
	}
	return buildHost(ctx, cfg, logger, stdio)
}

// ── mode builders ────────────────────────────────────────────────────

func buildHost(ctx context.Context, cfg *config.Config, logger *util.Logger, stdio Stdio) (Mode, error) {
	reg, err := BuildRegistry(ctx, cfg, logger, stdio.Passphrase)
	if err != nil {
		return nil, err
	}
	return &HostSession{
		Config:     cfg,
		Extensions: reg.Extensions,
		Stdio:      stdio,
		Logger:     logger,
		Metrics:    metrics.New(),
		registry:   reg,
	}, nil
}

// ListMode prints the bundled extensions.
type ListMode struct {
	Out io.Writer
}

// Run implements Mode.
func (l *ListMode) Run(context.Context) error {
	if l.Out == nil {
		return nil
	}
	tw := tabwriter.NewWriter(l.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMESSAGE TYPE\tCAPABILITY\tDESCRIPTION")
	for _, e := range Catalog {
		c := e.Capability
		if c == "" {
			c = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.MessageType, c, e.Summary)
	}
	return tw.Flush()
}
