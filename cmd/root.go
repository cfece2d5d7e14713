// Package cmd wires up the CLI flags and dispatches to the host core.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"hostext/config"
	"hostext/extensions/agentfwd"
	"hostext/internal/core"
	"hostext/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X hostext/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate hostext mode against the
// process's standard streams.
func Execute(ctx context.Context, args []string) error {
	var prompt agentfwd.PassphraseFunc
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt = agentfwd.TerminalPassphrase
	}
	return run(ctx, args, streams{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		prompt: prompt,
	})
}

type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	prompt agentfwd.PassphraseFunc
}

func run(ctx context.Context, args []string, s streams) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("hostext", flag.ContinueOnError)
	fs.SetOutput(s.errOut)

	// ── extensions ───────────────────────────────────────────────
	extList := strings.Join(cfg.Extensions, ",")
	fs.StringVarP(&extList, "extensions", "e", extList, "Comma-separated extensions to register (all, none)")
	fs.BoolVar(&cfg.ListExtensions, "list", false, "List the bundled extensions and exit")

	// ── negotiation ──────────────────────────────────────────────
	fs.StringVarP(&cfg.ClientCapabilities, "client-caps", "c", cfg.ClientCapabilities,
		"Capabilities the client accepts, space-separated (default: all advertised)")

	// ── video ────────────────────────────────────────────────────
	fs.IntVarP(&cfg.Frames, "frames", "n", cfg.Frames, "Frames to pump through the video pipeline (0 disables)")
	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "Delay between captured frames")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Frame width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Frame height in pixels")

	// ── SSH agent ────────────────────────────────────────────────
	fs.StringArrayVarP(&cfg.AgentKeys, "agent-key", "k", cfg.AgentKeys, "Private key for the forwarded agent (repeatable)")
	fs.StringVar(&cfg.AgentSocket, "agent-sock", cfg.AgentSocket, "Relay to an existing agent socket instead of a keyring")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Negotiate, print the outcome and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(s.errOut, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(s.errOut, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(s.out, "hostext %s\n", version)
		return nil
	}

	if fs.Changed("extensions") {
		exts, err := config.ParseExtensionList(extList)
		if err != nil {
			return fmt.Errorf("extensions: %w", err)
		}
		cfg.Extensions = exts
	}
	if fs.Changed("client-caps") {
		cfg.ClientCapabilitiesSet = true
	}

	// ── positional arguments ─────────────────────────────────────
	in, closeIn, err := openInput(fs.Args(), s.in)
	if err != nil {
		return err
	}
	defer closeIn()

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(s.errOut)

	mode, err := core.Build(ctx, cfg, logger, core.Stdio{In: in, Out: s.out, Passphrase: s.prompt})
	if err != nil {
		return err
	}
	if err := mode.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// openInput resolves the optional input argument: a file of JSON
// messages, "-" for stdin, or nothing for no client input.
func openInput(remaining []string, stdin io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	switch len(remaining) {
	case 0:
		return nil, noop, nil
	case 1:
	default:
		return nil, noop, fmt.Errorf("too many arguments (use --help for usage)")
	}

	if remaining[0] == "-" {
		return stdin, noop, nil
	}
	f, err := os.Open(remaining[0])
	if err != nil {
		return nil, noop, fmt.Errorf("input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `hostext – Host Extension Session Runner v%s

Negotiates optional host extensions with a simulated client, routes
extension messages to them and lets them wrap a synthetic video pipeline.
Client messages are JSON lines {"type":..., "data":...}; host messages
are written to stdout in the same form.

Usage:
  hostext [options] -                  Read client messages from stdin
  hostext [options] <file>             Read client messages from a file
  hostext --list                       List the bundled extensions

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  hostext --dry-run -c "videoRecorder" -            Show what would activate
  echo '{"type":"echo","data":"hi"}' | hostext -   Echo round trip
  hostext -e rtpmirror -n 90 session.jsonl         Mirror 90 frames as RTP
  hostext -e agentfwd -k ~/.ssh/id_ed25519 -       Forward an SSH agent
`)
}
