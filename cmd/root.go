// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"nnfp/config"
	"nnfp/internal/core"
	"nnfp/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X nnfp/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected nnfp mode.
//
// Settings are layered: defaults, then the TOML file (--config or
// NNFP_CONFIG), then NNFP_* environment variables (seeded from
// --env-file or ./.env), then the flags actually given on the command
// line.
func Execute(ctx context.Context, args []string) error {
	fl := &config.Config{}
	fs := flag.NewFlagSet("nnfp", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.BoolVarP(&fl.Listen, "listen", "l", false, "Run the nnfp server")
	fs.StringVarP(&fl.ListenAddr, "listen-addr", "a", config.DefaultListenAddr, "Server bind address")
	fs.StringVar(&fl.UsersFile, "users", "", "Credential file (username:password:/home lines)")
	fs.StringVar(&fl.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	var maxFrame uint
	fs.UintVar(&maxFrame, "max-frame-bytes", 0, "Reject frames declaring a larger payload (0 = no cap)")
	fs.IntVar(&fl.ChunkSize, "chunk-size", config.DefaultChunkSize, "File part size in bytes")
	fs.IntVar(&fl.DeadReadThreshold, "dead-read-threshold", config.DefaultDeadReadThreshold,
		"Consecutive empty reads before a socket is declared dead")

	// ── client ───────────────────────────────────────────────────
	fs.IntVarP(&fl.Port, "port", "p", config.DefaultPort, "Server port")
	fs.StringVarP(&fl.User, "user", "U", "", "Username (prompted for when omitted)")
	var timeoutSec, retries int
	fs.IntVarP(&timeoutSec, "timeout", "w", int(config.DefaultConnTimeout/time.Second), "Connect timeout in seconds")
	fs.IntVar(&retries, "retries", config.DefaultDialRetries, "Extra connect attempts")
	fs.StringVar(&fl.LocalDir, "local-dir", ".", "Where console downloads are stored")

	// ── batch operations ─────────────────────────────────────────
	fs.StringVar(&fl.List, "ls", "", "List a remote directory (must end with /)")
	fs.StringVar(&fl.Get, "get", "", "Download a remote file")
	fs.StringVarP(&fl.Output, "output", "o", "", "Local file for --get (- for stdout)")
	fs.StringVar(&fl.Put, "put", "", "Upload LOCAL:/REMOTE")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&fl.TunnelSpec, "tunnel", "T", "", "Reach the server via SSH gateway [user@]host[:port]")
	fs.StringVar(&fl.SSHKeyPath, "ssh-key", "", "SSH private key file")
	fs.BoolVar(&fl.SSHPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&fl.UseSSHAgent, "ssh-agent", false, "Use SSH agent")
	fs.BoolVar(&fl.StrictHostKey, "strict-hostkey", false, "Verify SSH host keys")
	fs.StringVar(&fl.KnownHostsPath, "known-hosts", "", "Custom known_hosts path")

	// ── sources & output ─────────────────────────────────────────
	fs.StringVar(&fl.ConfigFile, "config", "", "TOML config file")
	fs.StringVar(&fl.EnvFile, "env-file", "", "dotenv file (default ./.env when present)")
	fs.CountVarP(&fl.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("nnfp %s\n", version)
		return nil
	}

	fl.MaxFrameBytes = uint32(maxFrame)
	fl.Timeout = time.Duration(timeoutSec) * time.Second
	fl.Retries = retries

	// ── layered configuration ────────────────────────────────────
	cfg, err := load(fs, fl)
	if err != nil {
		return err
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintln(os.Stderr, describe(cfg))
		return nil
	}
	return mode.Run(ctx)
}

// load layers the configuration sources under the flags the user set.
func load(fs *flag.FlagSet, fl *config.Config) (*config.Config, error) {
	if err := config.LoadEnvFile(fl.EnvFile); err != nil {
		return nil, fmt.Errorf("env file: %w", err)
	}

	cfg := config.Default()

	path := fl.ConfigFile
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	config.LoadFromEnv(cfg)
	applyFlags(fs, fl, cfg)
	return cfg, nil
}

// flagFields copies one flag's value from the parsed flag struct.
var flagFields = map[string]func(dst, src *config.Config){ //nolint:gochecknoglobals
	"listen":              func(d, s *config.Config) { d.Listen = s.Listen },
	"listen-addr":         func(d, s *config.Config) { d.ListenAddr = s.ListenAddr },
	"users":               func(d, s *config.Config) { d.UsersFile = s.UsersFile },
	"metrics-addr":        func(d, s *config.Config) { d.MetricsAddr = s.MetricsAddr },
	"max-frame-bytes":     func(d, s *config.Config) { d.MaxFrameBytes = s.MaxFrameBytes },
	"chunk-size":          func(d, s *config.Config) { d.ChunkSize = s.ChunkSize },
	"dead-read-threshold": func(d, s *config.Config) { d.DeadReadThreshold = s.DeadReadThreshold },
	"port":                func(d, s *config.Config) { d.Port = s.Port },
	"user":                func(d, s *config.Config) { d.User = s.User },
	"timeout":             func(d, s *config.Config) { d.Timeout = s.Timeout },
	"retries":             func(d, s *config.Config) { d.Retries = s.Retries },
	"local-dir":           func(d, s *config.Config) { d.LocalDir = s.LocalDir },
	"ls":                  func(d, s *config.Config) { d.List = s.List },
	"get":                 func(d, s *config.Config) { d.Get = s.Get },
	"output":              func(d, s *config.Config) { d.Output = s.Output },
	"put":                 func(d, s *config.Config) { d.Put = s.Put },
	"tunnel":              func(d, s *config.Config) { d.TunnelSpec = s.TunnelSpec },
	"ssh-key":             func(d, s *config.Config) { d.SSHKeyPath = s.SSHKeyPath },
	"ssh-password":        func(d, s *config.Config) { d.SSHPassword = s.SSHPassword },
	"ssh-agent":           func(d, s *config.Config) { d.UseSSHAgent = s.UseSSHAgent },
	"strict-hostkey":      func(d, s *config.Config) { d.StrictHostKey = s.StrictHostKey },
	"known-hosts":         func(d, s *config.Config) { d.KnownHostsPath = s.KnownHostsPath },
	"env-file":            func(d, s *config.Config) { d.EnvFile = s.EnvFile },
	"verbose":             func(d, s *config.Config) { d.Verbose = s.Verbose },
}

func applyFlags(fs *flag.FlagSet, fl, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(cfg, fl)
		}
	})
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional takes "<host> [port]" in client mode.  The host may
// carry its own port as host:port.
func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) > 0 {
			return fmt.Errorf("unexpected arguments for listen mode: %q (use -a to set the address)", remaining)
		}
		return nil
	}

	switch len(remaining) {
	case 0:
		return nil // host may come from NNFP_HOST or the config file
	case 1, 2:
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}

	host, port, err := util.SplitTarget(remaining[0], cfg.Port)
	if err != nil {
		return err
	}
	cfg.Host, cfg.Port = host, port

	if len(remaining) == 2 {
		p, err := strconv.Atoi(remaining[1])
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid port %q", remaining[1])
		}
		cfg.Port = p
	}
	return nil
}

// describe summarises what would run, for --dry-run.
func describe(cfg *config.Config) string {
	if cfg.Listen {
		s := fmt.Sprintf("serve on %s (chunk %d, dead-read threshold %d", cfg.ListenAddr, cfg.ChunkSize, cfg.DeadReadThreshold)
		if cfg.MaxFrameBytes > 0 {
			s += fmt.Sprintf(", max frame %d", cfg.MaxFrameBytes)
		}
		s += ")"
		if cfg.MetricsAddr != "" {
			s += ", metrics on " + cfg.MetricsAddr
		}
		return s
	}

	target := util.FormatAddr(cfg.Host, cfg.Port)
	if cfg.TunnelEnabled {
		target += " via " + util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort)
	}
	switch {
	case cfg.List != "":
		return fmt.Sprintf("list %s on %s", cfg.List, target)
	case cfg.Get != "":
		return fmt.Sprintf("get %s from %s", cfg.Get, target)
	case cfg.Put != "":
		return fmt.Sprintf("put %s to %s", cfg.Put, target)
	default:
		return fmt.Sprintf("interactive session with %s", target)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `nnfp – NNFP file transfer server and client v%s

Usage:
  nnfp -l [options]                           Serve home directories
  nnfp [options] <host> [port]                Interactive client
  nnfp -U user --ls /dir/ <host>              List a directory
  nnfp -U user --get /file [-o out] <host>    Download a file
  nnfp -U user --put local:/remote <host>     Upload a file

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  NNFP_CONFIG, NNFP_HOST, NNFP_PORT, NNFP_USER, NNFP_PASSWORD,
  NNFP_LISTEN, NNFP_LISTEN_ADDR, NNFP_USERS_FILE, NNFP_METRICS_ADDR,
  NNFP_TUNNEL, NNFP_SSH_KEY, NNFP_VERBOSE

Examples:
  nnfp -l --users /etc/nnfp/users             Serve on :2920
  nnfp -l --config /etc/nnfp/nnfp.toml -v     Serve from a config file
  nnfp files.example.com                      Browse interactively
  nnfp -T admin@bastion files.internal        Browse through an SSH gateway
  nnfp -U alice --get /docs/a.pdf -o - host   Stream a file to stdout
`)
}
