// Package config defines the runtime configuration for nnfp and loads
// it from a TOML file, the environment, and CLI flags.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nnfp/internal/auth"
	ncerr "nnfp/internal/errors"
)

// Config holds every tuneable for one nnfp process, server or client.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	Listen            bool
	ListenAddr        string
	UsersFile         string
	Users             []auth.Record
	MaxFrameBytes     uint32 // 0 = no cap
	ChunkSize         int
	DeadReadThreshold int
	MetricsAddr       string // empty = no /metrics endpoint

	// ── Client ───────────────────────────────────────────────────────
	Host     string
	Port     int
	User     string
	Password string // NNFP_PASSWORD only; prompted for when empty
	Timeout  time.Duration
	Retries  int
	LocalDir string // where console downloads land

	// ── Batch operations (client) ────────────────────────────────────
	List   string // --ls DIR/
	Get    string // --get REMOTE
	Output string // -o LOCAL for --get ("-" = stdout)
	Put    string // --put LOCAL:REMOTE

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Sources ──────────────────────────────────────────────────────
	ConfigFile string
	EnvFile    string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Batch reports whether a one-shot client operation was requested.
func (c *Config) Batch() bool {
	return c.List != "" || c.Get != "" || c.Put != ""
}

// ApplyTunnelSpec parses TunnelSpec into its parts.  An empty spec
// disables the tunnel.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Spec parsers ─────────────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ParsePutSpec splits "LOCAL:/REMOTE".  The split happens at the last
// ":/" so local paths with drive letters survive.
func ParsePutSpec(spec string) (local, remote string, err error) {
	i := strings.LastIndex(spec, ":/")
	if i <= 0 {
		return "", "", fmt.Errorf("invalid put spec %q – expected LOCAL:/REMOTE", spec)
	}
	return spec[:i], spec[i+1:], nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return &ncerr.ConfigError{Field: "chunk-size", Value: c.ChunkSize, Message: "must be positive"}
	}
	if c.DeadReadThreshold < 1 {
		return &ncerr.ConfigError{Field: "dead-read-threshold", Value: c.DeadReadThreshold, Message: "must be positive"}
	}
	if c.Listen {
		return c.validateServer()
	}
	return c.validateClient()
}

func (c *Config) validateServer() error {
	if c.ListenAddr == "" {
		return &ncerr.ConfigError{
			Field:   "listen-addr",
			Message: "listen mode requires an address",
			Hint:    "use -a :2920 or set NNFP_LISTEN_ADDR",
		}
	}
	if c.UsersFile == "" && len(c.Users) == 0 {
		return &ncerr.ConfigError{
			Field:   "users",
			Message: "no credential records configured",
			Hint:    "pass --users FILE with username:password:/home lines, or add [[server.users]] to the config file",
		}
	}
	if c.Batch() {
		return &ncerr.ConfigError{Field: "listen", Message: "--ls, --get and --put are client operations"}
	}
	if c.TunnelEnabled {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "listen mode through an SSH tunnel is not supported",
		}
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "hostname is required",
			Hint:    "nnfp [options] <host> [port], or -l to run a server",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.Port, Message: "must be in 1-65535"}
	}

	ops := 0
	for _, set := range []bool{c.List != "", c.Get != "", c.Put != ""} {
		if set {
			ops++
		}
	}
	if ops > 1 {
		return &ncerr.ConfigError{Field: "ls", Message: "--ls, --get and --put are mutually exclusive"}
	}
	if c.List != "" && !strings.HasSuffix(c.List, "/") {
		return &ncerr.ConfigError{Field: "ls", Value: c.List, Message: "directory paths end with /"}
	}
	if c.Output != "" && c.Get == "" {
		return &ncerr.ConfigError{Field: "output", Value: c.Output, Message: "only valid with --get"}
	}
	if c.Put != "" {
		if _, _, err := ParsePutSpec(c.Put); err != nil {
			return &ncerr.ConfigError{Field: "put", Value: c.Put, Message: err.Error()}
		}
	}
	if c.Batch() && c.User == "" {
		return &ncerr.ConfigError{
			Field:   "user",
			Message: "batch operations need a username",
			Hint:    "use -U NAME or set NNFP_USER",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	return nil
}
