package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the NNFP server port.
	DefaultPort = 2920

	// DefaultListenAddr binds every interface on DefaultPort.
	DefaultListenAddr = ":2920"

	// DefaultChunkSize is the download chunk size (512 KiB).
	DefaultChunkSize = 512 * 1024

	// DefaultDeadReadThreshold is the number of consecutive fast
	// zero-byte reads after which a socket is considered dead.
	DefaultDeadReadThreshold = 100

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultDialRetries is how many extra dial attempts a client makes.
	DefaultDialRetries = 3

	// DefaultGracePeriod is how long the server waits for sessions to
	// finish after shutdown is requested.
	DefaultGracePeriod = 5 * time.Second

	// DefaultEnvFile is read when present and --env-file is not given.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes every supported environment variable.
	EnvPrefix = "NNFP_"
)

// Default returns a Config populated with every default.
func Default() *Config {
	return &Config{
		ListenAddr:        DefaultListenAddr,
		ChunkSize:         DefaultChunkSize,
		DeadReadThreshold: DefaultDeadReadThreshold,
		Port:              DefaultPort,
		Timeout:           DefaultConnTimeout,
		Retries:           DefaultDialRetries,
		LocalDir:          ".",
		Verbose:           1,
	}
}
