package config

// loader.go - configuration loading from the environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables, optionally seeded from a .env file  (this file)
//   3. TOML config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFile seeds the process environment from a dotenv file.
// Variables already set in the environment win over the file.  With
// path empty, DefaultEnvFile is read if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = DefaultEnvFile
	}
	return godotenv.Load(path)
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NNFP_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	// Server
	if envBool("NNFP_LISTEN") {
		cfg.Listen = true
	}
	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := env("USERS_FILE"); v != "" {
		cfg.UsersFile = v
	}
	if v := envInt("NNFP_MAX_FRAME_BYTES"); v > 0 {
		cfg.MaxFrameBytes = uint32(v)
	}
	if v := envInt("NNFP_CHUNK_SIZE"); v > 0 {
		cfg.ChunkSize = v
	}
	if v := envInt("NNFP_DEAD_READ_THRESHOLD"); v > 0 {
		cfg.DeadReadThreshold = v
	}
	if v := env("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// Client
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("NNFP_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := env("USER"); v != "" {
		cfg.User = v
	}
	if v := env("PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := envInt("NNFP_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v, ok := envIntSet("NNFP_RETRIES"); ok {
		cfg.Retries = v
	}
	if v := env("LOCAL_DIR"); v != "" {
		cfg.LocalDir = v
	}

	// SSH tunnel
	if v := env("TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("NNFP_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("NNFP_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("NNFP_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v, ok := envIntSet("NNFP_VERBOSE"); ok {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func envInt(key string) int {
	n, _ := envIntSet(key)
	return n
}

// envIntSet distinguishes an explicit 0 from an unset variable.
func envIntSet(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
