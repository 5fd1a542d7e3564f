package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Server(t *testing.T) {
	t.Setenv("NNFP_LISTEN", "yes")
	t.Setenv("NNFP_LISTEN_ADDR", "127.0.0.1:3000")
	t.Setenv("NNFP_USERS_FILE", "/etc/nnfp/users")
	t.Setenv("NNFP_MAX_FRAME_BYTES", "1048576")
	t.Setenv("NNFP_CHUNK_SIZE", "4096")
	t.Setenv("NNFP_DEAD_READ_THRESHOLD", "7")
	t.Setenv("NNFP_METRICS_ADDR", ":9290")

	cfg := Default()
	LoadFromEnv(cfg)

	if !cfg.Listen {
		t.Error("Listen should be true")
	}
	if cfg.ListenAddr != "127.0.0.1:3000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.UsersFile != "/etc/nnfp/users" {
		t.Errorf("UsersFile = %q", cfg.UsersFile)
	}
	if cfg.MaxFrameBytes != 1048576 || cfg.ChunkSize != 4096 || cfg.DeadReadThreshold != 7 {
		t.Errorf("limits = %d/%d/%d", cfg.MaxFrameBytes, cfg.ChunkSize, cfg.DeadReadThreshold)
	}
	if cfg.MetricsAddr != ":9290" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoadFromEnv_Client(t *testing.T) {
	t.Setenv("NNFP_HOST", "files.example.com")
	t.Setenv("NNFP_PORT", "3920")
	t.Setenv("NNFP_USER", "alice")
	t.Setenv("NNFP_PASSWORD", "s3cret")
	t.Setenv("NNFP_TIMEOUT", "5")
	t.Setenv("NNFP_RETRIES", "0")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Host != "files.example.com" || cfg.Port != 3920 {
		t.Errorf("target = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.User != "alice" || cfg.Password != "s3cret" {
		t.Errorf("credentials = %q/%q", cfg.User, cfg.Password)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Retries != 0 {
		t.Errorf("Retries = %d, explicit 0 should win", cfg.Retries)
	}
}

func TestLoadFromEnv_SSHFields(t *testing.T) {
	t.Setenv("NNFP_TUNNEL", "admin@bastion:2222")
	t.Setenv("NNFP_SSH_KEY", "/home/user/.ssh/id_ed25519")
	t.Setenv("NNFP_SSH_PASSWORD", "true")
	t.Setenv("NNFP_SSH_AGENT", "1")
	t.Setenv("NNFP_STRICT_HOSTKEY", "YES")
	t.Setenv("NNFP_KNOWN_HOSTS", "/tmp/known_hosts")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.TunnelSpec != "admin@bastion:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/home/user/.ssh/id_ed25519" {
		t.Errorf("SSHKeyPath = %q", cfg.SSHKeyPath)
	}
	if !cfg.SSHPassword || !cfg.UseSSHAgent || !cfg.StrictHostKey {
		t.Errorf("ssh flags = %v/%v/%v", cfg.SSHPassword, cfg.UseSSHAgent, cfg.StrictHostKey)
	}
	if cfg.KnownHostsPath != "/tmp/known_hosts" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	cfg := Default()
	cfg.Host = "original"
	LoadFromEnv(cfg)
	if cfg.Host != "original" || cfg.Port != DefaultPort {
		t.Errorf("unset env changed config: %s:%d", cfg.Host, cfg.Port)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("NNFP_PORT", "not-a-number")
	t.Setenv("NNFP_RETRIES", "-2")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.Port != DefaultPort || cfg.Retries != DefaultDialRetries {
		t.Errorf("invalid ints applied: port=%d retries=%d", cfg.Port, cfg.Retries)
	}
}

func TestLoadFromEnv_Verbose(t *testing.T) {
	t.Setenv("NNFP_VERBOSE", "3")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d, want 3", cfg.Verbose)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nnfp.env")
	content := "NNFP_HOST=from-file\nNNFP_USER=file-user\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	// The real environment beats the file.
	t.Setenv("NNFP_USER", "from-env")
	t.Setenv("NNFP_HOST", "")
	os.Unsetenv("NNFP_HOST")

	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.Host != "from-file" {
		t.Errorf("Host = %q, want value from file", cfg.Host)
	}
	if cfg.User != "from-env" {
		t.Errorf("User = %q, environment should win", cfg.User)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Error("explicit missing file should fail")
	}

	// With no path, a missing default file is fine.
	wd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(wd) }) //nolint:errcheck
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("LoadEnvFile(\"\") = %v", err)
	}
}
