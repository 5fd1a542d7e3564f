package config

import (
	"testing"

	"nnfp/internal/auth"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

// ── ParsePutSpec ─────────────────────────────────────────────────────

func TestParsePutSpec(t *testing.T) {
	tests := []struct {
		input      string
		wantLocal  string
		wantRemote string
		wantErr    bool
	}{
		{"report.pdf:/docs/report.pdf", "report.pdf", "/docs/report.pdf", false},
		{`C:\tmp\a.txt:/a.txt`, `C:\tmp\a.txt`, "/a.txt", false},
		{"a:b:/c", "a:b", "/c", false},
		{"report.pdf", "", "", true},
		{":/remote", "", "", true},
		{"local:remote", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			local, remote, err := ParsePutSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if local != tt.wantLocal || remote != tt.wantRemote {
				t.Errorf("got (%q, %q), want (%q, %q)", local, remote, tt.wantLocal, tt.wantRemote)
			}
		})
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func validServer() *Config {
	cfg := Default()
	cfg.Listen = true
	cfg.Users = []auth.Record{{Username: "u", Password: "p", Home: "/srv/u"}}
	return cfg
}

func validClient() *Config {
	cfg := Default()
	cfg.Host = "files.example.com"
	cfg.User = "u"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		server  bool
		wantErr bool
	}{
		{"valid server", func(*Config) {}, true, false},
		{"server with users file", func(c *Config) { c.Users = nil; c.UsersFile = "/etc/nnfp/users" }, true, false},
		{"server without users", func(c *Config) { c.Users = nil }, true, true},
		{"server without address", func(c *Config) { c.ListenAddr = "" }, true, true},
		{"server with batch op", func(c *Config) { c.Get = "/x" }, true, true},
		{"server through tunnel", func(c *Config) { c.TunnelEnabled = true }, true, true},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, true, true},
		{"zero dead-read threshold", func(c *Config) { c.DeadReadThreshold = 0 }, true, true},

		{"valid client", func(*Config) {}, false, false},
		{"client without host", func(c *Config) { c.Host = "" }, false, true},
		{"client bad port", func(c *Config) { c.Port = 70000 }, false, true},
		{"valid ls", func(c *Config) { c.List = "/docs/" }, false, false},
		{"ls without slash", func(c *Config) { c.List = "/docs" }, false, true},
		{"two ops", func(c *Config) { c.List = "/"; c.Get = "/a" }, false, true},
		{"output without get", func(c *Config) { c.Output = "x" }, false, true},
		{"valid get", func(c *Config) { c.Get = "/a"; c.Output = "-" }, false, false},
		{"bad put", func(c *Config) { c.Put = "nocolon" }, false, true},
		{"batch without user", func(c *Config) { c.Get = "/a"; c.User = "" }, false, true},
		{"interactive without user", func(c *Config) { c.User = "" }, false, false},
		{"tunnel without host", func(c *Config) { c.TunnelEnabled = true }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validClient()
			if tt.server {
				cfg = validServer()
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyTunnelSpec(t *testing.T) {
	cfg := Default()
	cfg.TunnelSpec = "ops@jump:2200"
	if err := cfg.ApplyTunnelSpec(); err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "ops" || cfg.TunnelHost != "jump" || cfg.TunnelPort != 2200 {
		t.Errorf("tunnel = %+v", cfg)
	}

	cfg.TunnelSpec = "bad:port:spec"
	if err := cfg.ApplyTunnelSpec(); err == nil {
		t.Error("expected error")
	}

	cfg.TunnelSpec = ""
	if err := cfg.ApplyTunnelSpec(); err != nil || cfg.TunnelEnabled {
		t.Errorf("empty spec: enabled=%v err=%v", cfg.TunnelEnabled, err)
	}
}

func TestBatch(t *testing.T) {
	cfg := Default()
	if cfg.Batch() {
		t.Error("default config should be interactive")
	}
	cfg.Put = "a:/a"
	if !cfg.Batch() {
		t.Error("--put should be batch")
	}
}
