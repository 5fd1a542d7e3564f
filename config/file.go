package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"nnfp/internal/auth"
	ncerr "nnfp/internal/errors"
)

// fileConfig mirrors the TOML layout:
//
//	verbose = 1
//
//	[server]
//	listen = ":2920"
//	users_file = "/etc/nnfp/users"
//	max_frame_bytes = 0
//	chunk_size = 524288
//	dead_read_threshold = 100
//	metrics_addr = "127.0.0.1:9290"
//
//	[[server.users]]
//	username = "user"
//	password = "password"
//	home = "/srv/nnfp/user"
//
//	[client]
//	host = "files.example.com"
//	port = 2920
//	user = "user"
//	timeout = 30
//	retries = 3
//	local_dir = "."
//
//	[client.tunnel]
//	spec = "admin@bastion:22"
//	key = "~/.ssh/id_ed25519"
//	agent = false
//	password = false
//	strict_host_key = true
//	known_hosts = ""
type fileConfig struct {
	Verbose int `toml:"verbose"`

	Server struct {
		Listen            string        `toml:"listen"`
		UsersFile         string        `toml:"users_file"`
		MaxFrameBytes     uint32        `toml:"max_frame_bytes"`
		ChunkSize         int           `toml:"chunk_size"`
		DeadReadThreshold int           `toml:"dead_read_threshold"`
		MetricsAddr       string        `toml:"metrics_addr"`
		Users             []auth.Record `toml:"users"`
	} `toml:"server"`

	Client struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		User     string `toml:"user"`
		Timeout  int    `toml:"timeout"`
		Retries  int    `toml:"retries"`
		LocalDir string `toml:"local_dir"`

		Tunnel struct {
			Spec          string `toml:"spec"`
			Key           string `toml:"key"`
			Agent         bool   `toml:"agent"`
			Password      bool   `toml:"password"`
			StrictHostKey bool   `toml:"strict_host_key"`
			KnownHosts    string `toml:"known_hosts"`
		} `toml:"tunnel"`
	} `toml:"client"`
}

// LoadFile overlays the TOML file at path onto cfg.  Only keys present
// in the file are applied; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return &ncerr.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return &ncerr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: fmt.Sprintf("unknown keys: %s", strings.Join(keys, ", ")),
		}
	}

	set := func(keys ...string) bool { return md.IsDefined(keys...) }

	if set("verbose") {
		cfg.Verbose = fc.Verbose
	}

	s := fc.Server
	if set("server", "listen") {
		cfg.ListenAddr = s.Listen
	}
	if set("server", "users_file") {
		cfg.UsersFile = s.UsersFile
	}
	if set("server", "max_frame_bytes") {
		cfg.MaxFrameBytes = s.MaxFrameBytes
	}
	if set("server", "chunk_size") {
		cfg.ChunkSize = s.ChunkSize
	}
	if set("server", "dead_read_threshold") {
		cfg.DeadReadThreshold = s.DeadReadThreshold
	}
	if set("server", "metrics_addr") {
		cfg.MetricsAddr = s.MetricsAddr
	}
	cfg.Users = append(cfg.Users, s.Users...)

	c := fc.Client
	if set("client", "host") {
		cfg.Host = c.Host
	}
	if set("client", "port") {
		cfg.Port = c.Port
	}
	if set("client", "user") {
		cfg.User = c.User
	}
	if set("client", "timeout") {
		cfg.Timeout = secondsDuration(c.Timeout)
	}
	if set("client", "retries") {
		cfg.Retries = c.Retries
	}
	if set("client", "local_dir") {
		cfg.LocalDir = c.LocalDir
	}

	t := c.Tunnel
	if set("client", "tunnel", "spec") {
		cfg.TunnelSpec = t.Spec
	}
	if set("client", "tunnel", "key") {
		cfg.SSHKeyPath = t.Key
	}
	if set("client", "tunnel", "agent") {
		cfg.UseSSHAgent = t.Agent
	}
	if set("client", "tunnel", "password") {
		cfg.SSHPassword = t.Password
	}
	if set("client", "tunnel", "strict_host_key") {
		cfg.StrictHostKey = t.StrictHostKey
	}
	if set("client", "tunnel", "known_hosts") {
		cfg.KnownHostsPath = t.KnownHosts
	}
	return nil
}

// LoadUsers returns every credential record: inline users first, then
// the records of UsersFile.
func (c *Config) LoadUsers() ([]auth.Record, error) {
	recs := append([]auth.Record(nil), c.Users...)
	if c.UsersFile != "" {
		fromFile, err := auth.LoadFile(c.UsersFile)
		if err != nil {
			return nil, &ncerr.ConfigError{Field: "users", Value: c.UsersFile, Message: err.Error()}
		}
		recs = append(recs, fromFile...)
	}
	return recs, nil
}
