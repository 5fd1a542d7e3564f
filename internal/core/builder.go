package core

import (
	"fmt"

	"nnfp/config"
	"nnfp/internal/auth"
	"nnfp/internal/metrics"
	"nnfp/internal/retry"
	"nnfp/internal/session"
	"nnfp/internal/transport"
	"nnfp/tunnel"
	"nnfp/util"
)

// Build constructs the Mode selected by cfg.  cfg must already be
// validated.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Listen {
		return buildListen(cfg, logger)
	}
	return buildConnect(cfg, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, logger *util.Logger) (Mode, error) {
	records, err := cfg.LoadUsers()
	if err != nil {
		return nil, err
	}
	store, err := auth.NewStore(records)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	logger.Verbose("loaded %d user(s)", store.Len())

	return &ListenMode{
		Address: cfg.ListenAddr,
		Gateway: store,
		Session: session.Options{
			ChunkSize:         cfg.ChunkSize,
			MaxFrameBytes:     cfg.MaxFrameBytes,
			DeadReadThreshold: cfg.DeadReadThreshold,
		},
		Metrics:     metrics.New(),
		MetricsAddr: cfg.MetricsAddr,
		GracePeriod: config.DefaultGracePeriod,
		Logger:      logger,
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger) (Mode, error) {
	action, err := buildAction(cfg)
	if err != nil {
		return nil, err
	}

	return &ConnectMode{
		Dialer:    buildDialer(cfg, logger),
		Address:   util.FormatAddr(cfg.Host, cfg.Port),
		Backoff:   retry.ForDial(cfg.Retries),
		User:      cfg.User,
		Password:  cfg.Password,
		ChunkSize: cfg.ChunkSize,
		Action:    action,
		Logger:    logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildAction maps the batch flags to an Action; none selects the
// console.
func buildAction(cfg *config.Config) (Action, error) {
	switch {
	case cfg.List != "":
		return ListAction{Dir: cfg.List}, nil
	case cfg.Get != "":
		return GetAction{Remote: cfg.Get, Output: cfg.Output}, nil
	case cfg.Put != "":
		local, remote, err := config.ParsePutSpec(cfg.Put)
		if err != nil {
			return nil, err
		}
		return PutAction{Local: local, Remote: remote}, nil
	default:
		return ConsoleAction{LocalDir: cfg.LocalDir}, nil
	}
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger)
	}

	return &transport.TCPDialer{Timeout: cfg.Timeout}
}
