package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vncsmyrnk/awards/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/awards/internal/adapters/tunnel/sshtunnel"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

// TunnelOpener returns the SSH tunnel opener, or a passthrough to the
// database address when no SSH host is configured.
func (c *Config) TunnelOpener(logger *slog.Logger) (ports.TunnelOpener, error) {
	if !c.SSH.Enabled() {
		return sshtunnel.Passthrough{Addr: fmt.Sprintf("%s:%d", c.Postgres.Host, c.Postgres.Port)}, nil
	}

	var key []byte
	if c.SSH.KeyPath != "" {
		b, err := os.ReadFile(c.SSH.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		key = b
	}

	return sshtunnel.Opener{
		Config: sshtunnel.Config{
			Host:                  c.SSH.Host,
			Port:                  c.SSH.Port,
			User:                  c.SSH.User,
			Password:              c.SSH.Password,
			PrivateKey:            key,
			KnownHostsPath:        c.SSH.KnownHostsPath,
			InsecureIgnoreHostKey: c.SSH.InsecureIgnoreHostKey,
			RemoteHost:            c.Postgres.Host,
			RemotePort:            c.Postgres.Port,
			Timeout:               c.SSH.Timeout,
		},
		Logger: logger,
	}, nil
}

func (c *Config) DBConfig() postgres.DBConfig {
	return postgres.DBConfig{
		User:           c.Postgres.User,
		Password:       c.Postgres.Password,
		Name:           c.Postgres.Name,
		SSLMode:        c.Postgres.SSLMode,
		ConnectTimeout: c.Postgres.ConnectTimeout,
	}
}

// ConnectionProvider builds the per-request tunnel and database provider.
func (c *Config) ConnectionProvider(logger *slog.Logger) (*postgres.Provider, error) {
	tunnels, err := c.TunnelOpener(logger)
	if err != nil {
		return nil, err
	}
	return postgres.NewProvider(tunnels, c.DBConfig(), logger), nil
}
