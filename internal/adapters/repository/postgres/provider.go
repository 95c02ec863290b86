package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

// Provider opens a fresh tunnel and database session for every unit of
// work. Nothing is pooled between calls.
type Provider struct {
	tunnels ports.TunnelOpener
	db      DBConfig
	logger  *slog.Logger
}

func NewProvider(tunnels ports.TunnelOpener, db DBConfig, logger *slog.Logger) *Provider {
	return &Provider{
		tunnels: tunnels,
		db:      db,
		logger:  resolveLogger(logger),
	}
}

// WithConnection runs fn on a new connection. The connection and its tunnel
// are released when fn returns, fails or panics. Acquisition failures are
// returned as *domain.ConnectError before fn runs.
func (p *Provider) WithConnection(ctx context.Context, fn func(ctx context.Context, conn ports.Conn) error) error {
	tunnel, err := p.tunnels.Open(ctx)
	if err != nil {
		var connErr *domain.ConnectError
		if !errors.As(err, &connErr) {
			err = &domain.ConnectError{Stage: domain.StageTunnel, Cause: domain.CauseNetwork, Err: err}
		}
		p.logger.Error("tunnel open failed", "event", "tunnel_open_failed", "error", err)
		return err
	}

	conn, err := OpenConnection(ctx, tunnel, p.db, p.logger)
	if err != nil {
		p.logger.Error("database connect failed", "event", "connection_open_failed", "error", err)
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			p.logger.Warn("connection release failed", "event", "connection_release_failed", "error", cerr)
		}
	}()

	return fn(ctx, conn)
}
