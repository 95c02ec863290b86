package ports

import (
	"context"
	"database/sql"
)

// Conn is one managed database session. All methods are safe for concurrent
// use; statements issued concurrently are queued on the single session.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tunnel is an open forwarding channel exposing the remote database on a
// local endpoint.
type Tunnel interface {
	// LocalAddr is the host:port database clients should dial.
	LocalAddr() string
	// Done is closed once the tunnel has shut down for any reason.
	Done() <-chan struct{}
	// Close is idempotent.
	Close() error
}

type TunnelOpener interface {
	Open(ctx context.Context) (Tunnel, error)
}

// ConnectionProvider scopes one managed connection to fn and releases it on
// every exit path of fn, panics included.
type ConnectionProvider interface {
	WithConnection(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error
}
