package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

const defaultConnectTimeout = 5 * time.Second

var errSessionEnded = errors.New("database session already ended")

type DBConfig struct {
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectTimeout time.Duration

	// NewConnector builds the driver connector for a DSN. Defaults to
	// pq.NewConnector.
	NewConnector func(dsn string) (driver.Connector, error)
}

func (c DBConfig) dsn(addr string) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(math.Ceil(c.connectTimeout().Seconds()))))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     addr,
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c DBConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return c.ConnectTimeout
}

func (c DBConfig) connector(dsn string) (driver.Connector, error) {
	if c.NewConnector != nil {
		return c.NewConnector(dsn)
	}
	return pq.NewConnector(dsn)
}

// Connection is one database session bound to one tunnel. The session is
// never replaced: once it ends, the connection closes itself and the tunnel
// with it.
type Connection struct {
	db     *sql.DB
	tunnel ports.Tunnel
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// OpenConnection binds a database session to tunnel's local endpoint. It
// takes ownership of tunnel: on failure the tunnel is closed before
// returning.
func OpenConnection(ctx context.Context, tunnel ports.Tunnel, cfg DBConfig, logger *slog.Logger) (*Connection, error) {
	logger = resolveLogger(logger)

	base, err := cfg.connector(cfg.dsn(tunnel.LocalAddr()))
	if err != nil {
		tunnel.Close()
		return nil, &domain.ConnectError{Stage: domain.StageDatabase, Cause: domain.CauseConfig, Err: err}
	}

	c := &Connection{
		tunnel: tunnel,
		logger: logger,
		done:   make(chan struct{}),
	}
	c.db = sql.OpenDB(&sessionConnector{Connector: base, onEnd: c.sessionEnded})
	c.db.SetMaxOpenConns(1)
	c.db.SetMaxIdleConns(1)
	c.db.SetConnMaxLifetime(0)
	c.db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()
	if err := c.db.PingContext(pingCtx); err != nil {
		c.Close()
		return nil, &domain.ConnectError{Stage: domain.StageDatabase, Cause: databaseCause(pingCtx, err), Err: err}
	}

	go c.watchTunnel()
	logger.Debug("connection opened", "event", "connection_opened", "addr", tunnel.LocalAddr())
	return c, nil
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Connection) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Done is closed once Close has started.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close ends the database session, then the tunnel. Both are closed exactly
// once no matter how many times or from where Close is called.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		dbErr := c.db.Close()
		tunnelErr := c.tunnel.Close()
		c.closeErr = errors.Join(dbErr, tunnelErr)
		c.logger.Debug("connection closed", "event", "connection_closed", "addr", c.tunnel.LocalAddr())
	})
	return c.closeErr
}

func (c *Connection) watchTunnel() {
	select {
	case <-c.tunnel.Done():
		c.logger.Warn("tunnel ended under a live connection", "event", "connection_tunnel_lost")
		c.Close()
	case <-c.done:
	}
}

// sessionEnded runs when database/sql drops the driver connection. It may
// be called from inside database/sql, so the close happens asynchronously.
func (c *Connection) sessionEnded() {
	select {
	case <-c.done:
		return
	default:
	}
	c.logger.Warn("database session ended", "event", "connection_session_ended")
	go c.Close()
}

func databaseCause(ctx context.Context, err error) domain.ConnectCause {
	var pqErr *pq.Error
	var netErr net.Error
	switch {
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded):
		return domain.CauseTimeout
	case errors.As(err, &pqErr) && pqErr.Code.Class() == "28":
		return domain.CauseAuth
	case errors.As(err, &pqErr) && pqErr.Code.Class() == "3D":
		return domain.CauseConfig
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.CauseRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.CauseTimeout
	default:
		return domain.CauseNetwork
	}
}

// sessionConnector hands out a single driver connection. database/sql would
// otherwise redial transparently after the session dies.
type sessionConnector struct {
	driver.Connector
	onEnd func()

	mu   sync.Mutex
	used bool
}

func (c *sessionConnector) Connect(ctx context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used {
		return nil, errSessionEnded
	}
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c.used = true
	return &sessionConn{Conn: conn, onClose: c.onEnd}, nil
}

// sessionConn forwards the optional driver interfaces of the wrapped
// connection and reports when it is closed.
type sessionConn struct {
	driver.Conn
	onClose   func()
	closeOnce sync.Once
}

func (c *sessionConn) Close() error {
	err := c.Conn.Close()
	c.closeOnce.Do(c.onClose)
	return err
}

func (c *sessionConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if q, ok := c.Conn.(driver.QueryerContext); ok {
		return q.QueryContext(ctx, query, args)
	}
	return nil, driver.ErrSkip
}

func (c *sessionConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if e, ok := c.Conn.(driver.ExecerContext); ok {
		return e.ExecContext(ctx, query, args)
	}
	return nil, driver.ErrSkip
}

func (c *sessionConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		return p.PrepareContext(ctx, query)
	}
	return c.Conn.Prepare(query)
}

func (c *sessionConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	return c.Conn.Begin() //nolint:staticcheck
}

func (c *sessionConn) Ping(ctx context.Context) error {
	if p, ok := c.Conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *sessionConn) ResetSession(ctx context.Context) error {
	if r, ok := c.Conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *sessionConn) IsValid() bool {
	if v, ok := c.Conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *sessionConn) CheckNamedValue(nv *driver.NamedValue) error {
	if ch, ok := c.Conn.(driver.NamedValueChecker); ok {
		return ch.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}
