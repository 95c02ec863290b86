package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type fakeTunnel struct {
	closes   atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
}

func newFakeTunnel() *fakeTunnel {
	return &fakeTunnel{done: make(chan struct{})}
}

func (t *fakeTunnel) LocalAddr() string { return "127.0.0.1:15432" }

func (t *fakeTunnel) Done() <-chan struct{} { return t.done }

func (t *fakeTunnel) Close() error {
	t.closes.Add(1)
	t.drop()
	return nil
}

// drop ends the tunnel the way a dead SSH session would, without Close.
func (t *fakeTunnel) drop() {
	t.doneOnce.Do(func() { close(t.done) })
}

type fakeTunnelOpener struct {
	tunnel *fakeTunnel
	err    error
	opens  atomic.Int32
}

func (o *fakeTunnelOpener) Open(ctx context.Context) (ports.Tunnel, error) {
	o.opens.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	return o.tunnel, nil
}

// fakeDB counts driver sessions opened and closed through its connectors.
type fakeDB struct {
	connects atomic.Int32
	closes   atomic.Int32
	bad      atomic.Bool

	connectErr error
	pingErr    error
	block      bool

	mu  sync.Mutex
	dsn string
}

func (d *fakeDB) newConnector(dsn string) (driver.Connector, error) {
	d.mu.Lock()
	d.dsn = dsn
	d.mu.Unlock()
	return &fakeConnector{db: d}, nil
}

func (d *fakeDB) config() DBConfig {
	return DBConfig{User: "awards", Password: "secret", Name: "awards", NewConnector: d.newConnector}
}

type fakeConnector struct {
	db *fakeDB
}

func (c *fakeConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.db.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.db.connectErr != nil {
		return nil, c.db.connectErr
	}
	c.db.connects.Add(1)
	return &fakeConn{db: c.db}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fake driver only opens through its connector")
}

type fakeConn struct {
	db *fakeDB
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error {
	c.db.closes.Add(1)
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *fakeConn) Ping(ctx context.Context) error {
	if c.db.bad.Load() {
		return driver.ErrBadConn
	}
	return c.db.pingErr
}
