package postgres

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

func TestProviderReleasesExactlyOnce(t *testing.T) {
	errWork := errors.New("work failed")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, conn ports.Conn) error
		wantErr error
		panics  bool
	}{
		{
			name: "success",
			fn:   func(ctx context.Context, conn ports.Conn) error { return nil },
		},
		{
			name:    "error",
			fn:      func(ctx context.Context, conn ports.Conn) error { return errWork },
			wantErr: errWork,
		},
		{
			name: "error after partial work",
			fn: func(ctx context.Context, conn ports.Conn) error {
				if err := conn.(*Connection).PingContext(ctx); err != nil {
					return err
				}
				return errWork
			},
			wantErr: errWork,
		},
		{
			name:   "panic",
			fn:     func(ctx context.Context, conn ports.Conn) error { panic("boom") },
			panics: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tunnel := newFakeTunnel()
			db := &fakeDB{}
			provider := NewProvider(&fakeTunnelOpener{tunnel: tunnel}, db.config(), nil)

			run := func() error { return provider.WithConnection(context.Background(), tt.fn) }
			if tt.panics {
				assert.PanicsWithValue(t, "boom", func() { _ = run() })
			} else {
				err := run()
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			}

			assert.Equal(t, int32(1), db.connects.Load())
			assert.Equal(t, int32(1), db.closes.Load())
			assert.Equal(t, int32(1), tunnel.closes.Load())
		})
	}
}

func TestProviderReleasesOnCancel(t *testing.T) {
	tunnel := newFakeTunnel()
	db := &fakeDB{}
	provider := NewProvider(&fakeTunnelOpener{tunnel: tunnel}, db.config(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	err := provider.WithConnection(ctx, func(ctx context.Context, conn ports.Conn) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), db.closes.Load())
	assert.Equal(t, int32(1), tunnel.closes.Load())
}

func TestProviderTunnelFailure(t *testing.T) {
	tunnelErr := &domain.ConnectError{Stage: domain.StageTunnel, Cause: domain.CauseAuth, Err: errors.New("denied")}
	db := &fakeDB{}
	provider := NewProvider(&fakeTunnelOpener{err: tunnelErr}, db.config(), nil)

	called := false
	err := provider.WithConnection(context.Background(), func(ctx context.Context, conn ports.Conn) error {
		called = true
		return nil
	})

	var connErr *domain.ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, domain.StageTunnel, connErr.Stage)
	assert.Equal(t, domain.CauseAuth, connErr.Cause)
	assert.False(t, called)
	assert.Zero(t, db.connects.Load())
}

func TestProviderWrapsPlainTunnelErrors(t *testing.T) {
	provider := NewProvider(&fakeTunnelOpener{err: errors.New("no route")}, (&fakeDB{}).config(), nil)

	err := provider.WithConnection(context.Background(), func(ctx context.Context, conn ports.Conn) error {
		return nil
	})

	var connErr *domain.ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, domain.StageTunnel, connErr.Stage)
	assert.Equal(t, domain.CauseNetwork, connErr.Cause)
}

func TestProviderDatabaseFailureClosesTunnel(t *testing.T) {
	tests := []struct {
		name      string
		db        *fakeDB
		wantCause domain.ConnectCause
		wantOpen  int32
	}{
		{
			name:      "authentication rejected",
			db:        &fakeDB{connectErr: &pq.Error{Code: "28P01", Message: "password authentication failed"}},
			wantCause: domain.CauseAuth,
		},
		{
			name:      "unknown database",
			db:        &fakeDB{connectErr: &pq.Error{Code: "3D000", Message: "database does not exist"}},
			wantCause: domain.CauseConfig,
		},
		{
			name:      "ping fails on open session",
			db:        &fakeDB{pingErr: errors.New("connection reset")},
			wantCause: domain.CauseNetwork,
			wantOpen:  1,
		},
		{
			name:      "connect hangs",
			db:        &fakeDB{block: true},
			wantCause: domain.CauseTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tunnel := newFakeTunnel()
			cfg := tt.db.config()
			cfg.ConnectTimeout = 50 * time.Millisecond
			provider := NewProvider(&fakeTunnelOpener{tunnel: tunnel}, cfg, nil)

			called := false
			err := provider.WithConnection(context.Background(), func(ctx context.Context, conn ports.Conn) error {
				called = true
				return nil
			})

			var connErr *domain.ConnectError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, domain.StageDatabase, connErr.Stage)
			assert.Equal(t, tt.wantCause, connErr.Cause)
			assert.False(t, called)
			assert.Equal(t, int32(1), tunnel.closes.Load())
			assert.Equal(t, tt.wantOpen, tt.db.connects.Load())
			assert.Equal(t, tt.wantOpen, tt.db.closes.Load())
		})
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	tunnel := newFakeTunnel()
	db := &fakeDB{}

	conn, err := OpenConnection(context.Background(), tunnel, db.config(), nil)
	require.NoError(t, err)

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	assert.Equal(t, int32(1), db.closes.Load())
	assert.Equal(t, int32(1), tunnel.closes.Load())
	assert.Error(t, conn.PingContext(context.Background()))
}

func TestConnectionClosesWhenTunnelDrops(t *testing.T) {
	tunnel := newFakeTunnel()
	db := &fakeDB{}

	conn, err := OpenConnection(context.Background(), tunnel, db.config(), nil)
	require.NoError(t, err)

	tunnel.drop()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close after its tunnel ended")
	}
	assert.Eventually(t, func() bool {
		return db.closes.Load() == 1 && tunnel.closes.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionClosesWhenSessionEnds(t *testing.T) {
	tunnel := newFakeTunnel()
	db := &fakeDB{}

	conn, err := OpenConnection(context.Background(), tunnel, db.config(), nil)
	require.NoError(t, err)

	db.bad.Store(true)
	assert.Error(t, conn.PingContext(context.Background()))

	assert.Eventually(t, func() bool {
		return tunnel.closes.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), db.connects.Load(), "a dead session must not be replaced")
	assert.Equal(t, int32(1), db.closes.Load())

	// The provider's deferred close after this is a no-op.
	assert.NoError(t, conn.Close())
	assert.Equal(t, int32(1), tunnel.closes.Load())
}

func TestDBConfigDSN(t *testing.T) {
	cfg := DBConfig{User: "voter", Password: "p@ss word", Name: "awards", ConnectTimeout: 1500 * time.Millisecond}

	u, err := url.Parse(cfg.dsn("127.0.0.1:6000"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "127.0.0.1:6000", u.Host)
	assert.Equal(t, "/awards", u.Path)
	assert.Equal(t, "voter", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "2", u.Query().Get("connect_timeout"))
}
