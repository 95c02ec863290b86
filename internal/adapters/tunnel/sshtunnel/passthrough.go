package sshtunnel

import (
	"context"
	"sync"

	"github.com/vncsmyrnk/awards/internal/core/ports"
)

// Passthrough hands out tunnels that point straight at Addr. It is used when
// no SSH host is configured.
type Passthrough struct {
	Addr string
}

func (p Passthrough) Open(ctx context.Context) (ports.Tunnel, error) {
	if err := ctx.Err(); err != nil {
		return nil, tunnelError(err)
	}
	return &direct{addr: p.Addr, done: make(chan struct{})}, nil
}

type direct struct {
	addr string
	done chan struct{}
	once sync.Once
}

func (d *direct) LocalAddr() string     { return d.addr }
func (d *direct) Done() <-chan struct{} { return d.done }

func (d *direct) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}
