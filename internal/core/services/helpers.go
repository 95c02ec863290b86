package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vncsmyrnk/awards/internal/core/ports"
)

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// withConnection is ConnectionProvider.WithConnection for work that yields
// a value.
func withConnection[T any](ctx context.Context, provider ports.ConnectionProvider, fn func(ctx context.Context, conn ports.Conn) (T, error)) (T, error) {
	var result T
	err := provider.WithConnection(ctx, func(ctx context.Context, conn ports.Conn) error {
		var err error
		result, err = fn(ctx, conn)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex[K comparable]() *keyedMutex[K] {
	return &keyedMutex[K]{locks: make(map[K]*refMutex)}
}

func (k *keyedMutex[K]) Lock(key K) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
