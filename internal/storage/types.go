package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "redis":  Redis server (Addr is host:port)
//   - "memory": in-process map, lost on restart (tests/dev)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string        // sqlite file path
	Addr        string        // redis address
	Password    string        // redis only
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the minimal persistence API used by the world core.
//
// Reset schedules persist their next-occurrence as a unix timestamp under a
// stable string key; high-water counters use the same shape. Writes are
// last-writer-wins and idempotent.
type Store interface {
	GetInt64(ctx context.Context, key string) (v int64, ok bool, err error)
	SetInt64(ctx context.Context, key string, v int64) error
	Close() error
}
