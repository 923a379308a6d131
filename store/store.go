// Package store is the persistence client. Every operation acquires its own
// pooled connection; nothing holds a connection or lock across calls.
package store

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNil is returned by Get and HashGet when the key or field is absent.
var ErrNil = errors.New("store: nil")

// ErrWrongType is returned when key holds a value of another type.
var ErrWrongType = errors.New("store: wrong type")

// Store typed key-value operations against the remote store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Scan yields every key starting with prefix, in no particular order.
	// Each range over the sequence starts a fresh scan.
	Scan(ctx context.Context, prefix string) iter.Seq2[string, error]

	// ListPush appends values to the list at key in a single command.
	ListPush(ctx context.Context, key string, values ...string) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	HashGet(ctx context.Context, key, field string) (string, error)
	HashSet(ctx context.Context, key, field, value string) error
	HashDelete(ctx context.Context, key, field string) error

	// Incr increments the counter at key and starts its ttl on first use.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
