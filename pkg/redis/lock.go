package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Second

// ErrLockHeld is returned by Locker.Lock when another owner holds the key.
var ErrLockHeld = errors.New("lock held by another owner")

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// Lock is a single SETNX-backed lease. Release is a no-op unless this Lock
// still owns the key.
type Lock struct {
	client lockStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewLock constructs a Redis-backed lock.
func NewLock(client lockStore, key string, ttl time.Duration) (*Lock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Lock{client: client, key: key, ttl: ttl}, nil
}

// Key returns the redis key guarded by the lock.
func (l *Lock) Key() string {
	return l.key
}

// Acquire tries to own the lock for the configured TTL.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this Lock still owns the key.
func (l *Lock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.client.CompareAndDelete(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Locker hands out scoped locks keyed by an identifier, e.g. one lock per
// affiliate for payouts.
type Locker struct {
	client *Client
	scope  string
	ttl    time.Duration
}

// NewLocker builds a Locker whose keys live under cf:lock:<scope>:<id>.
func NewLocker(client *Client, scope string, ttl time.Duration) (*Locker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	return &Locker{client: client, scope: scope, ttl: ttl}, nil
}

// Lock acquires the lock for id and returns its release function. It returns
// an error wrapping ErrLockHeld, naming the key, when the lock is already owned.
func (l *Locker) Lock(ctx context.Context, id string) (func(context.Context) error, error) {
	lock, err := NewLock(l.client, l.client.LockKey(l.scope, id), l.ttl)
	if err != nil {
		return nil, err
	}
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, lock.Key())
	}
	return lock.Release, nil
}
