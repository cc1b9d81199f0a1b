// Package distlock guards ticks against overlapping runs across processes.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
)

// ErrLockHeld is returned by Run when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another process")

// DistLock is the interface for distributed locking.
// A lock instance guards one key and is not safe for concurrent use.
type DistLock interface {
	// Acquire tries to acquire the lock without blocking. Returns true if
	// successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Factory builds a fresh lock per key. Redis is preferred when configured,
// otherwise PostgreSQL advisory locks are used.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

// NewFactory creates a lock factory. Either backend may be nil, but not both.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	return &Factory{redis: redisClient, db: db, ttl: ttl}
}

// NewLock returns a lock for key on the best available backend.
func (f *Factory) NewLock(key string) DistLock {
	if f.redis != nil {
		return NewRedisLock(f.redis, key, f.ttl)
	}
	return NewPGAdvisoryLock(f.db, key)
}

// DefaultTTL is the lock lifetime for Redis locks. Run keeps it alive with
// a heartbeat, so it only bounds how long a crashed holder blocks others.
const DefaultTTL = time.Minute

// extender is implemented by locks whose lease must be renewed while held.
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// Run acquires a lock for key, runs fn and releases the lock. It returns
// ErrLockHeld without running fn when the lock is taken. Leased locks are
// extended every third of the TTL until fn returns.
func (f *Factory) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock := f.NewLock(key)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return ErrLockHeld
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	if ext, ok := lock.(extender); ok && f.ttl > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.heartbeat(ctx, key, ext, stop)
		}()
	}

	defer func() {
		close(stop)
		wg.Wait()
		// Release on a fresh context so a canceled tick still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			logger.Warn("lock release failed", "key", key, "error", err)
		}
	}()
	return fn(ctx)
}

func (f *Factory) heartbeat(ctx context.Context, key string, ext extender, stop <-chan struct{}) {
	ticker := time.NewTicker(f.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ext.Extend(ctx, f.ttl); err != nil {
				logger.Warn("lock heartbeat failed", "key", key, "error", err)
				return
			}
		}
	}
}

// PGAdvisoryLock implements DistLock with pg_try_advisory_lock. Advisory
// locks belong to a database session, so the lock pins one pooled
// connection from Acquire until Release.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: advisoryKey(key)}
}

func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire tries to acquire the advisory lock on a dedicated connection.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already acquired by this instance", l.lockID)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}
