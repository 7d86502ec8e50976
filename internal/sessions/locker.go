package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
)

// LockConfig mirrors the teacher's DBLockerConfig (internal/sessions/locker.go):
// a lease TTL, a heartbeat renewal interval well under the TTL, a bounded
// acquire timeout, and a poll interval while contending for the lock.
type LockConfig struct {
	TTL             time.Duration
	RenewInterval   time.Duration
	AcquireTimeout  time.Duration
	PollInterval    time.Duration
}

// DefaultLockConfig matches spec.md §5's advisory-lock requirements: hold
// for the duration of one kernel invocation, renew well before expiry,
// give up after a bounded wait rather than blocking forever.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		TTL:            2 * time.Minute,
		RenewInterval:  30 * time.Second,
		AcquireTimeout: 10 * time.Second,
		PollInterval:   200 * time.Millisecond,
	}
}

// RedisLocker implements Locker with a Redis SETNX+PX lease, renewed by a
// background heartbeat goroutine for as long as the lock is held -
// generalizing the teacher's DBLocker.tryAcquire/startRenew/renewLoop
// pattern from a Postgres advisory lock onto Redis.
type RedisLocker struct {
	client *redis.Client
	cfg    LockConfig
	log    *slog.Logger
}

func NewRedisLocker(client *redis.Client, cfg LockConfig, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{client: client, cfg: cfg, log: log}
}

func lockKey(sessionID string) string { return "agent:lock:" + sessionID }

func (l *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("sessions: generate lock token: %w", err)
	}

	deadline := time.Now().Add(l.cfg.AcquireTimeout)
	key := lockKey(sessionID)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, errtax.New(errtax.KindMemoryIO, err, map[string]any{"session_id": sessionID})
		}
		if ok {
			break
		}

		if time.Now().After(deadline) {
			return nil, errtax.New(errtax.KindSessionBusy, nil, map[string]any{"session_id": sessionID})
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.PollInterval):
		}
	}

	renewCtx, cancelRenew := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go l.renewLoop(renewCtx, &wg, key, token)

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancelRenew()
			wg.Wait()
			l.releaseIfOwned(context.Background(), key, token)
		})
	}
	return release, nil
}

// renewLoop periodically extends the lease while the lock is held,
// matching the teacher's DBLocker.renewLoop: renew at RenewInterval and
// stop silently once the context is cancelled (lock released). A failed
// renewal is logged as a warning and retried on the next tick; if
// renewals keep failing, the lease simply expires.
func (l *RedisLocker) renewLoop(ctx context.Context, wg *sync.WaitGroup, key, token string) {
	defer wg.Done()
	ticker := time.NewTicker(l.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.extendLease(ctx, key, token); err != nil {
				l.log.Warn("sessions: failed to renew session lock lease", "key", key, "error", err)
			}
		}
	}
}

const extendLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`

func (l *RedisLocker) extendLease(ctx context.Context, key, token string) error {
	return l.client.Eval(ctx, extendLeaseScript, []string{key}, token, l.cfg.TTL.Milliseconds()).Err()
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

func (l *RedisLocker) releaseIfOwned(ctx context.Context, key, token string) {
	if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		l.log.Warn("sessions: failed to release session lock", "key", key, "error", err)
	}
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// LocalLocker is an in-process Locker for tests and single-process
// deployments, grounded on the teacher's LocalLocker.
type LocalLocker struct {
	mu      sync.Mutex
	holders map[string]struct{}
	poll    time.Duration
	timeout time.Duration
}

func NewLocalLocker(cfg LockConfig) *LocalLocker {
	return &LocalLocker{
		holders: make(map[string]struct{}),
		poll:    cfg.PollInterval,
		timeout: cfg.AcquireTimeout,
	}
}

func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	deadline := time.Now().Add(l.timeout)
	for {
		l.mu.Lock()
		if _, held := l.holders[sessionID]; !held {
			l.holders[sessionID] = struct{}{}
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.holders, sessionID)
					l.mu.Unlock()
				})
			}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, errtax.New(errtax.KindSessionBusy, nil, map[string]any{"session_id": sessionID})
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
