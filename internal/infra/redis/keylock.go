package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix    = "mail_tools:retrylock:"
	lockTTL          = 30 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
)

// unlockScript deletes the lock only when it still holds our token, so an
// expired lock taken over by another holder is never released by us.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// KeyMutex serializes retry attempts per fingerprint across processes.
// The scheduled batch and operator-triggered manual retries may run
// concurrently; two attempts on the same fingerprint must not race on the
// ledger's attempt count.
type KeyMutex struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewKeyMutex(client *goredis.Client) (*KeyMutex, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &KeyMutex{client: client, ttl: lockTTL}, nil
}

// Lock blocks until the key lock is held or the context is done. The
// returned release func is safe to call once.
func (m *KeyMutex) Lock(ctx context.Context, key string) (func(), error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("key mutex is not initialized")
	}

	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for {
		acquired, err := m.client.SetNX(ctx, redisKey, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", key, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(lockRetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	release := func() {
		// Best effort: the TTL reclaims the lock if the release fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, m.client, []string{redisKey}, token).Err()
	}

	return release, nil
}
