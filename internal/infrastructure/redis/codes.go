package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tribe-otp/internal/domain"
)

const (
	hCodeID     = "code_id"
	hSecretHash = "secret_hash"
	hAttempts   = "attempts"
	hCreatedAt  = "created_at" // unix nanoseconds
	hExpiresAt  = "expires_at" // unix nanoseconds
)

// incrementScript bumps attempts only while the hash still carries the
// expected code id and is below the limit. Returns -1 when the condition fails.
var incrementScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'code_id')
if not id or id ~= ARGV[1] then
  return -1
end
local n = tonumber(redis.call('HGET', KEYS[1], 'attempts'))
if n >= tonumber(ARGV[2]) then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// deleteScript removes the hash only if it still carries the expected code id.
var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'code_id') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// CodeRepo stores each identity's code as a hash under <namespace>:otp:<identity>
// with PEXPIREAT set to the code's expiry, so Redis drops it passively.
type CodeRepo struct {
	client    redis.UniversalClient
	namespace string
}

func NewCodeRepo(client redis.UniversalClient, namespace string) *CodeRepo {
	ns := namespace
	if ns == "" {
		ns = "tribe"
	}
	return &CodeRepo{client: client, namespace: ns}
}

func (r *CodeRepo) key(identity string) string {
	return fmt.Sprintf("%s:otp:%s", r.namespace, identity)
}

func (r *CodeRepo) Put(ctx context.Context, c *domain.OneTimeCode) error {
	key := r.key(c.Identity)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			hCodeID:     c.CodeID,
			hSecretHash: c.SecretHash,
			hAttempts:   c.Attempts,
			hCreatedAt:  c.CreatedAt.UnixNano(),
			hExpiresAt:  c.ExpiresAt.UnixNano(),
		})
		pipe.PExpireAt(ctx, key, c.ExpiresAt)
		return nil
	})
	return err
}

func (r *CodeRepo) Get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	vals, err := r.client.HGetAll(ctx, r.key(identity)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	return parseCode(identity, vals)
}

func (r *CodeRepo) IncrementAttempts(ctx context.Context, identity, codeID string, max int) (int, error) {
	n, err := incrementScript.Run(ctx, r.client, []string{r.key(identity)}, codeID, max).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("increment attempts: %w", domain.ErrConflict)
	}
	return n, nil
}

func (r *CodeRepo) Delete(ctx context.Context, identity, codeID string) error {
	return deleteScript.Run(ctx, r.client, []string{r.key(identity)}, codeID).Err()
}

// ListExpired walks the namespace with SCAN. Redis normally expires keys on
// its own; this catches keys it has not reaped yet and clock skew between
// the service and the server.
func (r *CodeRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.OneTimeCode, error) {
	prefix := r.key("")
	var out []domain.OneTimeCode
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		vals, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			continue
		}
		c, err := parseCode(strings.TrimPrefix(key, prefix), vals)
		if err != nil {
			return nil, err
		}
		if c.Expired(now) {
			out = append(out, *c)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCode(identity string, vals map[string]string) (*domain.OneTimeCode, error) {
	attempts, err := strconv.Atoi(vals[hAttempts])
	if err != nil {
		return nil, fmt.Errorf("parse attempts for %s: %w", identity, err)
	}
	created, err := strconv.ParseInt(vals[hCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", identity, err)
	}
	expires, err := strconv.ParseInt(vals[hExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at for %s: %w", identity, err)
	}
	return &domain.OneTimeCode{
		Identity:   identity,
		CodeID:     vals[hCodeID],
		SecretHash: vals[hSecretHash],
		Attempts:   attempts,
		CreatedAt:  time.Unix(0, created).UTC(),
		ExpiresAt:  time.Unix(0, expires).UTC(),
	}, nil
}
