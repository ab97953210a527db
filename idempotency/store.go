package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned when another request holding the same
// (account, key) pair has reserved it and not yet completed. The caller may
// retry shortly; it must not proceed into the mutation path.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

// ErrSnapshotCorrupt is returned when a finalized row cannot be decoded.
var ErrSnapshotCorrupt = errors.New("idempotency snapshot corrupt")

// ErrRedisUnavailable is returned for transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const releaseScript = `
local v = redis.call("GET", KEYS[1])
if v and v == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`

const finalizeScript = `
local v = redis.call("GET", KEYS[1])
if not v or v ~= ARGV[1] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "EX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

var (
	releaseLua  = redis.NewScript(releaseScript)
	finalizeLua = redis.NewScript(finalizeScript)
)

// Store maps (accountID, idempotencyKey) to either a live reservation or a
// finalized result snapshot.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore creates an idempotency store. An empty prefix defaults to "ir".
func NewStore(redisClient *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "ir"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

// Key returns the Redis key for an (account, idempotency key) pair. Exposed
// so the ledger commit script can address the same row.
func (s *Store) Key(accountID, idempotencyKey string) string {
	return s.prefix + ":" + accountID + ":" + idempotencyKey
}

// Reserve attempts to claim the key for the request identified by token.
//
// Returns (nil, nil) when the reservation was acquired and the caller may
// proceed; (outcome, nil) when the key already finalized and the caller must
// replay the prior outcome; (nil, [ErrInFlight]) when a concurrent holder is
// still working.
func (s *Store) Reserve(
	ctx context.Context,
	accountID, idempotencyKey, token string,
	pendingTTL time.Duration,
) (*Outcome, error) {
	const maxAttempts = 2
	key := s.Key(accountID, idempotencyKey)
	pending := PendingValue(token)

	for i := 0; i < maxAttempts; i++ {
		set, err := s.redis.SetNX(ctx, key, pending, pendingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if set {
			return nil, nil
		}

		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Holder vanished between SETNX and GET; claim again.
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		if len(data) > 0 && data[0] == statePending {
			return nil, ErrInFlight
		}

		outcome, err := decodeFinalValue(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
		}
		return outcome, nil
	}

	return nil, ErrInFlight
}

// Release drops the reservation if the request identified by token still
// holds it. Used after non-deterministic failures so a legitimate retry is
// not blocked for the pending TTL.
func (s *Store) Release(ctx context.Context, accountID, idempotencyKey, token string) error {
	err := releaseLua.Run(
		ctx,
		s.redis,
		[]string{s.Key(accountID, idempotencyKey)},
		PendingValue(token),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Finalize replaces the reservation held by token with a completed outcome.
// This path is for deterministic failures finalized without a ledger write;
// successful commits finalize through the ledger's commit script instead.
// Returns false when the reservation was no longer held.
func (s *Store) Finalize(
	ctx context.Context,
	accountID, idempotencyKey, token string,
	outcome *Outcome,
	retention time.Duration,
) (bool, error) {
	final, err := FinalValue(outcome)
	if err != nil {
		return false, err
	}

	seconds := int64(retention / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	res, err := finalizeLua.Run(
		ctx,
		s.redis,
		[]string{s.Key(accountID, idempotencyKey)},
		PendingValue(token),
		final,
		seconds,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// Lookup reads the finalized outcome for a key, if any. Pending reservations
// report [ErrInFlight]; absent keys return (nil, nil).
func (s *Store) Lookup(ctx context.Context, accountID, idempotencyKey string) (*Outcome, error) {
	data, err := s.redis.Get(ctx, s.Key(accountID, idempotencyKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(data) > 0 && data[0] == statePending {
		return nil, ErrInFlight
	}
	outcome, err := decodeFinalValue(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return outcome, nil
}
