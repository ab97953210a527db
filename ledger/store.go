package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrEntryNotFound is returned when no ledger row exists for the account.
var ErrEntryNotFound = errors.New("ledger entry not found")

// ErrEntryExists is returned when creating a row for an already-open account.
var ErrEntryExists = errors.New("ledger entry already exists")

// ErrVersionMismatch is returned when the stored version differs from the
// expected version at commit time. The commit wrote nothing.
var ErrVersionMismatch = errors.New("ledger version mismatch")

// ErrEntryCorrupt is returned when a stored row cannot be decoded or violates
// the balance invariant. Corrupt rows are never repaired in place.
var ErrEntryCorrupt = errors.New("ledger entry corrupt")

// ErrReservationLost is returned when the idempotency reservation guarding a
// commit disappeared before the commit ran. The ledger row was not touched.
var ErrReservationLost = errors.New("idempotency reservation lost")

// ErrRedisUnavailable is returned for transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	commitStatusNotFound        int64 = 0
	commitStatusConflict        int64 = 1
	commitStatusCommitted       int64 = 2
	commitStatusInvalidBlob     int64 = 3
	commitStatusReservationLost int64 = 4
)

// The commit script is the conditional write: it swaps the ledger blob only
// if the stored version still equals the expected one AND the caller's
// idempotency reservation is still in place, then finalizes the reservation
// in the same atomic step. Either both keys change or neither does.
const commitScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local entry = redis.call("GET", KEYS[1])
if not entry then
  return {0, 0}
end
if #entry < 9 or string.byte(entry, 1) ~= 1 then
  return {3, 0}
end
local version = read_be64(entry, 2)
if not version then
  return {3, 0}
end
if version ~= tonumber(ARGV[1]) then
  return {1, version}
end
local reservation = redis.call("GET", KEYS[2])
if not reservation or reservation ~= ARGV[3] then
  return {4, version}
end
redis.call("SET", KEYS[1], ARGV[2])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
  redis.call("SET", KEYS[2], ARGV[4], "EX", ttl)
else
  redis.call("SET", KEYS[2], ARGV[4])
end
return {2, version + 1}
`

var commitLua = redis.NewScript(commitScript)

// Receipt carries the idempotency finalization that must land atomically
// with a ledger commit.
type Receipt struct {
	// Key is the idempotency row's Redis key.
	Key string
	// Reservation is the exact value the pending reservation must still
	// hold for the commit to proceed.
	Reservation []byte
	// Snapshot is the finalized result blob written on success.
	Snapshot []byte
	// Retention bounds how long the finalized row lives. Zero keeps it
	// until evicted externally.
	Retention time.Duration
}

// Store persists one versioned balance row per account.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore creates a ledger store. An empty prefix defaults to "lg".
func NewStore(redisClient *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "lg"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(accountID string) string {
	return s.prefix + ":" + accountID
}

// Create opens an account at version 1. Fails with [ErrEntryExists] if a row
// is already present, leaving it untouched.
func (s *Store) Create(ctx context.Context, accountID string, opening decimal.Decimal, now time.Time) (*Record, error) {
	if opening.IsNegative() {
		return nil, ErrEntryCorrupt
	}

	record := &Record{
		AccountID: accountID,
		Balance:   opening,
		Version:   1,
		UpdatedAt: now.Unix(),
	}
	encoded, err := encodeRecord(record)
	if err != nil {
		return nil, err
	}

	set, err := s.redis.SetNX(ctx, s.key(accountID), encoded, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !set {
		return nil, ErrEntryExists
	}
	return record, nil
}

// Get reads and validates the account's row.
func (s *Store) Get(ctx context.Context, accountID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntryCorrupt, err)
	}
	if record.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: negative balance", ErrEntryCorrupt)
	}
	record.AccountID = accountID
	return record, nil
}

// Commit performs the conditional write for one mutation: compare-and-swap
// on the stored version plus atomic finalization of the caller's idempotency
// reservation. On [ErrVersionMismatch] the returned version is the version
// currently stored; on success it is the new version.
func (s *Store) Commit(
	ctx context.Context,
	accountID string,
	expectedVersion uint64,
	next *Record,
	receipt Receipt,
) (uint64, error) {
	if next.Balance.IsNegative() {
		return 0, ErrEntryCorrupt
	}

	encoded, err := encodeRecord(next)
	if err != nil {
		return 0, err
	}

	retention := int64(receipt.Retention / time.Second)
	if retention < 0 {
		retention = 0
	}

	res, err := commitLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID), receipt.Key},
		expectedVersion,
		encoded,
		receipt.Reservation,
		receipt.Snapshot,
		retention,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	status, version, err := parseCommitReply(res)
	if err != nil {
		return 0, err
	}

	switch status {
	case commitStatusCommitted:
		return version, nil
	case commitStatusNotFound:
		return 0, ErrEntryNotFound
	case commitStatusConflict:
		return version, ErrVersionMismatch
	case commitStatusInvalidBlob:
		return 0, ErrEntryCorrupt
	case commitStatusReservationLost:
		return version, ErrReservationLost
	default:
		return 0, fmt.Errorf("%w: unexpected commit status %d", ErrRedisUnavailable, status)
	}
}

func parseCommitReply(res interface{}) (int64, uint64, error) {
	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, 0, fmt.Errorf("%w: malformed commit reply", ErrRedisUnavailable)
	}
	status, ok := reply[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: malformed commit status", ErrRedisUnavailable)
	}
	version, ok := reply[1].(int64)
	if !ok || version < 0 {
		return 0, 0, fmt.Errorf("%w: malformed commit version", ErrRedisUnavailable)
	}
	return status, uint64(version), nil
}
