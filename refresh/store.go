package refresh

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHashMismatch is an exported constant or variable used by the authentication core.
var ErrHashMismatch = errors.New("refresh secret hash mismatch")

// ErrRedisUnavailable is an exported constant or variable used by the authentication core.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrTokenNotFound is returned when the rotation target record does not exist.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrTokenExpired is returned when the rotation target record is expired.
var ErrTokenExpired = errors.New("refresh token expired")

// ErrTokenReused is returned when a rotated or revoked token is presented
// for rotation. The whole family has already been revoked by the time
// callers see this error.
var ErrTokenReused = errors.New("refresh token reuse detected")

// ErrRecordCorrupt is returned when a stored record blob is invalid.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusReused      int64 = 2
	rotateStatusMismatch    int64 = 4
	rotateStatusInvalidBlob int64 = 5
	rotateStatusRotated     int64 = 6
)

// revokeFamilyBody patches the status byte of every live record in a family
// to revoked, preserving each record's remaining TTL. Shared by the rotation
// script (reuse path) and the standalone family revocation script.
const revokeFamilyBody = `
local function revoke_family(family_key, record_prefix)
  local revoked = 0
  local members = redis.call("SMEMBERS", family_key)
  for _, member in ipairs(members) do
    local mkey = record_prefix .. member
    local mdata = redis.call("GET", mkey)
    if mdata and #mdata >= 98 and string.byte(mdata, 2) ~= 2 then
      local ttl = redis.call("PTTL", mkey)
      if ttl > 0 then
        local patched = string.sub(mdata, 1, 1) .. string.char(2) .. string.sub(mdata, 3)
        redis.call("SET", mkey, patched, "PX", ttl)
        revoked = revoked + 1
      end
    end
  end
  return revoked
end
`

const rotateScript = revokeFamilyBody + `
local function read_be64(s, i)
  local v = 0
  for off = 0, 7 do
    local b = string.byte(s, i + off)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local record_key = KEYS[1]
local successor_key = KEYS[2]
local provided_hash = ARGV[1]
local new_token_id = ARGV[2]
local new_member = ARGV[3]
local new_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])
local issued_be = ARGV[6]
local expires_be = ARGV[7]
local new_ttl_ms = tonumber(ARGV[8])
local record_prefix = ARGV[9]
local family_prefix = ARGV[10]

local data = redis.call("GET", record_key)
if not data then
  return {0}
end

if string.byte(data, 1) ~= 1 or #data < 98 then
  return {5}
end

local family_key = family_prefix .. string.sub(data, 19, 34)

local expires_at = read_be64(data, 91)
if not expires_at then
  return {5}
end
if expires_at <= now_unix then
  return {1}
end

local status = string.byte(data, 2)
if status ~= 0 then
  revoke_family(family_key, record_prefix)
  return {2}
end

if string.sub(data, 35, 66) ~= provided_hash then
  return {4}
end

local ttl = redis.call("PTTL", record_key)
if ttl <= 0 then
  return {1}
end

local rotated = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3, 66) .. new_token_id .. string.sub(data, 83)
redis.call("SET", record_key, rotated, "PX", ttl)

local family_id = string.sub(data, 19, 34)
local tail = string.sub(data, 99)
local zero_successor = string.rep(string.char(0), 16)
local successor = string.sub(data, 1, 1) .. string.char(0) .. new_token_id .. family_id .. new_hash .. zero_successor .. issued_be .. expires_be .. tail

redis.call("SET", successor_key, successor, "PX", new_ttl_ms)
redis.call("SADD", family_key, new_member)
redis.call("PEXPIRE", family_key, new_ttl_ms)

return {6, successor}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeFamilyScript = revokeFamilyBody + `
return revoke_family(KEYS[1], ARGV[1])
`

var revokeFamilyLua = redis.NewScript(revokeFamilyScript)

const revokeRecordScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if #data < 98 or string.byte(data, 2) == 2 then
  return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return 0
end
local patched = string.sub(data, 1, 1) .. string.char(2) .. string.sub(data, 3)
redis.call("SET", KEYS[1], patched, "PX", ttl)
return 1
`

var revokeRecordLua = redis.NewScript(revokeRecordScript)

// Store is a Redis-backed refresh token store that handles persistence,
// expiration, atomic rotation, and family-wide revocation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a refresh token [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) recordPrefix() string {
	return s.prefix + ":rt:"
}

func (s *Store) recordKey(tokenID [16]byte) string {
	return s.recordPrefix() + encodeID(tokenID)
}

// familyKey embeds the raw family ID bytes so the rotation script can build
// the same key from the record blob without a base64 helper. Redis keys are
// binary safe.
func (s *Store) familyKey(familyID [16]byte) string {
	return s.familyPrefix() + string(familyID[:])
}

func (s *Store) familyPrefix() string {
	return s.prefix + ":fam:"
}

func (s *Store) subjectKey(subject string) string {
	return s.prefix + ":sub:" + subject
}

func encodeID(id [16]byte) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Create persists a new active [Record] with the given TTL and indexes it
// under its family and subject.
//
//	Performance: 1 transactional pipeline (SET + 2x SADD + 2x PEXPIRE).
func (s *Store) Create(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("non-positive record ttl")
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	recordKey := s.recordKey(rec.TokenID)
	familyKey := s.familyKey(rec.FamilyID)
	subjectKey := s.subjectKey(rec.Subject)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey, data, ttl)
		pipe.SAdd(ctx, familyKey, encodeID(rec.TokenID))
		pipe.PExpire(ctx, familyKey, ttl)
		pipe.SAdd(ctx, subjectKey, encodeID(rec.FamilyID))
		pipe.PExpire(ctx, subjectKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a record by token ID without mutating any Redis state.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, tokenID [16]byte) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrRecordCorrupt, err)
	}
	if rec.ExpiresAt <= time.Now().Unix() {
		return nil, ErrTokenExpired
	}

	return rec, nil
}

// Rotate atomically retires the record identified by tokenID and writes its
// successor using a Lua CAS script. Exactly one concurrent caller observes
// success; presenting a record in any non-Active state, rotated or revoked,
// is a reuse event: the family is revoked inside the same script run and
// the caller sees [ErrTokenReused].
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: CAS prevents lost updates under concurrency; the provided hash
//	is compared against the stored digest before any state changes.
func (s *Store) Rotate(
	ctx context.Context,
	tokenID [16]byte,
	providedHash [32]byte,
	newTokenID [16]byte,
	newSecretHash [32]byte,
	now time.Time,
	ttl time.Duration,
) (*Record, error) {
	if ttl <= 0 {
		return nil, errors.New("non-positive record ttl")
	}

	var issuedBE, expiresBE [8]byte
	binary.BigEndian.PutUint64(issuedBE[:], uint64(now.Unix()))
	binary.BigEndian.PutUint64(expiresBE[:], uint64(now.Add(ttl).Unix()))

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(tokenID), s.recordKey(newTokenID)},
		providedHash[:],
		newTokenID[:],
		encodeID(newTokenID),
		newSecretHash[:],
		now.Unix(),
		issuedBE[:],
		expiresBE[:],
		ttl.Milliseconds(),
		s.recordPrefix(),
		s.familyPrefix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrTokenNotFound
	case rotateStatusExpired:
		return nil, ErrTokenExpired
	case rotateStatusReused:
		return nil, ErrTokenReused
	case rotateStatusMismatch:
		return nil, ErrHashMismatch
	case rotateStatusInvalidBlob:
		return nil, ErrRecordCorrupt
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing successor record payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid successor record payload", ErrRedisUnavailable)
		}

		rec, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrRecordCorrupt, decErr)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Revoke marks a single record revoked, preserving its remaining TTL.
// Revoking a missing or already-revoked record is a no-op.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Revoke(ctx context.Context, tokenID [16]byte) error {
	if err := revokeRecordLua.Run(ctx, s.redis, []string{s.recordKey(tokenID)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeFamily marks every live record in a family revoked and returns the
// number of records transitioned.
//
//	Performance: 1 Lua EVALSHA (O(family size)).
func (s *Store) RevokeFamily(ctx context.Context, familyID [16]byte) (int, error) {
	revoked, err := revokeFamilyLua.Run(
		ctx,
		s.redis,
		[]string{s.familyKey(familyID)},
		s.recordPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return revoked, nil
}

// RevokeAllForSubject revokes every family indexed under subject and returns
// the total number of records transitioned.
//
// ATOMICITY NOTE: This operation is NOT fully atomic. It reads the subject's
// family set (SMembers) and then revokes each family in its own script run.
// A family created between the read and revoke phases will not be captured
// by this call; it expires naturally or is caught by the next invocation.
func (s *Store) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	familyIDs, err := s.redis.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var total int
	for _, encoded := range familyIDs {
		raw, decErr := base64.RawURLEncoding.DecodeString(encoded)
		if decErr != nil || len(raw) != 16 {
			continue
		}
		var familyID [16]byte
		copy(familyID[:], raw)

		revoked, revErr := s.RevokeFamily(ctx, familyID)
		if revErr != nil {
			return total, revErr
		}
		total += revoked
	}

	return total, nil
}

// ListFamily returns the decoded records of a family, skipping members whose
// record keys have already expired.
//
//	Performance: 1 SMEMBERS + 1 pipelined GET batch.
func (s *Store) ListFamily(ctx context.Context, familyID [16]byte) ([]*Record, error) {
	members, err := s.redis.SMembers(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(members) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.Get(ctx, s.recordPrefix()+member)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	records := make([]*Record, 0, len(members))
	for _, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			return nil, errors.Join(ErrRecordCorrupt, decErr)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
