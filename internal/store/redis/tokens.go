// Package redis implements domain.TokenRepository on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/redis/go-redis/v9"
)

// upsertScript keeps the principal's token while it is live and otherwise
// swaps in the candidate.
//
// KEYS: principal hash, expiry zset, candidate token key
// ARGV: principal id, candidate key, created_at ms, expires_at ms, now ms, token key prefix
var upsertScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if exp and tonumber(exp) >= tonumber(ARGV[5]) then
  return redis.call('HMGET', KEYS[1], 'key', 'created_at', 'expires_at')
end
local old = redis.call('HGET', KEYS[1], 'key')
if old then
  redis.call('DEL', ARGV[6] .. old)
end
redis.call('HSET', KEYS[1], 'key', ARGV[2], 'created_at', ARGV[3], 'expires_at', ARGV[4])
redis.call('SET', KEYS[3], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
return {ARGV[2], ARGV[3], ARGV[4]}
`)

// deleteScript removes the principal's token. With ARGV[3] set, only a token
// that expired before it is removed.
//
// KEYS: principal hash, expiry zset
// ARGV: principal id, token key prefix, optional cutoff ms
var deleteScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'key', 'expires_at')
if not cur[1] then
  redis.call('ZREM', KEYS[2], ARGV[1])
  return 0
end
if ARGV[3] and tonumber(cur[2]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('DEL', ARGV[2] .. cur[1], KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`)

// Store keeps tokens in Redis.
type Store struct {
	client *redis.Client
	keys   keyspace
}

// NewStore creates a token store. An empty prefix selects DefaultPrefix.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, keys: keyspace{prefix: prefix}}
}

// Ping checks Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// FindToken looks up a token by key.
func (s *Store) FindToken(ctx context.Context, key string) (*domain.Token, bool, error) {
	raw, err := s.client.Get(ctx, s.keys.tokenKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token: %w", err)
	}
	principalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt token entry: %w", err)
	}

	vals, err := s.client.HMGet(ctx, s.keys.principalKey(principalID), "key", "created_at", "expires_at").Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token owner: %w", err)
	}
	tok, ok, err := parseToken(principalID, vals)
	if err != nil || !ok || tok.Key != key {
		// A pointer left behind by a concurrent replacement.
		return nil, false, err
	}
	return &tok, true, nil
}

// UpsertToken keeps the principal's token while it is live at now and
// replaces it with candidate otherwise. The script runs atomically.
func (s *Store) UpsertToken(ctx context.Context, candidate domain.Token, now time.Time) (domain.Token, error) {
	if candidate.Key == "" || candidate.PrincipalID <= 0 {
		return domain.Token{}, errors.New("invalid token")
	}

	res, err := upsertScript.Run(ctx, s.client,
		[]string{
			s.keys.principalKey(candidate.PrincipalID),
			s.keys.expiryKey(),
			s.keys.tokenKey(candidate.Key),
		},
		candidate.PrincipalID,
		candidate.Key,
		candidate.CreatedAt.UnixMilli(),
		candidate.ExpiresAt.UnixMilli(),
		now.UnixMilli(),
		s.keys.prefix+"token:",
	).Slice()
	if err != nil {
		return domain.Token{}, fmt.Errorf("failed to upsert token: %w", err)
	}

	tok, ok, err := parseToken(candidate.PrincipalID, res)
	if err != nil {
		return domain.Token{}, err
	}
	if !ok {
		return domain.Token{}, errors.New("upsert returned no token")
	}
	return tok, nil
}

// DeleteToken removes the principal's token, if any.
func (s *Store) DeleteToken(ctx context.Context, principalID int64) error {
	err := deleteScript.Run(ctx, s.client,
		[]string{s.keys.principalKey(principalID), s.keys.expiryKey()},
		principalID, s.keys.prefix+"token:",
	).Err()
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DeleteExpiredTokens deletes tokens that expired before now.
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, s.keys.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired tokens: %w", err)
	}

	var deleted int64
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			_ = s.client.ZRem(ctx, s.keys.expiryKey(), raw).Err()
			continue
		}
		n, err := deleteScript.Run(ctx, s.client,
			[]string{s.keys.principalKey(id), s.keys.expiryKey()},
			id, s.keys.prefix+"token:", cutoff,
		).Int64()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete expired token: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

// parseToken decodes a {key, created_at, expires_at} triple. A missing key
// means the principal has no token.
func parseToken(principalID int64, vals []any) (domain.Token, bool, error) {
	if len(vals) != 3 || vals[0] == nil {
		return domain.Token{}, false, nil
	}
	key, _ := vals[0].(string)
	created, err := millis(vals[1])
	if err != nil {
		return domain.Token{}, false, err
	}
	expires, err := millis(vals[2])
	if err != nil {
		return domain.Token{}, false, err
	}
	return domain.Token{
		Key:         key,
		PrincipalID: principalID,
		CreatedAt:   time.UnixMilli(created).UTC(),
		ExpiresAt:   time.UnixMilli(expires).UTC(),
	}, true, nil
}

func millis(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("corrupt token timestamp %v", v)
	}
	return strconv.ParseInt(s, 10, 64)
}
