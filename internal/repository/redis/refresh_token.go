package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stonenotes/stonenotes/internal/domain"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

const (
	tokenKeyPrefix = "refresh_token:"
	ownerKeyPrefix = "refresh_tokens:owner:"

	// ExpiredRetention is how long a token hash outlives its expiry. Within
	// this window a presented token is still found and reported as expired;
	// afterwards Redis drops it and it is simply unknown.
	ExpiredRetention = 7 * 24 * time.Hour
)

// Every mutation is a Lua script so that the check and the write happen as
// one atomic step on the server. Timestamps are stored as Unix microseconds,
// which Lua compares exactly as doubles.

// indexTokenLua adds a token to its owner's set. Members whose hash Redis
// already dropped are removed, and the set lives until its longest retained
// token is gone.
const indexTokenLua = `
local function index_token(owner_key, token, token_prefix, retain_until, now)
	for _, t in ipairs(redis.call('SMEMBERS', owner_key)) do
		if redis.call('EXISTS', token_prefix .. t) == 0 then
			redis.call('SREM', owner_key, t)
		end
	end
	redis.call('SADD', owner_key, token)
	local ttl = redis.call('PTTL', owner_key)
	if ttl < 0 or tonumber(now) + ttl < tonumber(retain_until) then
		redis.call('PEXPIREAT', owner_key, retain_until)
	end
end
`

var saveScript = redis.NewScript(indexTokenLua + `
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'owner_id', ARGV[1], 'expires_at', ARGV[2], 'created_at', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
index_token(KEYS[2], ARGV[5], ARGV[6], ARGV[4], ARGV[7])
return 1
`)

var deleteScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'owner_id')
if not owner then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', ARGV[1] .. owner, ARGV[2])
return 1
`)

var deleteIfExpiredScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp or tonumber(exp) >= tonumber(ARGV[1]) then
	return 0
end
local owner = redis.call('HGET', KEYS[1], 'owner_id')
redis.call('DEL', KEYS[1])
redis.call('SREM', ARGV[2] .. owner, ARGV[3])
return 1
`)

var rotateScript = redis.NewScript(indexTokenLua + `
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp or tonumber(exp) < tonumber(ARGV[1]) then
	return 0
end
local owner = redis.call('HGET', KEYS[1], 'owner_id')
redis.call('DEL', KEYS[1])
redis.call('SREM', ARGV[2] .. owner, ARGV[3])
redis.call('HSET', KEYS[2], 'owner_id', ARGV[5], 'expires_at', ARGV[6], 'created_at', ARGV[7])
redis.call('PEXPIREAT', KEYS[2], ARGV[8])
index_token(ARGV[2] .. ARGV[5], ARGV[4], ARGV[9], ARGV[8], ARGV[10])
return 1
`)

var deleteByOwnerScript = redis.NewScript(`
local tokens = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, t in ipairs(tokens) do
	n = n + redis.call('DEL', ARGV[1] .. t)
end
redis.call('DEL', KEYS[1])
return n
`)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// Redis. Each token is a hash; a per-owner set indexes the owner's tokens.
type RefreshTokenRepository struct {
	client *redis.Client
}

// NewRefreshTokenRepository creates a new Redis-backed refresh token repository.
func NewRefreshTokenRepository(client *redis.Client) *RefreshTokenRepository {
	return &RefreshTokenRepository{client: client}
}

// Save stores a new refresh token.
func (r *RefreshTokenRepository) Save(ctx context.Context, rt *domain.RefreshToken) error {
	keys := []string{tokenKeyPrefix + rt.Token, ownerKeyPrefix + rt.OwnerID}

	saved, err := saveScript.Run(ctx, r.client, keys,
		rt.OwnerID,
		micros(rt.ExpiresAt),
		micros(rt.CreatedAt),
		retainUntil(rt.ExpiresAt),
		rt.Token,
		tokenKeyPrefix,
		time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis save refresh token: %w", err)
	}

	if saved == 0 {
		return apperrors.ErrAlreadyExists
	}

	return nil
}

// FindByToken retrieves a refresh token by exact token match.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get refresh token: %w", err)
	}

	if len(fields) == 0 {
		return nil, apperrors.ErrNotFound
	}

	expiresAt, err := parseMicros(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("parse refresh token expiry: %w", err)
	}

	createdAt, err := parseMicros(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse refresh token creation time: %w", err)
	}

	return &domain.RefreshToken{
		Token:     token,
		OwnerID:   fields["owner_id"],
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Delete removes a refresh token.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	deleted, err := deleteScript.Run(ctx, r.client,
		[]string{tokenKeyPrefix + token},
		ownerKeyPrefix, token,
	).Int()
	if err != nil {
		return fmt.Errorf("redis delete refresh token: %w", err)
	}

	if deleted == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteIfExpired removes the token only if it expired before now.
func (r *RefreshTokenRepository) DeleteIfExpired(ctx context.Context, token string, now time.Time) (bool, error) {
	deleted, err := deleteIfExpiredScript.Run(ctx, r.client,
		[]string{tokenKeyPrefix + token},
		micros(now), ownerKeyPrefix, token,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis delete expired refresh token: %w", err)
	}

	return deleted == 1, nil
}

// Rotate replaces the live token oldToken with next in one script run.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *domain.RefreshToken, now time.Time) error {
	rotated, err := rotateScript.Run(ctx, r.client,
		[]string{tokenKeyPrefix + oldToken, tokenKeyPrefix + next.Token},
		micros(now),
		ownerKeyPrefix,
		oldToken,
		next.Token,
		next.OwnerID,
		micros(next.ExpiresAt),
		micros(next.CreatedAt),
		retainUntil(next.ExpiresAt),
		tokenKeyPrefix,
		now.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis rotate refresh token: %w", err)
	}

	if rotated == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteByOwner removes every refresh token of the owner.
func (r *RefreshTokenRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	n, err := deleteByOwnerScript.Run(ctx, r.client,
		[]string{ownerKeyPrefix + ownerID},
		tokenKeyPrefix,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis delete owner refresh tokens: %w", err)
	}

	return n, nil
}

func micros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func parseMicros(s string) (time.Time, error) {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us).UTC(), nil
}

func retainUntil(expiresAt time.Time) int64 {
	return expiresAt.Add(ExpiredRetention).UnixMilli()
}
