package oauth2

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gmb-connector/internal/redis"

	goauth2 "golang.org/x/oauth2"
)

// TokenCache shares access tokens between processes. Get returns nil and no
// error on a miss.
type TokenCache interface {
	Get(ctx context.Context, externalUserID string) (*goauth2.Token, error)
	Set(ctx context.Context, externalUserID string, tok *goauth2.Token) error
	Delete(ctx context.Context, externalUserID string) error
}

// RedisInterface is the subset of the redis client the cache uses.
type RedisInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cipher protects cached access tokens. *crypto.TokenCipher satisfies it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(value string) (string, error)
}

// RedisTokenCache stores access tokens under "gmb:token:<external user id>"
// with a TTL equal to the token's remaining lifetime. Refresh tokens are
// never cached.
type RedisTokenCache struct {
	client RedisInterface
	cipher Cipher
	prefix string
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// NewRedisTokenCache creates a cache on client. cipher may be nil.
func NewRedisTokenCache(client RedisInterface, cipher Cipher) *RedisTokenCache {
	return &RedisTokenCache{
		client: client,
		cipher: cipher,
		prefix: "gmb:token:",
	}
}

func (c *RedisTokenCache) Set(ctx context.Context, externalUserID string, tok *goauth2.Token) error {
	if tok == nil || tok.AccessToken == "" || tok.Expiry.IsZero() {
		return nil
	}
	ttl := time.Until(tok.Expiry)
	if ttl <= 0 {
		return nil
	}

	access := tok.AccessToken
	if c.cipher != nil {
		enc, err := c.cipher.Encrypt(access)
		if err != nil {
			return fmt.Errorf("failed to encrypt cached token: %w", err)
		}
		access = enc
	}

	data, err := json.Marshal(cachedToken{AccessToken: access, TokenType: tok.Type(), Expiry: tok.Expiry})
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	return c.client.Set(ctx, c.prefix+externalUserID, string(data), ttl)
}

func (c *RedisTokenCache) Get(ctx context.Context, externalUserID string) (*goauth2.Token, error) {
	data, err := c.client.Get(ctx, c.prefix+externalUserID)
	if stderrors.Is(err, redis.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}

	var ct cachedToken
	if err := json.Unmarshal([]byte(data), &ct); err != nil {
		return nil, fmt.Errorf("failed to deserialize token: %w", err)
	}
	if c.cipher != nil {
		plain, err := c.cipher.Decrypt(ct.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt cached token: %w", err)
		}
		ct.AccessToken = plain
	}

	return &goauth2.Token{AccessToken: ct.AccessToken, TokenType: ct.TokenType, Expiry: ct.Expiry}, nil
}

func (c *RedisTokenCache) Delete(ctx context.Context, externalUserID string) error {
	return c.client.Delete(ctx, c.prefix+externalUserID)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*goauth2.Token, error) { return nil, nil }
func (nopCache) Set(context.Context, string, *goauth2.Token) error   { return nil }
func (nopCache) Delete(context.Context, string) error                { return nil }
