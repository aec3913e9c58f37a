package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps short-lived login verification codes in redis, one
// pending code per email. Verify consumes the code whether or not it
// matches, so a code cannot be brute-forced by replaying requests.
type CodeStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCodeStore(client *redis.Client, ttl time.Duration) *CodeStore {
	return &CodeStore{redis: client, ttl: ttl}
}

// Issue generates a fresh code for email and stores it under the login
// code key with the configured TTL, replacing any pending code.
func (c *CodeStore) Issue(ctx context.Context, email string) (string, error) {
	if c.redis == nil {
		return "", errors.New("redis not configured")
	}
	code, err := randomLoginCode()
	if err != nil {
		return "", err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := c.redis.Set(ctx, loginCodeKey(email), code, c.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the pending code for email and reports whether it
// matches. A missing or expired code is a mismatch, not an error.
func (c *CodeStore) Verify(ctx context.Context, email, code string) (bool, error) {
	if c.redis == nil {
		return false, errors.New("redis not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	stored, err := c.redis.GetDel(ctx, loginCodeKey(email)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != "" && stored == strings.TrimSpace(code), nil
}

// randomLoginCode returns a 6-digit numeric code.
func randomLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func loginCodeKey(email string) string {
	return fmt.Sprintf("login_code:%s", email)
}
